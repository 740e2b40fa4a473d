package main

import (
	"os"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
