package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/app"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/auth"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/config"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/infra/memory"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/infra/postgres"
	redisinfra "github.com/nikhilsaini9909/edu-reporting-framework/internal/infra/redis"
	transport "github.com/nikhilsaini9909/edu-reporting-framework/internal/transport/http"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the reporting server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth secret not configured")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var events app.EventStore = memory.NewEventStore()
	var sessions app.SessionStore = memory.NewSessionStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		events = postgres.NewEventStore(pool)
		sessions = postgres.NewSessionStore(pool)
	}

	if cfg.Redis.Addr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cacheTTL := config.Duration(cfg.Session.CacheTTL, time.Minute)
		sessions = redisinfra.NewSessionCache(sessions, redisClient, cacheTTL)
	}

	lifecycle := app.NewLifecycle(sessions)
	tracker := app.NewTracker(events, lifecycle)
	reports := app.NewReports(events)
	verifier := auth.NewVerifier([]byte(cfg.Auth.Secret))

	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := ws.NewRegistry()
	heartbeat := config.Duration(cfg.WS.Heartbeat, 30*time.Second)
	registry.StartHeartbeat(serverCtx, heartbeat)
	gateway := ws.NewGateway(registry, tracker, reports, verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", gateway.ServeWS)
	transport.NewHandler(tracker, lifecycle, reports, verifier).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting reporting service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
