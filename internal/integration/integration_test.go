package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/app"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/infra/postgres"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/infra/postgres/migrations"
	infraredis "github.com/nikhilsaini9909/edu-reporting-framework/internal/infra/redis"
)

func TestQuizSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	events := postgres.NewEventStore(pool)
	sessions := infraredis.NewSessionCache(postgres.NewSessionStore(pool), redisClient, 5*time.Minute)

	lifecycle := app.NewLifecycle(sessions)
	tracker := app.NewTracker(events, lifecycle)
	reports := app.NewReports(events)

	session, err := lifecycle.OpenSession(ctx, app.OpenSessionParams{
		SchoolID:    "sch-1",
		ClassroomID: "c1",
		QuizID:      "quiz-1",
		InitiatorID: "tea-1",
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	// A second ACTIVE session for the same pair trips the partial unique index.
	if _, err := lifecycle.OpenSession(ctx, app.OpenSessionParams{
		SchoolID:    "sch-1",
		ClassroomID: "c1",
		QuizID:      "quiz-1",
		InitiatorID: "tea-2",
	}); !errors.Is(err, domain.ErrActiveSessionExists) {
		t.Fatalf("expected active-session conflict, got %v", err)
	}

	// The cache answers active-session lookups after the first fill.
	active, err := lifecycle.ActiveSession(ctx, "c1", "quiz-1")
	if err != nil {
		t.Fatalf("active session: %v", err)
	}
	if active == nil || active.ID != session.ID {
		t.Fatalf("expected session %s active, got %+v", session.ID, active)
	}

	for i, input := range []app.EventInput{
		{
			EventType:   domain.EventClassroomJoin,
			AppOrigin:   domain.OriginNotebook,
			UserID:      "stu-1",
			UserRole:    domain.RoleStudent,
			SchoolID:    "sch-1",
			ClassroomID: "c1",
		},
		{
			EventType:   domain.EventQuizAnswerSubmitted,
			AppOrigin:   domain.OriginNotebook,
			UserID:      "stu-1",
			UserRole:    domain.RoleStudent,
			SchoolID:    "sch-1",
			ClassroomID: "c1",
			SessionID:   session.ID,
			Metadata:    domain.Metadata{"quizId": "quiz-1", "questionId": "q1", "answer": "B", "isCorrect": true, "timeTaken": 10.0},
		},
		{
			EventType:   domain.EventQuizAnswerSubmitted,
			AppOrigin:   domain.OriginNotebook,
			UserID:      "stu-2",
			UserRole:    domain.RoleStudent,
			SchoolID:    "sch-1",
			ClassroomID: "c1",
			SessionID:   session.ID,
			Metadata:    domain.Metadata{"quizId": "quiz-1", "questionId": "q1", "answer": "C", "isCorrect": false, "timeTaken": 20.0},
		},
	} {
		if _, err := tracker.Track(ctx, input); err != nil {
			t.Fatalf("track event %d: %v", i, err)
		}
	}

	perf, err := reports.Performance(ctx, app.PerformanceFilter{ClassroomID: "c1", QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("performance report: %v", err)
	}
	if perf.Total != 2 || perf.Correct != 1 || perf.AvgTime != 15 {
		t.Fatalf("unexpected performance report %+v", perf)
	}

	timeline, err := tracker.SessionTimeline(ctx, session.ID)
	if err != nil {
		t.Fatalf("session timeline: %v", err)
	}
	if len(timeline) != 2 {
		t.Fatalf("expected 2 session events, got %d", len(timeline))
	}

	closed, err := lifecycle.CloseSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("close session: %v", err)
	}
	if closed.Status != domain.SessionCompleted || closed.EndedAt.IsZero() {
		t.Fatalf("expected completed session, got %+v", closed)
	}

	// Completion invalidates the cached active-session entry.
	active, err = lifecycle.ActiveSession(ctx, "c1", "quiz-1")
	if err != nil {
		t.Fatalf("active session after close: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active session, got %+v", active)
	}

	// The pair is free for a new session.
	if _, err := lifecycle.OpenSession(ctx, app.OpenSessionParams{
		SchoolID:    "sch-1",
		ClassroomID: "c1",
		QuizID:      "quiz-1",
		InitiatorID: "tea-1",
	}); err != nil {
		t.Fatalf("reopen session: %v", err)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "edu", "POSTGRES_PASSWORD": "edupass", "POSTGRES_DB": "edudb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://edu:edupass@%s:%s/edudb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
