package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/app"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/infra/memory"
)

type countingStore struct {
	app.SessionStore
	activeLookups int
}

func (s *countingStore) ActiveByClassroomQuiz(ctx context.Context, classroomID, quizID string) (domain.Session, error) {
	s.activeLookups++
	return s.SessionStore.ActiveByClassroomQuiz(ctx, classroomID, quizID)
}

func newCache(t *testing.T) (*SessionCache, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	inner := &countingStore{SessionStore: memory.NewSessionStore()}
	return NewSessionCache(inner, client, time.Minute), inner, mr
}

func sampleSession() domain.Session {
	return domain.Session{
		ID:          "s-1",
		SchoolID:    "school-1",
		ClassroomID: "c1",
		QuizID:      "quiz-1",
		CreatedBy:   "t1",
		Status:      domain.SessionActive,
		StartedAt:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSessionCacheInsertPrimesKey(t *testing.T) {
	ctx := context.Background()
	cache, inner, mr := newCache(t)

	if err := cache.Insert(ctx, sampleSession()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !mr.Exists("session:active:c1:quiz-1") {
		t.Fatalf("expected active key to be set")
	}

	// Lookup is served from Redis without touching the inner store.
	session, err := cache.ActiveByClassroomQuiz(ctx, "c1", "quiz-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if session.ID != "s-1" {
		t.Fatalf("expected s-1, got %s", session.ID)
	}
	if inner.activeLookups != 0 {
		t.Fatalf("expected cache hit, inner lookups=%d", inner.activeLookups)
	}
}

func TestSessionCacheFillsOnMiss(t *testing.T) {
	ctx := context.Background()
	cache, inner, mr := newCache(t)

	// Seed the inner store directly so the cache starts cold.
	if err := inner.SessionStore.Insert(ctx, sampleSession()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := cache.ActiveByClassroomQuiz(ctx, "c1", "quiz-1"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if inner.activeLookups != 1 {
		t.Fatalf("expected one inner lookup, got %d", inner.activeLookups)
	}
	if !mr.Exists("session:active:c1:quiz-1") {
		t.Fatalf("expected key filled after miss")
	}

	if _, err := cache.ActiveByClassroomQuiz(ctx, "c1", "quiz-1"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if inner.activeLookups != 1 {
		t.Fatalf("expected cache hit on second lookup, got %d inner lookups", inner.activeLookups)
	}
}

func TestSessionCacheConcurrentFillsAndInserts(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	inner := memory.NewSessionStore()
	cache := NewSessionCache(inner, client, time.Minute)

	// Seed half the pairs so lookups exercise the fill path.
	for i := 0; i < 8; i++ {
		session := sampleSession()
		session.ID = fmt.Sprintf("s-fill-%d", i)
		session.ClassroomID = fmt.Sprintf("cf%d", i)
		if err := inner.Insert(ctx, session); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// Inserts and cache fills both stamp TTLs; run them together.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			session := sampleSession()
			session.ID = fmt.Sprintf("s-ins-%d", i)
			session.ClassroomID = fmt.Sprintf("ci%d", i)
			if err := cache.Insert(ctx, session); err != nil {
				t.Errorf("insert %d: %v", i, err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			if _, err := cache.ActiveByClassroomQuiz(ctx, fmt.Sprintf("cf%d", i), "quiz-1"); err != nil {
				t.Errorf("lookup %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		if !mr.Exists(fmt.Sprintf("session:active:ci%d:quiz-1", i)) {
			t.Fatalf("expected inserted pair ci%d cached", i)
		}
		if !mr.Exists(fmt.Sprintf("session:active:cf%d:quiz-1", i)) {
			t.Fatalf("expected looked-up pair cf%d cached", i)
		}
	}
}

func TestSessionCacheCompleteInvalidates(t *testing.T) {
	ctx := context.Background()
	cache, _, mr := newCache(t)

	if err := cache.Insert(ctx, sampleSession()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := cache.Complete(ctx, "s-1", time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if mr.Exists("session:active:c1:quiz-1") {
		t.Fatalf("expected key removed after completion")
	}
}
