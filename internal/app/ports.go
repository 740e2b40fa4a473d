package app

import (
	"context"
	"time"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// EventStore abstracts the append-only event log (in-memory, Postgres, etc).
type EventStore interface {
	// Insert appends an event. Events are immutable once inserted.
	Insert(ctx context.Context, event domain.Event) error
	// List returns events matching the filter, ordered by timestamp with
	// ties broken by insertion order.
	List(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error)
}

// SessionStore abstracts session persistence. Implementations must reject an
// Insert that would create a second ACTIVE session for the same
// (classroom, quiz) pair with domain.ErrActiveSessionExists.
type SessionStore interface {
	Insert(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, error)
	// Complete transitions a session to COMPLETED. Completing an already
	// COMPLETED session is a no-op update returning the stored record.
	Complete(ctx context.Context, id string, endedAt time.Time) (domain.Session, error)
	ActiveByClassroomQuiz(ctx context.Context, classroomID, quizID string) (domain.Session, error)
	// ActiveByClassroom lists ACTIVE sessions for a classroom, newest first.
	ActiveByClassroom(ctx context.Context, classroomID string) ([]domain.Session, error)
}
