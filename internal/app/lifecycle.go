package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// Lifecycle owns quiz session state transitions. It is the only component
// permitted to create sessions or move them to COMPLETED.
type Lifecycle struct {
	sessions SessionStore
	now      func() time.Time
	newID    func() string
}

func NewLifecycle(sessions SessionStore) *Lifecycle {
	return &Lifecycle{
		sessions: sessions,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// NewLifecycleWithClock is test-only for deterministic timestamps and IDs.
func NewLifecycleWithClock(sessions SessionStore, now func() time.Time, newID func() string) *Lifecycle {
	return &Lifecycle{sessions: sessions, now: now, newID: newID}
}

// OpenSessionParams identifies the classroom, quiz and initiating user of a
// new session.
type OpenSessionParams struct {
	SchoolID    string
	ClassroomID string
	QuizID      string
	InitiatorID string
}

// OpenSession creates a session in ACTIVE status. It fails with
// domain.ErrActiveSessionExists when the pair already has an ACTIVE session.
// The check-then-insert here is backed by the store's own uniqueness
// constraint, which decides true concurrent opens.
func (l *Lifecycle) OpenSession(ctx context.Context, params OpenSessionParams) (domain.Session, error) {
	if params.ClassroomID == "" || params.QuizID == "" {
		return domain.Session{}, fmt.Errorf("%w: classroomId and quizId are required", domain.ErrInvalid)
	}

	if _, err := l.sessions.ActiveByClassroomQuiz(ctx, params.ClassroomID, params.QuizID); err == nil {
		return domain.Session{}, domain.ErrActiveSessionExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, err
	}

	session := domain.Session{
		ID:          l.newID(),
		SchoolID:    params.SchoolID,
		ClassroomID: params.ClassroomID,
		QuizID:      params.QuizID,
		CreatedBy:   params.InitiatorID,
		Status:      domain.SessionActive,
		StartedAt:   l.now(),
	}
	if err := l.sessions.Insert(ctx, session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// CloseSession transitions a session to COMPLETED and stamps endedAt. Closing
// an already COMPLETED session is idempotent: the stored record is returned
// unchanged. COMPLETED is terminal.
func (l *Lifecycle) CloseSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.Session{}, fmt.Errorf("%w: sessionId is required", domain.ErrInvalid)
	}
	return l.sessions.Complete(ctx, sessionID, l.now())
}

// ActiveSession returns the ACTIVE session for a (classroom, quiz) pair, or
// nil when there is none.
func (l *Lifecycle) ActiveSession(ctx context.Context, classroomID, quizID string) (*domain.Session, error) {
	session, err := l.sessions.ActiveByClassroomQuiz(ctx, classroomID, quizID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSessions lists all ACTIVE sessions for a classroom, newest first.
func (l *Lifecycle) ActiveSessions(ctx context.Context, classroomID string) ([]domain.Session, error) {
	return l.sessions.ActiveByClassroom(ctx, classroomID)
}
