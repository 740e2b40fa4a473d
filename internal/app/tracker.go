package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// EventInput is the caller-supplied shape of an event before the tracker
// assigns an ID, a timestamp, and a resolved session.
type EventInput struct {
	EventType   domain.EventType
	AppOrigin   domain.AppOrigin
	UserID      string
	UserRole    domain.Role
	SchoolID    string
	ClassroomID string
	SessionID   string
	Metadata    domain.Metadata
	Timestamp   time.Time
}

// Tracker is the single ingestion point for domain events. It validates and
// timestamps input, resolves session IDs (triggering lifecycle transitions
// for session-opening and session-closing event types), and persists the
// record. Access control is the caller's responsibility: filters passed to
// List are trusted as already scoped.
type Tracker struct {
	events    EventStore
	lifecycle *Lifecycle
	now       func() time.Time
	newID     func() string
}

func NewTracker(events EventStore, lifecycle *Lifecycle) *Tracker {
	return &Tracker{
		events:    events,
		lifecycle: lifecycle,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// NewTrackerWithClock is test-only for deterministic timestamps and IDs.
func NewTrackerWithClock(events EventStore, lifecycle *Lifecycle, now func() time.Time, newID func() string) *Tracker {
	return &Tracker{events: events, lifecycle: lifecycle, now: now, newID: newID}
}

// Track persists one event and returns the stored record, including the
// resolved session ID. A session-opening event without a session reuses the
// pair's ACTIVE session or opens a new one; a session-closing event completes
// its session before the event is written.
func (t *Tracker) Track(ctx context.Context, input EventInput) (domain.Event, error) {
	if err := validateInput(input); err != nil {
		return domain.Event{}, err
	}

	sessionID, err := t.resolveSession(ctx, input)
	if err != nil {
		return domain.Event{}, err
	}

	timestamp := input.Timestamp
	if timestamp.IsZero() {
		timestamp = t.now()
	}
	metadata := input.Metadata
	if metadata == nil {
		metadata = domain.Metadata{}
	}

	event := domain.Event{
		ID:          t.newID(),
		EventType:   input.EventType,
		AppOrigin:   input.AppOrigin,
		UserID:      input.UserID,
		UserRole:    input.UserRole,
		SchoolID:    input.SchoolID,
		ClassroomID: input.ClassroomID,
		SessionID:   sessionID,
		Metadata:    metadata,
		Timestamp:   timestamp,
	}
	if err := t.events.Insert(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// List returns events matching the filter, most recent first unless the
// filter asks for ascending order.
func (t *Tracker) List(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	return t.events.List(ctx, filter)
}

// SessionTimeline returns a session's events in chronological order.
// Timelines read forward; dashboards use List and read most-recent-first.
func (t *Tracker) SessionTimeline(ctx context.Context, sessionID string) ([]domain.Event, error) {
	return t.events.List(ctx, domain.EventFilter{
		SessionID: sessionID,
		Order:     domain.OrderAsc,
	})
}

// QuizTimeline returns a quiz's events in a classroom in chronological order,
// optionally narrowed to a single user. A non-empty schoolID constrains the
// scan; callers pass the caller's school for non-admin access.
func (t *Tracker) QuizTimeline(ctx context.Context, schoolID, classroomID, quizID, userID string) ([]domain.Event, error) {
	return t.events.List(ctx, domain.EventFilter{
		SchoolID:    schoolID,
		ClassroomID: classroomID,
		QuizID:      quizID,
		UserID:      userID,
		Order:       domain.OrderAsc,
	})
}

func validateInput(input EventInput) error {
	switch {
	case input.EventType == "":
		return fmt.Errorf("%w: eventType is required", domain.ErrInvalid)
	case !input.EventType.Known():
		return fmt.Errorf("%w: unknown eventType %q", domain.ErrInvalid, input.EventType)
	case input.UserID == "":
		return fmt.Errorf("%w: userId is required", domain.ErrInvalid)
	case input.UserRole == "":
		return fmt.Errorf("%w: userRole is required", domain.ErrInvalid)
	case input.SchoolID == "":
		return fmt.Errorf("%w: schoolId is required", domain.ErrInvalid)
	case input.ClassroomID == "":
		return fmt.Errorf("%w: classroomId is required", domain.ErrInvalid)
	}
	return nil
}

// resolveSession applies the lifecycle side effects implied by the event's
// classification and returns the session ID the event should carry.
func (t *Tracker) resolveSession(ctx context.Context, input EventInput) (string, error) {
	switch input.EventType.Class() {
	case domain.ClassSessionOpening:
		if input.SessionID != "" {
			return input.SessionID, nil
		}
		return t.openOrReuse(ctx, input)
	case domain.ClassSessionClosing:
		sessionID := input.SessionID
		if sessionID == "" {
			active, err := t.lifecycle.ActiveSession(ctx, input.ClassroomID, input.Metadata.String("quizId"))
			if err != nil {
				return "", err
			}
			if active == nil {
				return "", domain.ErrSessionNotFound
			}
			sessionID = active.ID
		}
		if _, err := t.lifecycle.CloseSession(ctx, sessionID); err != nil {
			return "", err
		}
		return sessionID, nil
	default:
		return input.SessionID, nil
	}
}

func (t *Tracker) openOrReuse(ctx context.Context, input EventInput) (string, error) {
	quizID := input.Metadata.String("quizId")
	active, err := t.lifecycle.ActiveSession(ctx, input.ClassroomID, quizID)
	if err != nil {
		return "", err
	}
	if active != nil {
		return active.ID, nil
	}

	session, err := t.lifecycle.OpenSession(ctx, OpenSessionParams{
		SchoolID:    input.SchoolID,
		ClassroomID: input.ClassroomID,
		QuizID:      quizID,
		InitiatorID: input.UserID,
	})
	if errors.Is(err, domain.ErrConflict) {
		// Lost the creation race; adopt the winner's session.
		active, lookupErr := t.lifecycle.ActiveSession(ctx, input.ClassroomID, quizID)
		if lookupErr != nil {
			return "", lookupErr
		}
		if active != nil {
			return active.ID, nil
		}
		return "", err
	}
	if err != nil {
		return "", err
	}
	return session.ID, nil
}
