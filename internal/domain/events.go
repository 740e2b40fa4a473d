package domain

import "time"

// EventType identifies what happened.
type EventType string

const (
	EventClassroomJoin        EventType = "CLASSROOM_JOIN"
	EventClassroomLeave       EventType = "CLASSROOM_LEAVE"
	EventQuizStart            EventType = "QUIZ_START"
	EventQuizEnd              EventType = "QUIZ_END"
	EventQuizAnswerSubmitted  EventType = "QUIZ_ANSWER_SUBMITTED"
	EventQuizAttemptStarted   EventType = "QUIZ_ATTEMPT_STARTED"
	EventQuizAttemptCompleted EventType = "QUIZ_ATTEMPT_COMPLETED"
)

// EventClass marks how an event interacts with the session lifecycle.
type EventClass int

const (
	// ClassOrdinary events have no lifecycle side effects.
	ClassOrdinary EventClass = iota
	// ClassSessionOpening events open a session when none is supplied.
	ClassSessionOpening
	// ClassSessionClosing events complete their session.
	ClassSessionClosing
)

// Known reports whether t is one of the recognized event types.
func (t EventType) Known() bool {
	switch t {
	case EventClassroomJoin, EventClassroomLeave,
		EventQuizStart, EventQuizEnd, EventQuizAnswerSubmitted,
		EventQuizAttemptStarted, EventQuizAttemptCompleted:
		return true
	}
	return false
}

// Class resolves the lifecycle classification of an event type once, at the
// tracker boundary, instead of scattering string comparisons.
func (t EventType) Class() EventClass {
	switch t {
	case EventQuizStart:
		return ClassSessionOpening
	case EventQuizEnd:
		return ClassSessionClosing
	default:
		return ClassOrdinary
	}
}

// AppOrigin names the client surface an event came from.
type AppOrigin string

const (
	OriginWhiteboard AppOrigin = "WHITEBOARD"
	OriginNotebook   AppOrigin = "NOTEBOOK"
)

// Metadata is the opaque key-value payload attached to events.
type Metadata map[string]any

// String returns the string value for key, or "" when absent or mistyped.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Bool returns the boolean value for key, or false when absent or mistyped.
func (m Metadata) Bool(key string) bool {
	b, _ := m[key].(bool)
	return b
}

// Float returns the numeric value for key. JSON decoding yields float64, but
// events built in-process may carry int values, so both are accepted.
func (m Metadata) Float(key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Event is an immutable record of something that happened. Events are
// append-only; the log is totally ordered by timestamp with ties broken by
// insertion order.
type Event struct {
	ID          string    `json:"id"`
	EventType   EventType `json:"eventType"`
	AppOrigin   AppOrigin `json:"appOrigin"`
	UserID      string    `json:"userId"`
	UserRole    Role      `json:"userRole"`
	SchoolID    string    `json:"schoolId"`
	ClassroomID string    `json:"classroomId"`
	SessionID   string    `json:"sessionId,omitempty"`
	Metadata    Metadata  `json:"metadata"`
	Timestamp   time.Time `json:"timestamp"`
}

// SortOrder controls timestamp ordering of event listings.
type SortOrder int

const (
	// OrderDesc is the default: dashboards read most-recent-first.
	OrderDesc SortOrder = iota
	// OrderAsc is used for timeline reconstruction, which reads forward.
	OrderAsc
)

// EventFilter selects events from the log. Zero values mean "no constraint".
// QuizID matches against metadata, not a column, because answer events carry
// their quiz reference in the payload.
type EventFilter struct {
	EventType   EventType
	UserID      string
	SchoolID    string
	ClassroomID string
	SessionID   string
	QuizID      string
	From        time.Time
	To          time.Time
	Order       SortOrder
}
