package domain

import "time"

// SessionStatus is the lifecycle state of a quiz session.
type SessionStatus string

const (
	// SessionActive is the sole initial state.
	SessionActive SessionStatus = "ACTIVE"
	// SessionCompleted is terminal.
	SessionCompleted SessionStatus = "COMPLETED"
)

// Session is a bounded period during which one quiz is live in one classroom.
// At most one session per (classroom, quiz) pair may be ACTIVE at a time.
// Sessions are never deleted; the only mutation is the transition to
// COMPLETED.
type Session struct {
	ID          string        `json:"id"`
	SchoolID    string        `json:"schoolId"`
	ClassroomID string        `json:"classroomId"`
	QuizID      string        `json:"quizId"`
	CreatedBy   string        `json:"createdBy"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	EndedAt     time.Time     `json:"endedAt,omitempty"`
}

// Role is a client's role within a school.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Principal is an authenticated caller, as decoded from a credential.
type Principal struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	SchoolID string `json:"schoolId"`
}
