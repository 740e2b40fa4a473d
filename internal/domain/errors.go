package domain

import "errors"

// Error kinds. Other packages wrap these so callers can classify failures
// with errors.Is without matching on message text.
var (
	// ErrUnauthenticated indicates a missing or invalid credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized indicates the caller's role does not permit the action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalid indicates a malformed request or a missing required field.
	ErrInvalid = errors.New("invalid input")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUpstream indicates a backing-store failure.
	ErrUpstream = errors.New("upstream failure")
)

var (
	// ErrActiveSessionExists is returned when a session is opened for a
	// (classroom, quiz) pair that already has an ACTIVE session.
	ErrActiveSessionExists = Conflict(errors.New("an active session already exists for this classroom and quiz"))
	// ErrSessionNotFound is returned when a referenced session does not exist.
	ErrSessionNotFound = NotFound(errors.New("session not found"))
)

// Conflict tags err as a uniqueness violation.
func Conflict(err error) error { return kindError{kind: ErrConflict, err: err} }

// NotFound tags err as a missing-entity failure.
func NotFound(err error) error { return kindError{kind: ErrNotFound, err: err} }

// Upstream tags err as a backing-store failure.
func Upstream(err error) error { return kindError{kind: ErrUpstream, err: err} }

// Invalid tags err as a validation failure.
func Invalid(err error) error { return kindError{kind: ErrInvalid, err: err} }

// kindError attaches a sentinel kind to an underlying error so errors.Is
// matches both the kind and the specific error.
type kindError struct {
	kind error
	err  error
}

func (e kindError) Error() string { return e.err.Error() }

func (e kindError) Is(target error) bool {
	return target == e.kind || errors.Is(e.err, target)
}

func (e kindError) Unwrap() error { return e.err }
