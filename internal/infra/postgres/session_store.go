package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index on ACTIVE (classroom_id, quiz_id) pairs.
const uniqueViolation = "23505"

// SessionStore persists quiz sessions in Postgres. The ACTIVE-uniqueness
// invariant is backed by a partial unique index, so concurrent opens surface
// as a conflict rather than a second ACTIVE row.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Insert(ctx context.Context, session domain.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, school_id, classroom_id, quiz_id, created_by, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.SchoolID, session.ClassroomID, session.QuizID,
		session.CreatedBy, string(session.Status), session.StartedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrActiveSessionExists
		}
		return domain.Upstream(fmt.Errorf("insert session: %w", err))
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (domain.Session, error) {
	return s.scanOne(s.pool.QueryRow(ctx, selectSessions+` WHERE id = $1`, id))
}

func (s *SessionStore) Complete(ctx context.Context, id string, endedAt time.Time) (domain.Session, error) {
	// The status guard makes a second close a no-op update; the stored
	// record is re-read so callers always see the original endedAt.
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET status = $1, ended_at = $2
		WHERE id = $3 AND status = $4`,
		string(domain.SessionCompleted), endedAt, id, string(domain.SessionActive),
	)
	if err != nil {
		return domain.Session{}, domain.Upstream(fmt.Errorf("complete session: %w", err))
	}
	return s.Get(ctx, id)
}

func (s *SessionStore) ActiveByClassroomQuiz(ctx context.Context, classroomID, quizID string) (domain.Session, error) {
	return s.scanOne(s.pool.QueryRow(ctx,
		selectSessions+` WHERE classroom_id = $1 AND quiz_id = $2 AND status = $3`,
		classroomID, quizID, string(domain.SessionActive),
	))
}

func (s *SessionStore) ActiveByClassroom(ctx context.Context, classroomID string) ([]domain.Session, error) {
	rows, err := s.pool.Query(ctx,
		selectSessions+` WHERE classroom_id = $1 AND status = $2 ORDER BY started_at DESC`,
		classroomID, string(domain.SessionActive),
	)
	if err != nil {
		return nil, domain.Upstream(fmt.Errorf("list active sessions: %w", err))
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Upstream(fmt.Errorf("list active sessions: %w", err))
	}
	return sessions, nil
}

const selectSessions = `SELECT id, school_id, classroom_id, quiz_id, created_by, status, started_at, ended_at FROM sessions`

func (s *SessionStore) scanOne(row pgx.Row) (domain.Session, error) {
	var (
		session domain.Session
		endedAt *time.Time
	)
	err := row.Scan(
		&session.ID, &session.SchoolID, &session.ClassroomID, &session.QuizID,
		&session.CreatedBy, &session.Status, &session.StartedAt, &endedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, domain.Upstream(fmt.Errorf("scan session: %w", err))
	}
	if endedAt != nil {
		session.EndedAt = *endedAt
	}
	return session, nil
}
