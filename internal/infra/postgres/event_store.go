package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// EventStore persists the append-only event log in Postgres. Metadata is
// stored as JSONB so report filters can match payload fields server-side.
type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

func (s *EventStore) Insert(ctx context.Context, event domain.Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (id, event_type, app_origin, user_id, user_role, school_id, classroom_id, session_id, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)`,
		event.ID, string(event.EventType), string(event.AppOrigin), event.UserID, string(event.UserRole),
		event.SchoolID, event.ClassroomID, event.SessionID, metadata, event.Timestamp,
	)
	if err != nil {
		return domain.Upstream(fmt.Errorf("insert event: %w", err))
	}
	return nil
}

func (s *EventStore) List(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	query, args := buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Upstream(fmt.Errorf("list events: %w", err))
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			event     domain.Event
			sessionID *string
			metadata  []byte
		)
		if err := rows.Scan(
			&event.ID, &event.EventType, &event.AppOrigin, &event.UserID, &event.UserRole,
			&event.SchoolID, &event.ClassroomID, &sessionID, &metadata, &event.Timestamp,
		); err != nil {
			return nil, domain.Upstream(fmt.Errorf("scan event: %w", err))
		}
		if sessionID != nil {
			event.SessionID = *sessionID
		}
		if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Upstream(fmt.Errorf("list events: %w", err))
	}
	return events, nil
}

// buildListQuery assembles the filtered SELECT. seq is a bigserial insertion
// counter used as the tie-breaker for events sharing a timestamp.
func buildListQuery(filter domain.EventFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.EventType != "" {
		add("event_type = $%d", string(filter.EventType))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.SchoolID != "" {
		add("school_id = $%d", filter.SchoolID)
	}
	if filter.ClassroomID != "" {
		add("classroom_id = $%d", filter.ClassroomID)
	}
	if filter.SessionID != "" {
		add("session_id = $%d", filter.SessionID)
	}
	if filter.QuizID != "" {
		add("metadata->>'quizId' = $%d", filter.QuizID)
	}
	if !filter.From.IsZero() {
		add("timestamp >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("timestamp <= $%d", filter.To)
	}

	query := `SELECT id, event_type, app_origin, user_id, user_role, school_id, classroom_id, session_id, metadata, timestamp FROM events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if filter.Order == domain.OrderAsc {
		query += " ORDER BY timestamp ASC, seq ASC"
	} else {
		query += " ORDER BY timestamp DESC, seq DESC"
	}
	return query, args
}
