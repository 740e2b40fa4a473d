package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. The active
// index mirrors the partial unique index the Postgres store relies on: one
// ACTIVE session per (classroom, quiz) pair.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	active   map[pairKey]string
}

type pairKey struct {
	classroomID string
	quizID      string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.Session),
		active:   make(map[pairKey]string),
	}
}

func (s *SessionStore) Insert(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{session.ClassroomID, session.QuizID}
	if session.Status == domain.SessionActive {
		if _, ok := s.active[key]; ok {
			return domain.ErrActiveSessionExists
		}
		s.active[key] = session.ID
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Complete(_ context.Context, id string, endedAt time.Time) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if session.Status == domain.SessionCompleted {
		return session, nil
	}

	session.Status = domain.SessionCompleted
	session.EndedAt = endedAt
	s.sessions[id] = session
	delete(s.active, pairKey{session.ClassroomID, session.QuizID})
	return session, nil
}

func (s *SessionStore) ActiveByClassroomQuiz(_ context.Context, classroomID, quizID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[pairKey{classroomID, quizID}]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s.sessions[id], nil
}

func (s *SessionStore) ActiveByClassroom(_ context.Context, classroomID string) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []domain.Session
	for _, id := range s.active {
		session := s.sessions[id]
		if session.ClassroomID == classroomID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}
