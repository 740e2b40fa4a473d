package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// EventStore is an in-memory implementation of app.EventStore. It keeps the
// log in insertion order, which doubles as the tie-breaker for events sharing
// a timestamp.
type EventStore struct {
	mu     sync.RWMutex
	events []domain.Event
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) Insert(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *EventStore) List(_ context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	s.mu.RLock()
	matched := make([]domain.Event, 0, len(s.events))
	for _, event := range s.events {
		if matches(event, filter) {
			matched = append(matched, event)
		}
	}
	s.mu.RUnlock()

	// matched is already in (timestamp, insertion) order for equal clocks;
	// a stable sort keeps the insertion tie-break intact.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	if filter.Order == domain.OrderDesc {
		reverse(matched)
	}
	return matched, nil
}

func matches(event domain.Event, filter domain.EventFilter) bool {
	if filter.EventType != "" && event.EventType != filter.EventType {
		return false
	}
	if filter.UserID != "" && event.UserID != filter.UserID {
		return false
	}
	if filter.SchoolID != "" && event.SchoolID != filter.SchoolID {
		return false
	}
	if filter.ClassroomID != "" && event.ClassroomID != filter.ClassroomID {
		return false
	}
	if filter.SessionID != "" && event.SessionID != filter.SessionID {
		return false
	}
	if filter.QuizID != "" && event.Metadata.String("quizId") != filter.QuizID {
		return false
	}
	if !filter.From.IsZero() && event.Timestamp.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && event.Timestamp.After(filter.To) {
		return false
	}
	return true
}

func reverse(events []domain.Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
