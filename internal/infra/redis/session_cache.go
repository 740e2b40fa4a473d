package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/nikhilsaini9909/edu-reporting-framework/internal/app"
	"github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"
)

// SessionCache decorates a SessionStore with a Redis cache over the hot
// ActiveByClassroomQuiz lookup, which the gateway hits on every quiz-scoped
// command. Writes invalidate the pair's key; cache fills are deduplicated
// with singleflight. All Redis failures fall through to the inner store.
//
// Keys: session:active:{classroomID}:{quizID} -> JSON session.
// For cross-instance fan-out you'd pair this with a pub/sub projector; keys
// here only cut read load on the relational store.
type SessionCache struct {
	inner  app.SessionStore
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
}

func NewSessionCache(inner app.SessionStore, client *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{
		inner:  inner,
		client: client,
		ttl:    ttl,
	}
}

func (c *SessionCache) Insert(ctx context.Context, session domain.Session) error {
	if err := c.inner.Insert(ctx, session); err != nil {
		return err
	}
	if session.Status == domain.SessionActive {
		data, err := json.Marshal(session)
		if err == nil {
			_ = c.client.Set(ctx, c.key(session.ClassroomID, session.QuizID), data, c.ttlWithJitter()).Err()
		}
	}
	return nil
}

func (c *SessionCache) Get(ctx context.Context, id string) (domain.Session, error) {
	return c.inner.Get(ctx, id)
}

func (c *SessionCache) Complete(ctx context.Context, id string, endedAt time.Time) (domain.Session, error) {
	session, err := c.inner.Complete(ctx, id, endedAt)
	if err != nil {
		return domain.Session{}, err
	}
	_ = c.client.Del(ctx, c.key(session.ClassroomID, session.QuizID)).Err()
	return session, nil
}

func (c *SessionCache) ActiveByClassroomQuiz(ctx context.Context, classroomID, quizID string) (domain.Session, error) {
	key := c.key(classroomID, quizID)
	if session, ok := c.lookup(ctx, key); ok {
		return session, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if session, ok := c.lookup(ctx, key); ok {
			return session, nil
		}

		session, err := c.inner.ActiveByClassroomQuiz(ctx, classroomID, quizID)
		if err != nil {
			return domain.Session{}, err
		}
		if data, err := json.Marshal(session); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return session, nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return result.(domain.Session), nil
}

func (c *SessionCache) ActiveByClassroom(ctx context.Context, classroomID string) ([]domain.Session, error) {
	return c.inner.ActiveByClassroom(ctx, classroomID)
}

func (c *SessionCache) lookup(ctx context.Context, key string) (domain.Session, bool) {
	// Redis trouble counts as a miss; the inner store is the truth.
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Session{}, false
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.Session{}, false
	}
	return session, true
}

func (c *SessionCache) key(classroomID, quizID string) string {
	return "session:active:" + classroomID + ":" + quizID
}

func (c *SessionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations; the package-level source is
	// locked, so concurrent fills and inserts are safe
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
