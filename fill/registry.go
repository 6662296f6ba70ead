// Package fill keeps the live form sessions of respondents between HTTP
// requests.
package fill

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/sirupsen/logrus"
)

// ErrNoSession is returned for unknown or expired session ids.
var ErrNoSession = errors.New("fill session not found")

// Entry is one live session. Delivered is set once the submission has
// been stored; a submitted but undelivered session may retry delivery.
type Entry struct {
	ID        string
	Token     string
	Session   *forms.Session
	Delivered bool
	Receipt   *forms.Receipt

	mu       sync.Mutex
	lastSeen time.Time
}

// Registry maps session ids to live sessions. Each session is used by one
// respondent; With serialises requests touching the same session.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	ttl     time.Duration
	now     func() time.Time
	log     *logrus.Entry
}

// NewRegistry returns a registry that forgets sessions idle for ttl.
func NewRegistry(ttl time.Duration, logger *logrus.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
		log:     logger.WithField("component", "fill"),
	}
}

// Add stores s under a fresh id.
func (r *Registry) Add(token string, s *forms.Session) *Entry {
	e := &Entry{
		ID:       uuid.NewString(),
		Token:    token,
		Session:  s,
		lastSeen: r.now(),
	}

	r.mu.Lock()
	r.entries[e.ID] = e
	r.mu.Unlock()
	return e
}

// With runs fn with exclusive access to the session id.
func (r *Registry) With(id string, fn func(e *Entry) error) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return ErrNoSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = r.now()
	return fn(e)
}

// Remove forgets the session id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops sessions idle for longer than the ttl and returns how many
// were dropped.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, e := range r.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			dropped++
		}
		e.mu.Unlock()
	}
	return dropped
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.WithField("dropped", n).Debug("expired idle fill sessions")
			}
		}
	}
}
