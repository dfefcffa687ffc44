package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/mitsukeru/internal/session"
)

// SessionFactory builds a fresh search session. pageSize is already clamped.
type SessionFactory func(pageSize int) *session.Session

// registry holds live sessions keyed by a random id.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	factory  SessionFactory
	idle     time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func newRegistry(factory SessionFactory, idle time.Duration, logger *zap.Logger) *registry {
	return &registry{
		sessions: make(map[string]*session.Session),
		factory:  factory,
		idle:     idle,
		now:      time.Now,
		logger:   logger,
	}
}

func (r *registry) create(pageSize int) (string, *session.Session) {
	id := uuid.NewString()
	s := r.factory(pageSize)
	r.mu.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()
	r.logger.Debug("session created", zap.String("id", id), zap.Int("sessions", n))
	return id, s
}

func (r *registry) get(id string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// evictIdle closes sessions unused for longer than the idle timeout.
func (r *registry) evictIdle() int {
	if r.idle <= 0 {
		return 0
	}
	now := r.now()
	var stale []*session.Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.LastUsed()) > r.idle {
			stale = append(stale, s)
			delete(r.sessions, id)
			r.logger.Debug("session evicted", zap.String("id", id))
		}
	}
	r.mu.Unlock()
	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// run evicts idle sessions until ctx is done.
func (r *registry) run(ctx context.Context) {
	if r.idle <= 0 {
		return
	}
	interval := r.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.evictIdle(); n > 0 {
				r.logger.Info("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*session.Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
