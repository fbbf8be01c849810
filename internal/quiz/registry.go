package quiz

import (
	"context"
	"sync"
	"time"
)

// Registry keeps one Session per browser identity.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	lastSeen map[string]time.Time
	loader   QuestionLoader
	surface  func(identity string) Surface
	opts     Options
}

func NewRegistry(loader QuestionLoader, surface func(identity string) Surface, opts Options) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		lastSeen: make(map[string]time.Time),
		loader:   loader,
		surface:  surface,
		opts:     opts,
	}
}

// Session returns the identity's session, creating it and loading the
// chapter list on first use. A failed chapter load is not cached.
func (r *Registry) Session(ctx context.Context, identity string) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[identity]; ok {
		r.lastSeen[identity] = r.now()
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	surface := r.surface(identity)
	s := NewSession(identity, r.loader, surface, surface, r.opts)
	if err := s.LoadChapters(ctx); err != nil {
		s.Close()
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[identity]; ok {
		s.Close()
		s = existing
	}
	r.sessions[identity] = s
	r.lastSeen[identity] = r.now()
	return s, nil
}

func (r *Registry) now() time.Time {
	if r.opts.Now != nil {
		return r.opts.Now()
	}
	return time.Now()
}

func (r *Registry) Lookup(identity string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[identity]
	return s, ok
}

func (r *Registry) Remove(identity string) {
	r.mu.Lock()
	s, ok := r.sessions[identity]
	delete(r.sessions, identity)
	delete(r.lastSeen, identity)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll stops every session's timer; used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.lastSeen = make(map[string]time.Time)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// EvictIdle drops sessions not requested since cutoff. Sessions that are
// still loading questions are kept.
func (r *Registry) EvictIdle(cutoff time.Time) int {
	r.mu.Lock()
	var evicted []*Session
	for identity, seen := range r.lastSeen {
		s := r.sessions[identity]
		if !seen.Before(cutoff) || s.State() == StateLoading {
			continue
		}
		evicted = append(evicted, s)
		delete(r.sessions, identity)
		delete(r.lastSeen, identity)
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}
	return len(evicted)
}
