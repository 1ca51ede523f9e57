package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/engine"
)

// EngineFactory constructs a per-identity engine (with its cache store
// attached, when persistence is configured).
type EngineFactory func(identity string) *engine.Engine

// Sessions maps session identities to engines. An identity switch is
// just a lookup of a different key; each engine lazily hydrates from
// its durable cache on first access. Idle sessions are evicted so their
// cache stores and write-behind goroutines are released.
type Sessions struct {
	mu       sync.Mutex
	engines  map[string]*engine.Engine
	lastSeen map[string]time.Time
	factory  EngineFactory
	now      func() time.Time
}

// NewSessions builds an empty registry.
func NewSessions(factory EngineFactory) *Sessions {
	return &Sessions{
		engines:  make(map[string]*engine.Engine),
		lastSeen: make(map[string]time.Time),
		factory:  factory,
		now:      time.Now,
	}
}

// Get returns the engine for an identity, constructing and hydrating it
// on first access.
func (s *Sessions) Get(ctx context.Context, identity string) *engine.Engine {
	s.mu.Lock()
	eng, ok := s.engines[identity]
	if !ok {
		eng = s.factory(identity)
		s.engines[identity] = eng
	}
	s.lastSeen[identity] = s.now()
	s.mu.Unlock()

	if !ok {
		eng.Hydrate(ctx)
	}
	return eng
}

// EvictIdle closes and removes sessions not accessed within maxIdle,
// returning how many were evicted. An evicted identity's records remain
// in the durable cache; a later request rebuilds the engine and
// hydrates them back.
func (s *Sessions) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	var evicted []*engine.Engine
	for identity, seen := range s.lastSeen {
		if seen.Before(cutoff) {
			evicted = append(evicted, s.engines[identity])
			delete(s.engines, identity)
			delete(s.lastSeen, identity)
		}
	}
	s.mu.Unlock()

	for _, eng := range evicted {
		eng.Close()
	}
	if len(evicted) > 0 {
		log.Printf("[Sessions] evicted %d idle sessions", len(evicted))
	}
	return len(evicted)
}

// CloseAll closes every session's engine, releasing their cache stores.
// Called on server shutdown.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	engines := make([]*engine.Engine, 0, len(s.engines))
	for _, eng := range s.engines {
		engines = append(engines, eng)
	}
	s.engines = make(map[string]*engine.Engine)
	s.lastSeen = make(map[string]time.Time)
	s.mu.Unlock()

	for _, eng := range engines {
		eng.Close()
	}
}
