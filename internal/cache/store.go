package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventType identifies a cache lifecycle notification.
type EventType string

const (
	EventPersisted EventType = "persisted"
	EventHydrated  EventType = "hydrated"
	EventError     EventType = "error"
)

// Event is emitted on the observable event channel so tests and
// diagnostics can see write-behind completion and failures without the
// caller ever blocking on them.
type Event struct {
	Type EventType
	Tier string // "redis" or "blob"
	Err  error
}

// Options tune the fast tier.
type Options struct {
	TTL             time.Duration
	MaxPayloadBytes int
	WriteTimeout    time.Duration
}

// Store is the two-tier durable cache for one identity: a fast,
// size-limited Redis tier written best-effort, and a larger blob tier
// written behind by a background goroutine. Either tier may be absent.
type Store struct {
	identity string
	rdb      *redis.Client
	blob     BlobStore
	opts     Options

	events chan Event

	mu      sync.Mutex
	pending *Snapshot // latest unwritten snapshot; writes coalesce
	kick    chan struct{}
	done    chan struct{}
	closed  bool
}

// NewStore builds a cache store scoped to an identity. rdb and blob may
// each be nil; a missing tier is skipped.
func NewStore(identity string, rdb *redis.Client, blob BlobStore, opts Options) *Store {
	if opts.TTL == 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.MaxPayloadBytes == 0 {
		opts.MaxPayloadBytes = 4 << 20
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	s := &Store{
		identity: identity,
		rdb:      rdb,
		blob:     blob,
		opts:     opts,
		events:   make(chan Event, 16),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Events exposes persisted/hydrated/error notifications. The channel is
// best-effort: events are dropped when nobody is draining it.
func (s *Store) Events() <-chan Event {
	return s.events
}

func (s *Store) emit(e Event) {
	select {
	case s.events <- e:
	default:
	}
}

// Persist writes the snapshot to the fast tier best-effort and enqueues
// a durable write. It returns immediately; durable-write completion is
// observable via Events.
func (s *Store) Persist(ctx context.Context, snap *Snapshot) {
	if snap == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[Cache] marshal snapshot for %s: %v", s.identity, err)
		s.emit(Event{Type: EventError, Err: err})
		return
	}

	if s.rdb != nil {
		if len(data) <= s.opts.MaxPayloadBytes {
			if err := s.rdb.Set(ctx, Key(s.identity), data, s.opts.TTL).Err(); err != nil {
				// Quota and connectivity failures on the fast tier are
				// swallowed; the durable tier still gets the write.
				log.Printf("[Cache] redis set %s: %v", Key(s.identity), err)
				s.emit(Event{Type: EventError, Tier: "redis", Err: err})
			} else {
				s.emit(Event{Type: EventPersisted, Tier: "redis"})
			}
		} else {
			log.Printf("[Cache] snapshot for %s is %d bytes, skipping fast tier", s.identity, len(data))
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = snap
	s.mu.Unlock()
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// writeLoop drains coalesced snapshots into the blob tier.
func (s *Store) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.kick:
		}

		s.mu.Lock()
		snap := s.pending
		s.pending = nil
		s.mu.Unlock()
		if snap == nil || s.blob == nil {
			continue
		}

		data, err := json.Marshal(snap)
		if err != nil {
			s.emit(Event{Type: EventError, Tier: "blob", Err: err})
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
		err = s.blob.Put(ctx, Key(s.identity), data)
		cancel()
		if err != nil {
			log.Printf("[Cache] durable write for %s: %v", s.identity, err)
			s.emit(Event{Type: EventError, Tier: "blob", Err: err})
			continue
		}
		s.emit(Event{Type: EventPersisted, Tier: "blob"})
	}
}

// Hydrate loads the most recent snapshot: fast tier first, blob tier on
// a miss. Corrupt payloads degrade to a miss rather than failing.
func (s *Store) Hydrate(ctx context.Context) *Snapshot {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, Key(s.identity)).Bytes()
		if err == nil && len(data) > 0 {
			if snap := decodeSnapshot(data); snap != nil {
				s.emit(Event{Type: EventHydrated, Tier: "redis"})
				return snap
			}
		} else if err != nil && err != redis.Nil {
			log.Printf("[Cache] redis get %s: %v", Key(s.identity), err)
		}
	}

	if s.blob != nil {
		data, err := s.blob.Get(ctx, Key(s.identity))
		if err != nil {
			log.Printf("[Cache] durable read for %s: %v", s.identity, err)
			s.emit(Event{Type: EventError, Tier: "blob", Err: err})
			return nil
		}
		if len(data) > 0 {
			if snap := decodeSnapshot(data); snap != nil {
				s.emit(Event{Type: EventHydrated, Tier: "blob"})
				return snap
			}
		}
	}
	return nil
}

// decodeSnapshot unmarshals a persisted document, treating corruption
// as a miss. Individual date fields that fail revival resolve to the
// fallback date inside metrics.Time, not to an error here.
func decodeSnapshot(data []byte) *Snapshot {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("[Cache] corrupt snapshot payload, treating as empty: %v", err)
		return nil
	}
	if snap.Empty() {
		return nil
	}
	return &snap
}

// Close stops the write-behind goroutine. Pending writes already picked
// up finish; a coalesced snapshot that was never picked up is dropped,
// matching the fire-and-forget contract.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
}
