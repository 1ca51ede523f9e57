package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/cache"
	"github.com/pkom79/email-metrics-cloud-sub006/internal/config"
	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

// Kind identifies one of the three record collections.
type Kind string

const (
	KindCampaigns   Kind = "campaigns"
	KindFlows       Kind = "flows"
	KindSubscribers Kind = "subscribers"
)

// Scope selects which send collections a query runs over.
type Scope string

const (
	ScopeAll       Scope = "all"
	ScopeCampaigns Scope = "campaigns"
	ScopeFlows     Scope = "flows"
)

// LoadState tracks per-kind load progress, used only to drive upload
// feedback.
type LoadState struct {
	Loaded   bool   `json:"loaded"`
	Progress int    `json:"progress"` // 0-100
	Error    string `json:"error,omitempty"`
	Skipped  int    `json:"skipped,omitempty"` // rows dropped for unparseable dates
	Records  int    `json:"records"`
}

// Engine is a per-session query surface over an in-memory snapshot of
// normalized records. It is constructed per identity; switching
// identity means constructing a new Engine, never mutating shared
// state. A load fully replaces its collection before the loaded flag is
// set, so no query observes a half-replaced collection.
type Engine struct {
	identity string
	limits   config.EngineConfig
	store    *cache.Store
	now      func() time.Time

	mu          sync.RWMutex
	campaigns   []metrics.CampaignRecord
	flows       []metrics.FlowEmailRecord
	subscribers []metrics.SubscriberRecord
	states      map[Kind]LoadState
}

// New builds an engine for one session identity. store may be nil for a
// purely in-memory session.
func New(identity string, limits config.EngineConfig, store *cache.Store) *Engine {
	if limits.DailyEscalationBuckets == 0 {
		limits.DailyEscalationBuckets = 365
	}
	if limits.WeeklyEscalationBuckets == 0 {
		limits.WeeklyEscalationBuckets = 104
	}
	if limits.TruncateBuckets == 0 {
		limits.TruncateBuckets = 200
	}
	if limits.MaxBuckets == 0 {
		limits.MaxBuckets = 250
	}
	if limits.MaxRecords == 0 {
		limits.MaxRecords = 50000
	}
	if limits.BudgetSeconds == 0 {
		limits.BudgetSeconds = 10
	}
	return &Engine{
		identity: identity,
		limits:   limits,
		store:    store,
		now:      time.Now,
		states:   make(map[Kind]LoadState),
	}
}

// Identity returns the session identity this engine is scoped to.
func (e *Engine) Identity() string {
	return e.identity
}

// SetProgress updates the upload progress for a kind (0-100).
func (e *Engine) SetProgress(kind Kind, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	e.mu.Lock()
	st := e.states[kind]
	st.Progress = pct
	e.states[kind] = st
	e.mu.Unlock()
}

// SetError records a load failure for a kind.
func (e *Engine) SetError(kind Kind, msg string) {
	e.mu.Lock()
	st := e.states[kind]
	st.Error = msg
	e.states[kind] = st
	e.mu.Unlock()
}

// States returns a copy of the per-kind load states.
func (e *Engine) States() map[Kind]LoadState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[Kind]LoadState, len(e.states))
	for k, v := range e.states {
		out[k] = v
	}
	return out
}

// LoadCampaigns replaces the campaign collection. skipped is the number
// of rows the transformer dropped for unparseable dates.
func (e *Engine) LoadCampaigns(records []metrics.CampaignRecord, skipped int) {
	e.mu.Lock()
	e.campaigns = records
	e.states[KindCampaigns] = LoadState{Loaded: true, Progress: 100, Skipped: skipped, Records: len(records)}
	e.mu.Unlock()
	log.Printf("[Engine] %s: loaded %d campaigns (%d skipped)", e.identity, len(records), skipped)
	e.persist()
}

// LoadFlows replaces the flow-email collection.
func (e *Engine) LoadFlows(records []metrics.FlowEmailRecord, skipped int) {
	e.mu.Lock()
	e.flows = records
	e.states[KindFlows] = LoadState{Loaded: true, Progress: 100, Skipped: skipped, Records: len(records)}
	e.mu.Unlock()
	log.Printf("[Engine] %s: loaded %d flow emails (%d skipped)", e.identity, len(records), skipped)
	e.persist()
}

// LoadSubscribers replaces the subscriber collection.
func (e *Engine) LoadSubscribers(records []metrics.SubscriberRecord, skipped int) {
	e.mu.Lock()
	e.subscribers = records
	e.states[KindSubscribers] = LoadState{Loaded: true, Progress: 100, Skipped: skipped, Records: len(records)}
	e.mu.Unlock()
	log.Printf("[Engine] %s: loaded %d subscribers (%d skipped)", e.identity, len(records), skipped)
	e.persist()
}

// Reset clears all collections and persists the empty snapshot.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.campaigns = nil
	e.flows = nil
	e.subscribers = nil
	e.states = make(map[Kind]LoadState)
	e.mu.Unlock()
	log.Printf("[Engine] %s: reset", e.identity)
	e.persist()
}

// persist pushes the current snapshot through the cache. The durable
// write is fire-and-forget; failures surface on the cache event channel.
func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	e.mu.RLock()
	snap := &cache.Snapshot{
		Campaigns:   e.campaigns,
		FlowEmails:  e.flows,
		Subscribers: e.subscribers,
		SavedAt:     metrics.NewTime(e.now()),
	}
	e.mu.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.store.Persist(ctx, snap)
}

// Hydrate pulls a cached snapshot for this identity, if any, into
// memory. It returns true when records were restored. Collections that
// are already loaded are not overwritten.
func (e *Engine) Hydrate(ctx context.Context) bool {
	if e.store == nil {
		return false
	}
	snap := e.store.Hydrate(ctx)
	if snap.Empty() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	restored := false
	if len(snap.Campaigns) > 0 && !e.states[KindCampaigns].Loaded {
		e.campaigns = snap.Campaigns
		e.states[KindCampaigns] = LoadState{Loaded: true, Progress: 100, Records: len(snap.Campaigns)}
		restored = true
	}
	if len(snap.FlowEmails) > 0 && !e.states[KindFlows].Loaded {
		e.flows = snap.FlowEmails
		e.states[KindFlows] = LoadState{Loaded: true, Progress: 100, Records: len(snap.FlowEmails)}
		restored = true
	}
	if len(snap.Subscribers) > 0 && !e.states[KindSubscribers].Loaded {
		e.subscribers = snap.Subscribers
		e.states[KindSubscribers] = LoadState{Loaded: true, Progress: 100, Records: len(snap.Subscribers)}
		restored = true
	}
	if restored {
		log.Printf("[Engine] %s: hydrated %d campaigns, %d flow emails, %d subscribers",
			e.identity, len(e.campaigns), len(e.flows), len(e.subscribers))
	}
	return restored
}

// Close releases the engine's cache store, stopping its write-behind
// goroutine. A closed engine still answers queries; it just stops
// persisting.
func (e *Engine) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// Counts returns the sizes of the three collections.
func (e *Engine) Counts() (campaigns, flows, subscribers int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.campaigns), len(e.flows), len(e.subscribers)
}
