// internal/mutator/mutator.go

// Package mutator owns the edit lifecycle of diary entry quantities: optimistic
// rescaling, debounced and serialized commits, reconciliation and rollback.
package mutator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"meal-diary/internal/diary"
	"meal-diary/internal/events"
	"meal-diary/internal/models"
	"meal-diary/internal/nutrition"
)

// Phase is the per-entry edit state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseEditing    Phase = "editing"
	PhaseCommitting Phase = "committing"
)

const (
	DefaultDebounce      = 500 * time.Millisecond
	DefaultCommitTimeout = 15 * time.Second
)

// Store is the part of the record store the mutator writes through.
type Store interface {
	UpdateEntryQuantity(ctx context.Context, id string, quantity float64) (*models.EntryUpdate, error)
	DeleteEntry(ctx context.Context, id string) error
}

// Resyncer reloads totals from the source of truth.
type Resyncer interface {
	Resync(ctx context.Context)
}

type Config struct {
	Debounce      time.Duration
	CommitTimeout time.Duration
}

type Option func(*Mutator)

func WithClock(c Clock) Option {
	return func(m *Mutator) { m.clock = c }
}

func WithResyncer(r Resyncer) Option {
	return func(m *Mutator) { m.resync = r }
}

func WithBus(b *events.Bus) Option {
	return func(m *Mutator) { m.bus = b }
}

// Mutator tracks a set of entries. Every entry has its own state machine; at most one
// commit per entry is in flight while different entries commit independently.
type Mutator struct {
	mu      sync.Mutex
	entries map[string]*entryState
	order   []string

	store  Store
	resync Resyncer
	bus    *events.Bus
	clock  Clock
	cfg    Config
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// epoch advances on every commit resolution and delete.
	epoch   uint64
	deleted map[string]uint64
}

type entryState struct {
	display   models.DiaryEntry
	confirmed models.DiaryEntry
	phase     Phase

	inFlight   bool
	pending    float64
	hasPending bool
	lastSent   float64
	err        error

	timer    Timer
	timerSeq int

	// epoch is the mutator epoch of the last resolution of this entry.
	epoch uint64
	// cancelled is set when the edit was cancelled with a commit in flight.
	cancelled bool
}

func New(store Store, cfg Config, log zerolog.Logger, opts ...Option) *Mutator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = DefaultCommitTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Mutator{
		entries: make(map[string]*entryState),
		deleted: make(map[string]uint64),
		store:   store,
		clock:   realClock{},
		cfg:     cfg,
		log:     log.With().Str("component", "mutator").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Track registers server-confirmed entries and caches their per-unit rates. Entries
// that are mid-edit keep their local state.
func (m *Mutator) Track(entries ...models.DiaryEntry) {
	m.TrackSince(m.Epoch(), entries...)
}

// Epoch returns the current resolution epoch. Callers read it before fetching a
// server list and hand it back to TrackSince.
func (m *Mutator) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// TrackSince is Track for rows read at epoch. Rows older than the entry's last
// confirmation or deletion are ignored.
func (m *Mutator) TrackSince(epoch uint64, entries ...models.DiaryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if at, ok := m.deleted[e.ID]; ok {
			if at > epoch {
				m.log.Debug().Str("entry_id", e.ID).Msg("Ignoring stale row of deleted entry")
				continue
			}
			delete(m.deleted, e.ID)
		}

		e.PerUnit = nutrition.Derive(e.Absolute, e.Quantity)

		st, ok := m.entries[e.ID]
		if !ok {
			m.order = append(m.order, e.ID)
			m.entries[e.ID] = &entryState{display: e, confirmed: e, phase: PhaseIdle, lastSent: e.Quantity}
			continue
		}
		if st.phase != PhaseIdle {
			m.log.Debug().Str("entry_id", e.ID).Str("phase", string(st.phase)).Msg("Entry busy, keeping local state")
			continue
		}
		if st.epoch > epoch {
			m.log.Debug().Str("entry_id", e.ID).Float64("quantity", e.Quantity).Msg("Ignoring row older than last confirmation")
			continue
		}
		st.display, st.confirmed, st.lastSent = e, e, e.Quantity
	}
}

// Forget drops entries that are no longer present on the server.
func (m *Mutator) Forget(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.untrackLocked(id)
	}
}

func (m *Mutator) untrackLocked(id string) {
	st, ok := m.entries[id]
	if !ok {
		return
	}
	m.stopTimerLocked(st)
	delete(m.entries, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Entries returns the displayed state of every tracked entry in tracking order.
func (m *Mutator) Entries() []models.DiaryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DiaryEntry, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id].display)
	}
	return out
}

// Entry returns the displayed state of one entry.
func (m *Mutator) Entry(id string) (models.DiaryEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.entries[id]
	if !ok {
		return models.DiaryEntry{}, false
	}
	return st.display, true
}

// Confirmed returns the last server-confirmed state of one entry.
func (m *Mutator) Confirmed(id string) (models.DiaryEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.entries[id]
	if !ok {
		return models.DiaryEntry{}, false
	}
	return st.confirmed, true
}

func (m *Mutator) Phase(id string) Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.entries[id]; ok {
		return st.phase
	}
	return PhaseIdle
}

// Wait blocks until every dispatched commit and resync has resolved.
func (m *Mutator) Wait() {
	m.wg.Wait()
}

// Close stops pending timers, aborts outstanding requests and waits for them.
func (m *Mutator) Close() {
	m.mu.Lock()
	for _, st := range m.entries {
		m.stopTimerLocked(st)
	}
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

func (m *Mutator) lookupLocked(id string) (*entryState, error) {
	st, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", diary.ErrEntryNotFound, id)
	}
	return st, nil
}

func (m *Mutator) triggerResync() {
	if m.resync == nil {
		return
	}
	m.resync.Resync(m.ctx)
}
