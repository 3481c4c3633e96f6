// internal/diary/day.go
package diary

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"meal-diary/internal/events"
	"meal-diary/internal/models"
	"meal-diary/internal/nutrition"
)

// EntrySet is the local, possibly optimistic, copy of the day's entries. The
// Quantity Mutator satisfies it. Epoch is read before a list is fetched and handed
// back with the list so rows read before a later confirmation are ignored.
type EntrySet interface {
	Epoch() uint64
	TrackSince(epoch uint64, entries ...models.DiaryEntry)
	Forget(ids ...string)
	Entries() []models.DiaryEntry
}

type DayConfig struct {
	Weights     models.SlotWeights
	Bands       models.MacroBands
	DailyTarget models.DailyTarget
}

type DayOption func(*Day)

func WithEntrySet(s EntrySet) DayOption {
	return func(d *Day) { d.local = s }
}

func WithEvents(b *events.Bus) DayOption {
	return func(d *Day) { d.bus = b }
}

func WithAggregateSource(a AggregateSource) DayOption {
	return func(d *Day) { d.aggregates = a }
}

func WithTargetSource(t TargetSource) DayOption {
	return func(d *Day) { d.targets = t }
}

func WithSlotTotalsSource(s SlotTotalsSource) DayOption {
	return func(d *Day) { d.slotTotals = s }
}

func WithGoalSource(g GoalSource) DayOption {
	return func(d *Day) { d.goals = g }
}

// Day loads one diary day, keeps the local entry set in step with the record store
// and recomputes the view after every change.
type Day struct {
	date    string
	records RecordStore
	cfg     DayConfig
	agg     *nutrition.Aggregator
	log     zerolog.Logger

	local      EntrySet
	bus        *events.Bus
	aggregates AggregateSource
	targets    TargetSource
	slotTotals SlotTotalsSource
	goals      GoalSource

	group singleflight.Group
	// loads numbers every load in start order.
	loads atomic.Uint64

	mu       sync.RWMutex
	known    []models.DiaryEntry
	knownGen uint64
	view     View
	viewGen  uint64
}

// NewDay builds a session for date. Optional sources implemented by records are
// picked up automatically; options override them.
func NewDay(date string, records RecordStore, cfg DayConfig, log zerolog.Logger, opts ...DayOption) *Day {
	if cfg.Weights == nil {
		cfg.Weights = nutrition.DefaultWeights()
	}
	if cfg.Bands == nil {
		cfg.Bands = nutrition.DefaultBands()
	}

	d := &Day{
		date:    date,
		records: records,
		cfg:     cfg,
		agg:     nutrition.NewAggregator(log),
		log:     log.With().Str("component", "day").Str("date", date).Logger(),
	}
	if a, ok := records.(AggregateSource); ok {
		d.aggregates = a
	}
	if t, ok := records.(TargetSource); ok {
		d.targets = t
	}
	if s, ok := records.(SlotTotalsSource); ok {
		d.slotTotals = s
	}
	if g, ok := records.(GoalSource); ok {
		d.goals = g
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Day) Date() string { return d.date }

// View returns the most recently computed view.
func (d *Day) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

// Load fetches the entry list, the remote aggregates, dynamic slot targets and the
// daily goal concurrently and rebuilds the view. Failures of individual sources
// degrade to local data; only context cancellation is returned.
func (d *Day) Load(ctx context.Context) (View, error) {
	v, _, err := d.load(ctx)
	return v, err
}

func (d *Day) load(ctx context.Context) (View, uint64, error) {
	gen := d.loads.Add(1)
	var since uint64
	if d.local != nil {
		since = d.local.Epoch()
	}

	var (
		list        []models.DiaryEntry
		listErr     error
		remote      models.MacroSnapshot
		remoteErr   error
		remoteSlots models.SlotTargets
		override    models.SlotTargets
		daily       = d.cfg.DailyTarget
	)

	// Sources fail independently; a failing one must not cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		list, listErr = d.records.ListEntries(ctx, d.date)
		return nil
	})
	g.Go(func() error {
		if d.aggregates == nil {
			remoteErr = ErrUnavailable
			return nil
		}
		remote, remoteErr = d.aggregates.FetchDailyAggregate(ctx, d.date)
		return nil
	})
	if d.slotTotals != nil {
		g.Go(func() error {
			t, err := d.slotTotals.FetchSlotTotals(ctx, d.date)
			if err != nil {
				d.log.Warn().Err(err).Msg("Remote slot totals unavailable, summing locally")
				return nil
			}
			remoteSlots = t
			return nil
		})
	}
	if d.targets != nil {
		g.Go(func() error {
			t, err := d.targets.FetchPerSlotDynamicTargets(ctx, d.date)
			if err != nil {
				d.log.Warn().Err(err).Msg("Dynamic slot targets unavailable, using weight split")
				return nil
			}
			override = t
			return nil
		})
	}
	if d.goals != nil {
		g.Go(func() error {
			t, err := d.goals.FetchDailyTarget(ctx, d.date)
			if err != nil || !t.Valid() {
				d.log.Warn().Err(err).Msg("Daily target unavailable, using configured default")
				return nil
			}
			daily = t
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return d.View(), gen, err
	}

	stale := listErr != nil
	if stale {
		d.log.Warn().Err(listErr).Msg("Entry list unavailable, using last known entries")
	} else {
		d.reconcile(gen, since, list)
	}
	entries := d.entries()

	fetch := func(context.Context) (models.MacroSnapshot, error) { return remote, remoteErr }
	totals, source := d.agg.FetchOrAggregate(ctx, fetch, entries)

	v := buildView(viewInput{
		date:       d.date,
		entries:    entries,
		totals:     totals,
		source:     source,
		slotTotals: remoteSlots,
		daily:      daily,
		override:   override,
		weights:    d.cfg.Weights,
		bands:      d.cfg.Bands,
		stale:      stale,
	})

	d.mu.Lock()
	if gen < d.viewGen {
		current := d.view
		d.mu.Unlock()
		d.log.Debug().Uint64("load", gen).Msg("Load superseded by a newer one, view discarded")
		return current, gen, nil
	}
	d.view = v
	d.viewGen = gen
	d.mu.Unlock()

	d.log.Info().
		Int("entries", len(entries)).
		Str("source", string(source)).
		Float64("kcal", totals.Kcal).
		Bool("dynamic_targets", v.DynamicTargets).
		Msg("Day view updated")
	d.bus.Emit(events.Event{Type: events.DayUpdated, Data: v})
	return v, gen, nil
}

// Resync reloads the day from the source of truth. Concurrent calls share one load,
// but a call never settles for a load that started before it was made: that load
// may have read the list before the change being resynced.
func (d *Day) Resync(ctx context.Context) {
	floor := d.loads.Load()
	for {
		res, err, shared := d.group.Do(d.date, func() (interface{}, error) {
			_, gen, err := d.load(ctx)
			return gen, err
		})
		if err != nil {
			d.log.Warn().Err(err).Msg("Resync aborted")
			return
		}
		if res.(uint64) > floor {
			if shared {
				d.log.Debug().Msg("Resync coalesced")
			}
			return
		}
		d.log.Debug().Msg("Joined a load older than the request, reloading")
	}
}

// reconcile records a fresh server list as the known entries and aligns the local
// entry set with it. Lists of loads older than the last reconciled one are dropped.
func (d *Day) reconcile(gen, since uint64, list []models.DiaryEntry) {
	d.mu.Lock()
	if gen < d.knownGen {
		d.mu.Unlock()
		return
	}
	prev := d.known
	d.known = list
	d.knownGen = gen
	d.mu.Unlock()

	if d.local == nil {
		return
	}
	present := make(map[string]bool, len(list))
	for _, e := range list {
		present[e.ID] = true
	}
	var gone []string
	for _, e := range prev {
		if !present[e.ID] {
			gone = append(gone, e.ID)
		}
	}
	d.local.Forget(gone...)
	d.local.TrackSince(since, list...)
}

func (d *Day) entries() []models.DiaryEntry {
	if d.local != nil {
		return d.local.Entries()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.DiaryEntry(nil), d.known...)
}
