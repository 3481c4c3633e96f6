// internal/nutrition/totals.go
package nutrition

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"meal-diary/internal/models"
)

// Aggregate sums every field across entries. An empty slice yields the zero snapshot.
func Aggregate(entries []models.DiaryEntry) models.MacroSnapshot {
	var total models.MacroSnapshot
	for _, e := range entries {
		total = total.Add(e.Absolute)
	}
	return total
}

// AggregateSlot sums the entries of one meal slot.
func AggregateSlot(entries []models.DiaryEntry, slot models.MealSlot) models.MacroSnapshot {
	return Aggregate(models.FilterSlot(entries, slot))
}

type TotalsSource string

const (
	SourceRemote TotalsSource = "remote"
	SourceLocal  TotalsSource = "local"
)

// AggregateFetcher retrieves the authoritative daily aggregate.
type AggregateFetcher func(ctx context.Context) (models.MacroSnapshot, error)

// Aggregator resolves daily totals remote-first with a local fallback.
type Aggregator struct {
	log zerolog.Logger
}

func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{log: log.With().Str("component", "aggregator").Logger()}
}

// FetchOrAggregate asks fetch for the authoritative aggregate and falls back to the
// rounded sum of local on any failure: transport error, malformed snapshot or a
// missing fetcher. It never fails.
func (a *Aggregator) FetchOrAggregate(ctx context.Context, fetch AggregateFetcher, local []models.DiaryEntry) (models.MacroSnapshot, TotalsSource) {
	remote, err := a.fetch(ctx, fetch)
	if err == nil {
		return remote, SourceRemote
	}

	totals := Aggregate(local).Rounded().Clamped()
	a.log.Warn().
		Err(err).
		Int("entries", len(local)).
		Float64("kcal", totals.Kcal).
		Msg("Remote aggregate unavailable, using local totals")
	return totals, SourceLocal
}

func (a *Aggregator) fetch(ctx context.Context, fetch AggregateFetcher) (snap models.MacroSnapshot, err error) {
	if fetch == nil {
		return snap, fmt.Errorf("no aggregate source")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregate fetch panicked: %v", r)
		}
	}()

	snap, err = fetch(ctx)
	if err != nil {
		return snap, err
	}
	if !snap.Valid() || snap != snap.Clamped() {
		return snap, fmt.Errorf("malformed aggregate: %+v", snap)
	}
	return snap, nil
}

// SortedSlots returns the keys of m, default slots first, the rest alphabetically.
func SortedSlots(m models.SlotTargets) []models.MealSlot {
	slots := make([]models.MealSlot, 0, len(m))
	for s := range m {
		slots = append(slots, s)
	}
	sortSlots(slots)
	return slots
}

func slotRank(s models.MealSlot) int {
	switch s {
	case models.Breakfast:
		return 0
	case models.Lunch:
		return 1
	case models.Dinner:
		return 2
	case models.Snack:
		return 3
	}
	return 4
}

func sortSlots(slots []models.MealSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		ri, rj := slotRank(slots[i]), slotRank(slots[j])
		if ri != rj {
			return ri < rj
		}
		return slots[i] < slots[j]
	})
}
