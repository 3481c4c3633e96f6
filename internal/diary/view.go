// internal/diary/view.go
package diary

import (
	"meal-diary/internal/models"
	"meal-diary/internal/nutrition"
)

// View is the render-ready state of one day.
type View struct {
	Date           string                       `json:"date"`
	Entries        []models.DiaryEntry          `json:"entries"`
	Totals         models.MacroSnapshot         `json:"totals"`
	Target         models.DailyTarget           `json:"target"`
	Source         nutrition.TotalsSource       `json:"source"`
	Bands          map[models.Macro]models.Band `json:"bands"`
	Fill           map[models.Macro]float64     `json:"fill"`
	Slots          []SlotView                   `json:"slots"`
	DynamicTargets bool                         `json:"dynamic_targets"`
	// Stale is set when the entry list could not be refreshed and the last known
	// entries were used instead.
	Stale bool `json:"stale,omitempty"`
}

// SlotView is one meal slot's progress against its allocated target.
type SlotView struct {
	Slot   models.MealSlot              `json:"meal_slot"`
	Totals models.MacroSnapshot         `json:"totals"`
	Target models.MacroSnapshot         `json:"target"`
	Bands  map[models.Macro]models.Band `json:"bands"`
	Fill   map[models.Macro]float64     `json:"fill"`
	// Magnitude is value/target capped at 2, for bars that show overshoot.
	Magnitude       map[models.Macro]float64 `json:"magnitude"`
	WithinTolerance bool                     `json:"within_tolerance"`
	Entries         []models.DiaryEntry      `json:"entries"`
	// Composition holds each entry's energy split, keyed by entry id.
	Composition map[string]nutrition.Shares `json:"composition"`
}

// MaxMagnitude caps SlotView.Magnitude.
const MaxMagnitude = 2.0

// Slot returns the view of slot, if it is active.
func (v View) Slot(slot models.MealSlot) (SlotView, bool) {
	for _, s := range v.Slots {
		if s.Slot == slot {
			return s, true
		}
	}
	return SlotView{}, false
}

type viewInput struct {
	date    string
	entries []models.DiaryEntry
	totals  models.MacroSnapshot
	source  nutrition.TotalsSource
	// slotTotals are the remote per-slot sums; nil when unavailable.
	slotTotals models.SlotTargets
	daily      models.DailyTarget
	override   models.SlotTargets
	weights    models.SlotWeights
	bands      models.MacroBands
	stale      bool
}

// buildView assembles the view. Slot totals follow the daily source: remote per-slot
// sums when the daily total is remote, local sums otherwise. Slot totals are left
// unrounded; rounding is a rendering concern.
func buildView(in viewInput) View {
	slots := nutrition.ActiveSlots(in.entries)
	targets := nutrition.Allocate(in.daily, slots, in.weights, in.override)
	totals := withKcal(in.totals)
	remoteSlots := in.source == nutrition.SourceRemote && in.slotTotals != nil

	v := View{
		Date:           in.date,
		Entries:        in.entries,
		Totals:         totals,
		Target:         in.daily,
		Source:         in.source,
		Bands:          nutrition.ClassifyMacros(totals, in.daily, in.bands),
		Fill:           fills(totals, in.daily),
		DynamicTargets: len(in.override) > 0,
		Stale:          in.stale,
	}
	for _, slot := range nutrition.SortedSlots(targets) {
		entries := models.FilterSlot(in.entries, slot)
		slotTotals := nutrition.AggregateSlot(in.entries, slot)
		if remoteSlots {
			slotTotals = in.slotTotals[slot]
		}
		slotTotals = withKcal(slotTotals)
		target := targets[slot]

		composition := make(map[string]nutrition.Shares, len(entries))
		for _, e := range entries {
			composition[e.ID] = nutrition.Composition(e.Absolute)
		}
		v.Slots = append(v.Slots, SlotView{
			Slot:            slot,
			Totals:          slotTotals,
			Target:          target,
			Bands:           nutrition.ClassifyMacros(slotTotals, target, in.bands),
			Fill:            fills(slotTotals, target),
			Magnitude:       magnitudes(slotTotals, target),
			WithinTolerance: nutrition.WithinTolerance(slotTotals.Kcal, target.Kcal),
			Entries:         entries,
			Composition:     composition,
		})
	}
	return v
}

// withKcal fills in energy from the macros when none was recorded.
func withKcal(s models.MacroSnapshot) models.MacroSnapshot {
	s.Kcal = nutrition.KcalOrDerived(s)
	return s
}

func magnitudes(value, target models.MacroSnapshot) map[models.Macro]float64 {
	out := make(map[models.Macro]float64, len(models.Macros))
	for _, m := range models.Macros {
		out[m] = nutrition.BoundedRatio(value.Get(m), target.Get(m), MaxMagnitude)
	}
	return out
}

func fills(value, target models.MacroSnapshot) map[models.Macro]float64 {
	out := make(map[models.Macro]float64, len(models.Macros))
	for _, m := range models.Macros {
		out[m] = nutrition.BarFill(value.Get(m), target.Get(m))
	}
	return out
}
