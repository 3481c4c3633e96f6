// internal/nutrition/allocate.go
package nutrition

import (
	"gonum.org/v1/gonum/floats"

	"meal-diary/internal/models"
)

// DefaultWeights is the proportional split used when no dynamic override exists.
func DefaultWeights() models.SlotWeights {
	return models.SlotWeights{
		models.Breakfast: 0.25,
		models.Lunch:     0.45,
		models.Dinner:    0.30,
		models.Snack:     0.15,
	}
}

// ActiveSlots returns the default slots plus every slot holding at least one entry.
// Snack only becomes active once a snack entry exists.
func ActiveSlots(entries []models.DiaryEntry) []models.MealSlot {
	seen := map[models.MealSlot]bool{}
	var slots []models.MealSlot
	add := func(s models.MealSlot) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		slots = append(slots, s)
	}
	for _, s := range models.DefaultSlots {
		add(s)
	}
	for _, e := range entries {
		add(e.MealSlot)
	}
	sortSlots(slots)
	return slots
}

// Renormalize keeps only the weights of active slots and scales them to sum to 1.
// Negative or missing weights count as zero. When every active weight is zero the
// result is all zeros.
func Renormalize(weights models.SlotWeights, active []models.MealSlot) models.SlotWeights {
	slots := dedupe(active)
	w := make([]float64, len(slots))
	for i, s := range slots {
		if v := weights[s]; v > 0 {
			w[i] = v
		}
	}
	if sum := floats.Sum(w); sum > 0 {
		floats.Scale(1/sum, w)
	}

	out := make(models.SlotWeights, len(slots))
	for i, s := range slots {
		out[s] = w[i]
	}
	return out
}

// Allocate splits daily across slots. A slot present in override gets that target
// verbatim; every other slot gets daily scaled by its renormalized weight.
func Allocate(daily models.MacroSnapshot, slots []models.MealSlot, weights models.SlotWeights, override models.SlotTargets) models.SlotTargets {
	normalized := Renormalize(weights, slots)

	out := make(models.SlotTargets, len(normalized))
	for s, w := range normalized {
		if t, ok := override[s]; ok {
			out[s] = t
			continue
		}
		out[s] = daily.Scale(w).Clamped()
	}
	return out
}

func dedupe(slots []models.MealSlot) []models.MealSlot {
	seen := make(map[models.MealSlot]bool, len(slots))
	out := make([]models.MealSlot, 0, len(slots))
	for _, s := range slots {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
