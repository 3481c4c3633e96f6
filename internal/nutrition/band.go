// internal/nutrition/band.go
package nutrition

import (
	"math"

	"meal-diary/internal/models"
)

// ToleranceFraction is the fixed per-meal acceptance window (±8%).
const ToleranceFraction = 0.08

// DefaultBands returns the green/amber ratio ranges used on a rest day.
func DefaultBands() models.MacroBands {
	return models.MacroBands{
		models.MacroKcal:    {Green: models.BandRange{0.90, 1.10}, Amber: models.BandRange{0.85, 1.15}},
		models.MacroProtein: {Green: models.BandRange{0.90, 1.10}, Amber: models.BandRange{0.80, 1.20}},
		models.MacroCarbs:   {Green: models.BandRange{0.85, 1.15}, Amber: models.BandRange{0.75, 1.25}},
		models.MacroFats:    {Green: models.BandRange{0.90, 1.20}, Amber: models.BandRange{0.80, 1.30}},
	}
}

// TrainingDayBands widens the carbohydrate ranges for days with a training session.
func TrainingDayBands() models.MacroBands {
	b := DefaultBands()
	b[models.MacroCarbs] = models.BandThresholds{
		Green: models.BandRange{0.75, 1.25},
		Amber: models.BandRange{0.65, 1.35},
	}
	return b
}

// Classify maps value/target onto a band. The ratio is not clamped: 130% and 500% of
// target must classify differently.
func Classify(value, target float64, th models.BandThresholds) models.Band {
	if !(target > 0) {
		return models.BandNeutral
	}
	ratio := value / target
	switch {
	case th.Green.Contains(ratio):
		return models.BandGreen
	case th.Amber.Contains(ratio):
		return models.BandAmber
	default:
		return models.BandRed
	}
}

// ClassifyMacros classifies every macro of value against target. Macros missing from
// bands fall back to DefaultBands.
func ClassifyMacros(value, target models.MacroSnapshot, bands models.MacroBands) map[models.Macro]models.Band {
	defaults := DefaultBands()
	out := make(map[models.Macro]models.Band, len(models.Macros))
	for _, m := range models.Macros {
		th, ok := bands[m]
		if !ok {
			th = defaults[m]
		}
		out[m] = Classify(value.Get(m), target.Get(m), th)
	}
	return out
}

// WithinTolerance reports whether value lies within ±8% of a positive target.
func WithinTolerance(value, target float64) bool {
	if !(target > 0) {
		return false
	}
	lo := target * (1 - ToleranceFraction)
	hi := target * (1 + ToleranceFraction)
	return value >= lo && value <= hi
}

// BarFill is the progress-bar width in percent, clamped to [0, 100].
func BarFill(value, target float64) float64 {
	if !(target > 0) {
		return 0
	}
	return clamp(value/target*100, 0, 100)
}

// BoundedRatio clamps value/target to [0, max] for magnitude comparisons.
func BoundedRatio(value, target, max float64) float64 {
	if !(target > 0) {
		return 0
	}
	return clamp(value/target, 0, max)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
