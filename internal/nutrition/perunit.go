// internal/nutrition/perunit.go

// Package nutrition holds the pure arithmetic of the diary: per-unit scaling,
// totals, target allocation across meal slots and band classification.
package nutrition

import (
	"math"

	"meal-diary/internal/models"
)

// Epsilon floors the quantity divisor so a zero or negative quantity never divides.
const Epsilon = 1e-4

// Derive returns the per-unit macro rate of an absolute snapshot. The result is
// clamped at zero but kept unrounded; Apply does the display rounding.
func Derive(absolute models.MacroSnapshot, quantity float64) models.MacroSnapshot {
	q := quantity
	if !(q > Epsilon) {
		q = Epsilon
	}
	return absolute.Scale(1 / q).Clamped()
}

// Apply scales a per-unit rate to quantity, rounding each field and clamping at zero.
// It is not an exact inverse of Derive: repeated cycles may drift by one unit per
// macro until the next server reconciliation.
func Apply(perUnit models.MacroSnapshot, quantity float64) models.MacroSnapshot {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		quantity = 0
	}
	return perUnit.Scale(quantity).Rounded().Clamped()
}
