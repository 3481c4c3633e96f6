// internal/mutator/step.go
package mutator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"meal-diary/internal/diary"
	"meal-diary/internal/models"
)

type Direction int

const (
	Up Direction = iota
	Down
)

// Modifier overrides the unit-based step. Exactly one applies per action.
type Modifier int

const (
	ModDefault Modifier = iota
	ModFine
	ModCoarse
)

const (
	FineStep   = 1.0
	CoarseStep = 50.0
	CountStep  = 1.0
	MassStep   = 10.0
)

// StepSize returns the increment for one stepper click.
func StepSize(unit models.Unit, mod Modifier) float64 {
	switch mod {
	case ModFine:
		return FineStep
	case ModCoarse:
		return CoarseStep
	}
	if unit == models.UnitCount {
		return CountStep
	}
	return MassStep
}

// ParseQuantity reads free-form numeric input. Both "." and "," are accepted as the
// decimal separator.
func ParseQuantity(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", diary.ErrInvalidQuantity, s)
	}
	if err := validate(q); err != nil {
		return 0, err
	}
	return q, nil
}

func validate(q float64) error {
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
		return fmt.Errorf("%w: got %v", diary.ErrInvalidQuantity, q)
	}
	return nil
}
