// internal/models/snapshot.go
package models

import "math"

// MacroSnapshot bundles the four tracked macro values. Values are kept unrounded;
// rounding is a display concern.
type MacroSnapshot struct {
	Kcal    float64 `json:"kcal" yaml:"kcal"`
	Protein float64 `json:"protein" yaml:"protein"`
	Carbs   float64 `json:"carbs" yaml:"carbs"`
	Fats    float64 `json:"fats" yaml:"fats"`
}

type Macro string

const (
	MacroKcal    Macro = "kcal"
	MacroProtein Macro = "protein"
	MacroCarbs   Macro = "carbs"
	MacroFats    Macro = "fats"
)

// Macros lists every macro in display order.
var Macros = []Macro{MacroKcal, MacroProtein, MacroCarbs, MacroFats}

func (s MacroSnapshot) Get(m Macro) float64 {
	switch m {
	case MacroKcal:
		return s.Kcal
	case MacroProtein:
		return s.Protein
	case MacroCarbs:
		return s.Carbs
	case MacroFats:
		return s.Fats
	}
	return 0
}

func (s MacroSnapshot) Add(o MacroSnapshot) MacroSnapshot {
	return MacroSnapshot{
		Kcal:    s.Kcal + o.Kcal,
		Protein: s.Protein + o.Protein,
		Carbs:   s.Carbs + o.Carbs,
		Fats:    s.Fats + o.Fats,
	}
}

func (s MacroSnapshot) Scale(f float64) MacroSnapshot {
	return s.Map(func(v float64) float64 { return v * f })
}

// Map applies fn to every field.
func (s MacroSnapshot) Map(fn func(float64) float64) MacroSnapshot {
	return MacroSnapshot{
		Kcal:    fn(s.Kcal),
		Protein: fn(s.Protein),
		Carbs:   fn(s.Carbs),
		Fats:    fn(s.Fats),
	}
}

// Clamped floors negative fields at zero.
func (s MacroSnapshot) Clamped() MacroSnapshot {
	return s.Map(func(v float64) float64 { return math.Max(0, v) })
}

// Rounded rounds each field to the nearest integer.
func (s MacroSnapshot) Rounded() MacroSnapshot {
	return s.Map(math.Round)
}

func (s MacroSnapshot) IsZero() bool {
	return s.Kcal == 0 && s.Protein == 0 && s.Carbs == 0 && s.Fats == 0
}

// Valid reports whether every field is a finite number.
func (s MacroSnapshot) Valid() bool {
	for _, m := range Macros {
		v := s.Get(m)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
