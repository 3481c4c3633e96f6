// internal/nutrition/composition.go
package nutrition

import "meal-diary/internal/models"

// Atwater factors, kcal per gram.
const (
	KcalPerGramProtein = 4.0
	KcalPerGramCarbs   = 4.0
	KcalPerGramFat     = 9.0
)

func EnergyFromMacros(s models.MacroSnapshot) float64 {
	return s.Protein*KcalPerGramProtein + s.Carbs*KcalPerGramCarbs + s.Fats*KcalPerGramFat
}

// KcalOrDerived prefers the recorded energy and derives it from macros when absent.
func KcalOrDerived(s models.MacroSnapshot) float64 {
	if s.Kcal > 0 {
		return s.Kcal
	}
	return EnergyFromMacros(s)
}

// Shares is the percentage of energy contributed by each macro.
type Shares struct {
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fats    float64 `json:"fats"`
}

// Composition splits an entry's energy into per-macro shares for stacked bars.
func Composition(s models.MacroSnapshot) Shares {
	total := KcalOrDerived(s)
	if total <= 0 {
		return Shares{}
	}
	return Shares{
		Protein: clamp(s.Protein*KcalPerGramProtein/total*100, 0, 100),
		Carbs:   clamp(s.Carbs*KcalPerGramCarbs/total*100, 0, 100),
		Fats:    clamp(s.Fats*KcalPerGramFat/total*100, 0, 100),
	}
}
