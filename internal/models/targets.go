// internal/models/targets.go
package models

type Band string

const (
	BandGreen   Band = "green"
	BandAmber   Band = "amber"
	BandRed     Band = "red"
	BandNeutral Band = "neutral"
)

// BandRange is an inclusive [Lower, Upper] ratio range.
type BandRange [2]float64

func (r BandRange) Lower() float64 { return r[0] }
func (r BandRange) Upper() float64 { return r[1] }

func (r BandRange) Contains(ratio float64) bool {
	return ratio >= r[0] && ratio <= r[1]
}

type BandThresholds struct {
	Green BandRange `json:"green" yaml:"green"`
	Amber BandRange `json:"amber" yaml:"amber"`
}

// MacroBands holds the thresholds for each macro.
type MacroBands map[Macro]BandThresholds

// SlotWeights maps a meal slot to its share of the daily target.
type SlotWeights map[MealSlot]float64

// SlotTargets maps a meal slot to its target snapshot.
type SlotTargets map[MealSlot]MacroSnapshot

// DailyTarget is the day's goal. Read-only to the reconciliation core.
type DailyTarget = MacroSnapshot
