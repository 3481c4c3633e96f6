// internal/models/entry.go
package models

import (
	"strings"
	"time"
)

type MealSlot string

const (
	Breakfast MealSlot = "breakfast"
	Lunch     MealSlot = "lunch"
	Dinner    MealSlot = "dinner"
	Snack     MealSlot = "snack"
)

// DefaultSlots are always active, whether or not they hold entries.
var DefaultSlots = []MealSlot{Breakfast, Lunch, Dinner}

// NormalizeSlot lower-cases and trims a slot name. Unknown names are kept as-is;
// the slot set is open-ended.
func NormalizeSlot(s string) MealSlot {
	return MealSlot(strings.ToLower(strings.TrimSpace(s)))
}

type Unit string

const (
	UnitMass   Unit = "mass"
	UnitVolume Unit = "volume"
	UnitCount  Unit = "count"
)

// ParseUnit maps both unit kinds and common unit symbols onto a Unit.
// Anything unrecognised is treated as mass, the default unit of the diary.
func ParseUnit(s string) Unit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "volume", "ml", "l", "cl", "dl":
		return UnitVolume
	case "count", "unit", "units", "unidad", "ud", "serving", "piece":
		return UnitCount
	default:
		return UnitMass
	}
}

// DiaryEntry is one recorded portion of food.
type DiaryEntry struct {
	ID       string        `json:"id"`
	Date     string        `json:"date"`
	MealSlot MealSlot      `json:"meal_slot"`
	FoodName string        `json:"food_name,omitempty"`
	Quantity float64       `json:"quantity"`
	Unit     Unit          `json:"unit"`
	Absolute MacroSnapshot `json:"absolute"`
	// PerUnit is derived from a server-confirmed Absolute/Quantity pair and never
	// from an optimistic value.
	PerUnit   MacroSnapshot `json:"-"`
	UpdatedAt time.Time     `json:"updated_at,omitempty"`
}

// NewEntry is the payload for recording a portion. Macros are absolute for Quantity.
type NewEntry struct {
	Date     string        `json:"date"`
	MealSlot MealSlot      `json:"meal_slot"`
	FoodName string        `json:"food_name"`
	Quantity float64       `json:"quantity"`
	Unit     Unit          `json:"unit"`
	Macros   MacroSnapshot `json:"macros"`
}

// EntryUpdate is the authoritative post-update state returned by the record store.
type EntryUpdate struct {
	ID       string        `json:"id"`
	Quantity float64       `json:"quantity"`
	Absolute MacroSnapshot `json:"absolute"`
	MealSlot MealSlot      `json:"meal_slot"`
	Unit     Unit          `json:"unit"`
}

// FilterSlot returns the entries recorded in slot.
func FilterSlot(entries []DiaryEntry, slot MealSlot) []DiaryEntry {
	var out []DiaryEntry
	for _, e := range entries {
		if e.MealSlot == slot {
			out = append(out, e)
		}
	}
	return out
}
