// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"meal-diary/internal/models"
)

var errInvalidParams = errors.New("invalid parameters")

type DateParams struct {
	Date string `json:"date" description:"Diary day (YYYY-MM-DD)"`
}

type IDParams struct {
	ID string `json:"id" description:"Entry id"`
}

type LogEntryParams struct {
	Date     string  `json:"date" description:"Diary day (YYYY-MM-DD)"`
	MealSlot string  `json:"meal_slot" description:"breakfast, lunch, dinner, snack or a custom slot"`
	FoodName string  `json:"food_name" description:"Name of the food"`
	Unit     string  `json:"unit,omitempty" description:"mass, volume or count (defaults to mass)"`
	Quantity float64 `json:"quantity" description:"Portion size in the entry's unit"`
	Kcal     float64 `json:"kcal" description:"Energy of the whole portion"`
	Protein  float64 `json:"protein" description:"Protein grams of the whole portion"`
	Carbs    float64 `json:"carbs" description:"Carbohydrate grams of the whole portion"`
	Fats     float64 `json:"fats" description:"Fat grams of the whole portion"`
}

type UpdateQuantityParams struct {
	ID       string  `json:"id" description:"Entry id"`
	Quantity float64 `json:"quantity" description:"New portion size"`
}

type TargetParams struct {
	Date     string  `json:"date" description:"Diary day (YYYY-MM-DD)"`
	MealSlot string  `json:"meal_slot,omitempty" description:"Meal slot, for slot targets"`
	Kcal     float64 `json:"kcal"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

func (p TargetParams) snapshot() models.MacroSnapshot {
	return models.MacroSnapshot{Kcal: p.Kcal, Protein: p.Protein, Carbs: p.Carbs, Fats: p.Fats}
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal arguments: %v", errInvalidParams, err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}

	return nil
}

func extractDate(req *protocol.CallToolRequest) (string, error) {
	var params DateParams
	if err := extractParams(req, &params); err != nil {
		return "", err
	}
	if params.Date == "" {
		return "", fmt.Errorf("%w: date is required", errInvalidParams)
	}
	return params.Date, nil
}

func (s *DiaryServer) registerTools() {
	s.tools = map[string]toolHandler{
		"list_entries":          s.handleListEntries,
		"log_entry":             s.handleLogEntry,
		"update_entry_quantity": s.handleUpdateEntryQuantity,
		"delete_entry":          s.handleDeleteEntry,
		"get_daily_aggregate":   s.handleGetDailyAggregate,
		"get_slot_totals":       s.handleGetSlotTotals,
		"get_slot_targets":      s.handleGetSlotTargets,
		"set_slot_target":       s.handleSetSlotTarget,
		"clear_slot_targets":    s.handleClearSlotTargets,
		"get_daily_target":      s.handleGetDailyTarget,
		"set_daily_target":      s.handleSetDailyTarget,
	}

	for name := range s.tools {
		s.log.Debug().Str("tool", name).Msg("Registered tool")
	}
}

func (s *DiaryServer) handleListEntries(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	date, err := extractDate(req)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.ListEntries(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	return createJSONResponse(entries)
}

// handleLogEntry records a portion. Macros are absolute for the given quantity.
func (s *DiaryServer) handleLogEntry(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params LogEntryParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.FoodName == "" {
		return nil, fmt.Errorf("%w: food name is required", errInvalidParams)
	}

	entry, err := s.store.SaveEntry(ctx, models.NewEntry{
		Date:     params.Date,
		MealSlot: models.NormalizeSlot(params.MealSlot),
		FoodName: params.FoodName,
		Quantity: params.Quantity,
		Unit:     models.ParseUnit(params.Unit),
		Macros: models.MacroSnapshot{
			Kcal:    params.Kcal,
			Protein: params.Protein,
			Carbs:   params.Carbs,
			Fats:    params.Fats,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save entry: %w", err)
	}

	s.log.Info().Str("entry_id", entry.ID).Str("date", entry.Date).Str("meal_slot", string(entry.MealSlot)).Msg("Entry logged")
	return createJSONResponse(entry)
}

// handleUpdateEntryQuantity returns the authoritative post-update state.
func (s *DiaryServer) handleUpdateEntryQuantity(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UpdateQuantityParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.ID == "" {
		return nil, fmt.Errorf("%w: id is required", errInvalidParams)
	}

	update, err := s.store.UpdateEntryQuantity(ctx, params.ID, params.Quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	return createJSONResponse(update)
}

func (s *DiaryServer) handleDeleteEntry(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params IDParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.ID == "" {
		return nil, fmt.Errorf("%w: id is required", errInvalidParams)
	}

	if err := s.store.DeleteEntry(ctx, params.ID); err != nil {
		return nil, fmt.Errorf("failed to delete entry: %w", err)
	}

	return createJSONResponse(map[string]interface{}{"id": params.ID, "deleted": true})
}

func (s *DiaryServer) handleGetDailyAggregate(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	date, err := extractDate(req)
	if err != nil {
		return nil, err
	}

	agg, err := s.store.DailyAggregate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate day: %w", err)
	}

	return createJSONResponse(agg)
}

func (s *DiaryServer) handleGetSlotTotals(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	date, err := extractDate(req)
	if err != nil {
		return nil, err
	}

	totals, err := s.store.SlotTotals(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load slot totals: %w", err)
	}

	return createJSONResponse(totals)
}

func (s *DiaryServer) handleGetSlotTargets(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	date, err := extractDate(req)
	if err != nil {
		return nil, err
	}

	targets, err := s.store.SlotTargets(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load slot targets: %w", err)
	}

	return createJSONResponse(targets)
}

func (s *DiaryServer) handleSetSlotTarget(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params TargetParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.Date == "" || params.MealSlot == "" {
		return nil, fmt.Errorf("%w: date and meal_slot are required", errInvalidParams)
	}

	slot := models.NormalizeSlot(params.MealSlot)
	if err := s.store.SetSlotTarget(ctx, params.Date, slot, params.snapshot()); err != nil {
		return nil, fmt.Errorf("failed to set slot target: %w", err)
	}

	return createJSONResponse(models.SlotTargets{slot: params.snapshot()})
}

func (s *DiaryServer) handleClearSlotTargets(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	date, err := extractDate(req)
	if err != nil {
		return nil, err
	}

	if err := s.store.ClearSlotTargets(ctx, date); err != nil {
		return nil, fmt.Errorf("failed to clear slot targets: %w", err)
	}

	return createJSONResponse(models.SlotTargets{})
}

func (s *DiaryServer) handleGetDailyTarget(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	date, err := extractDate(req)
	if err != nil {
		return nil, err
	}

	target, err := s.store.DailyTarget(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily target: %w", err)
	}

	return createJSONResponse(target)
}

func (s *DiaryServer) handleSetDailyTarget(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params TargetParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.Date == "" {
		return nil, fmt.Errorf("%w: date is required", errInvalidParams)
	}

	if err := s.store.SetDailyTarget(ctx, params.Date, params.snapshot()); err != nil {
		return nil, fmt.Errorf("failed to set daily target: %w", err)
	}

	return createJSONResponse(params.snapshot())
}
