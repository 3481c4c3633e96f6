// internal/client/client.go

// Package client talks to the meal diary tool server and implements the record
// store contract the reconciliation core consumes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"meal-diary/internal/diary"
	"meal-diary/internal/models"
)

const DefaultTimeout = 10 * time.Second

var (
	updateFields = []string{"quantity", "absolute", "meal_slot", "unit"}
	entryFields  = []string{"id", "quantity", "absolute", "meal_slot", "unit"}
	macroFields  = []string{"kcal", "protein", "carbs", "fats"}
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

func New(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log.With().Str("client", "diary").Logger(),
	}
}

// call invokes a tool and returns the JSON text of its first content item.
func (c *Client) call(ctx context.Context, tool string, args map[string]interface{}) (string, error) {
	jsonData, err := json.Marshal(protocol.CallToolRequest{Name: tool, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tools", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create HTTP request: %v", diary.ErrRemote, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", diary.ErrRemote, tool, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: failed to read body: %v", diary.ErrRemote, tool, err)
	}
	c.log.Debug().Str("tool", tool).Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("Tool called")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s failed with status %d: %s",
			diary.ErrRemote, tool, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: %s returned invalid JSON", diary.ErrProtocol, tool)
	}
	text := gjson.GetBytes(body, "content.0.text")
	if !text.Exists() || !gjson.Valid(text.String()) {
		return "", fmt.Errorf("%w: %s returned no JSON text content", diary.ErrProtocol, tool)
	}
	return text.String(), nil
}

func checkFields(tool string, obj gjson.Result, fields []string) error {
	if !obj.IsObject() {
		return fmt.Errorf("%w: %s returned %s, want an object", diary.ErrProtocol, tool, obj.Type)
	}
	for _, f := range fields {
		if !obj.Get(f).Exists() {
			return fmt.Errorf("%w: %s response missing %q", diary.ErrProtocol, tool, f)
		}
	}
	return nil
}

func decode(tool, text string, target interface{}) error {
	if err := json.Unmarshal([]byte(text), target); err != nil {
		return fmt.Errorf("%w: %s: %v", diary.ErrProtocol, tool, err)
	}
	return nil
}

func (c *Client) ListEntries(ctx context.Context, date string) ([]models.DiaryEntry, error) {
	const tool = "list_entries"
	text, err := c.call(ctx, tool, map[string]interface{}{"date": date})
	if err != nil {
		return nil, err
	}

	list := gjson.Parse(text)
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: %s returned %s, want an array", diary.ErrProtocol, tool, list.Type)
	}
	for _, item := range list.Array() {
		if err := checkFields(tool, item, entryFields); err != nil {
			return nil, err
		}
	}

	entries := []models.DiaryEntry{}
	if err := decode(tool, text, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpdateEntryQuantity sends the new quantity and returns the server's post-update
// state. A success response without the authoritative fields is a protocol error.
func (c *Client) UpdateEntryQuantity(ctx context.Context, id string, quantity float64) (*models.EntryUpdate, error) {
	const tool = "update_entry_quantity"
	text, err := c.call(ctx, tool, map[string]interface{}{"id": id, "quantity": quantity})
	if err != nil {
		return nil, err
	}

	obj := gjson.Parse(text)
	if err := checkFields(tool, obj, updateFields); err != nil {
		return nil, err
	}
	if err := checkFields(tool, obj.Get("absolute"), macroFields); err != nil {
		return nil, err
	}

	var update models.EntryUpdate
	if err := decode(tool, text, &update); err != nil {
		return nil, err
	}
	if update.ID == "" {
		update.ID = id
	}
	return &update, nil
}

func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	_, err := c.call(ctx, "delete_entry", map[string]interface{}{"id": id})
	return err
}

func (c *Client) FetchDailyAggregate(ctx context.Context, date string) (models.MacroSnapshot, error) {
	return c.snapshot(ctx, "get_daily_aggregate", map[string]interface{}{"date": date})
}

func (c *Client) FetchDailyTarget(ctx context.Context, date string) (models.DailyTarget, error) {
	return c.snapshot(ctx, "get_daily_target", map[string]interface{}{"date": date})
}

func (c *Client) snapshot(ctx context.Context, tool string, args map[string]interface{}) (models.MacroSnapshot, error) {
	var snap models.MacroSnapshot
	text, err := c.call(ctx, tool, args)
	if err != nil {
		return snap, err
	}
	if err := checkFields(tool, gjson.Parse(text), macroFields); err != nil {
		return snap, err
	}
	err = decode(tool, text, &snap)
	return snap, err
}

// FetchPerSlotDynamicTargets returns the day's slot overrides; empty when none are set.
func (c *Client) FetchPerSlotDynamicTargets(ctx context.Context, date string) (models.SlotTargets, error) {
	return c.slotMap(ctx, "get_slot_targets", date)
}

// FetchSlotTotals returns the authoritative per-slot sums; slots without entries are absent.
func (c *Client) FetchSlotTotals(ctx context.Context, date string) (models.SlotTargets, error) {
	return c.slotMap(ctx, "get_slot_totals", date)
}

func (c *Client) slotMap(ctx context.Context, tool, date string) (models.SlotTargets, error) {
	text, err := c.call(ctx, tool, map[string]interface{}{"date": date})
	if err != nil {
		return nil, err
	}

	obj := gjson.Parse(text)
	if !obj.IsObject() {
		return nil, fmt.Errorf("%w: %s returned %s, want an object", diary.ErrProtocol, tool, obj.Type)
	}
	var checkErr error
	obj.ForEach(func(key, value gjson.Result) bool {
		checkErr = checkFields(tool+"."+key.String(), value, macroFields)
		return checkErr == nil
	})
	if checkErr != nil {
		return nil, checkErr
	}

	out := models.SlotTargets{}
	if err := decode(tool, text, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LogEntry records a portion; in.Macros are absolute for in.Quantity.
func (c *Client) LogEntry(ctx context.Context, in models.NewEntry) (models.DiaryEntry, error) {
	const tool = "log_entry"
	var entry models.DiaryEntry
	text, err := c.call(ctx, tool, map[string]interface{}{
		"date":      in.Date,
		"meal_slot": string(in.MealSlot),
		"food_name": in.FoodName,
		"unit":      string(in.Unit),
		"quantity":  in.Quantity,
		"kcal":      in.Macros.Kcal,
		"protein":   in.Macros.Protein,
		"carbs":     in.Macros.Carbs,
		"fats":      in.Macros.Fats,
	})
	if err != nil {
		return entry, err
	}
	if err := checkFields(tool, gjson.Parse(text), entryFields); err != nil {
		return entry, err
	}
	err = decode(tool, text, &entry)
	return entry, err
}

func (c *Client) SetDailyTarget(ctx context.Context, date string, t models.DailyTarget) error {
	args := targetArgs(date, t)
	_, err := c.call(ctx, "set_daily_target", args)
	return err
}

func (c *Client) SetSlotTarget(ctx context.Context, date string, slot models.MealSlot, t models.MacroSnapshot) error {
	args := targetArgs(date, t)
	args["meal_slot"] = string(slot)
	_, err := c.call(ctx, "set_slot_target", args)
	return err
}

func (c *Client) ClearSlotTargets(ctx context.Context, date string) error {
	_, err := c.call(ctx, "clear_slot_targets", map[string]interface{}{"date": date})
	return err
}

func targetArgs(date string, t models.MacroSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"date":    date,
		"kcal":    t.Kcal,
		"protein": t.Protein,
		"carbs":   t.Carbs,
		"fats":    t.Fats,
	}
}
