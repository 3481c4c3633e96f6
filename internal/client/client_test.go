// internal/client/client_test.go
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-diary/internal/diary"
	"meal-diary/internal/models"
	"meal-diary/internal/server"
	"meal-diary/internal/storage"
)

const day = "2024-05-01"

var (
	_ diary.RecordStore      = (*Client)(nil)
	_ diary.AggregateSource  = (*Client)(nil)
	_ diary.TargetSource     = (*Client)(nil)
	_ diary.SlotTotalsSource = (*Client)(nil)
	_ diary.GoalSource       = (*Client)(nil)
)

func newLiveClient(t *testing.T) *Client {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "diary.db"),
		models.DailyTarget{Kcal: 2000, Protein: 110, Carbs: 250, Fats: 70})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := server.NewDiaryServer(&server.Config{}, store, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL, time.Second, zerolog.Nop())
}

// stubClient answers every tool call with the given status and text payload.
func stubClient(t *testing.T, status int, text string) *Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			fmt.Fprintf(w, `{"content":[{"type":"text","text":%q}]}`, text)
			return
		}
		fmt.Fprint(w, text)
	}))
	t.Cleanup(ts.Close)
	return New(ts.URL, time.Second, zerolog.Nop())
}

func TestRoundTripAgainstServer(t *testing.T) {
	c := newLiveClient(t)
	ctx := context.Background()

	entry, err := c.LogEntry(ctx, models.NewEntry{
		Date: day, MealSlot: models.Lunch, FoodName: "rice", Quantity: 100, Unit: models.UnitMass,
		Macros: models.MacroSnapshot{Kcal: 200, Protein: 10, Carbs: 20, Fats: 5},
	})
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)

	entries, err := c.ListEntries(ctx, day)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)

	upd, err := c.UpdateEntryQuantity(ctx, entry.ID, 110)
	require.NoError(t, err)
	require.NoError(t, diary.CheckUpdate(upd))
	assert.InDelta(t, 220, upd.Absolute.Kcal, 1e-9)

	agg, err := c.FetchDailyAggregate(ctx, day)
	require.NoError(t, err)
	assert.InDelta(t, 220, agg.Kcal, 1e-9)

	totals, err := c.FetchSlotTotals(ctx, day)
	require.NoError(t, err)
	assert.InDelta(t, 220, totals[models.Lunch].Kcal, 1e-9)

	targets, err := c.FetchPerSlotDynamicTargets(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, targets)

	require.NoError(t, c.SetSlotTarget(ctx, day, models.Dinner, models.MacroSnapshot{Kcal: 700}))
	targets, err = c.FetchPerSlotDynamicTargets(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 700.0, targets[models.Dinner].Kcal)
	require.NoError(t, c.ClearSlotTargets(ctx, day))

	goal, err := c.FetchDailyTarget(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, goal.Kcal)
	require.NoError(t, c.SetDailyTarget(ctx, day, models.DailyTarget{Kcal: 1800, Protein: 120, Carbs: 180, Fats: 60}))
	goal, err = c.FetchDailyTarget(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1800.0, goal.Kcal)

	require.NoError(t, c.DeleteEntry(ctx, entry.ID))
	err = c.DeleteEntry(ctx, entry.ID)
	assert.ErrorIs(t, err, diary.ErrRemote)
}

func TestNonSuccessStatusIsRemoteError(t *testing.T) {
	c := stubClient(t, http.StatusInternalServerError, "database locked")

	_, err := c.UpdateEntryQuantity(context.Background(), "e1", 10)
	assert.ErrorIs(t, err, diary.ErrRemote)
	assert.Contains(t, err.Error(), "500")

	_, err = c.FetchDailyAggregate(context.Background(), day)
	assert.ErrorIs(t, err, diary.ErrRemote)
}

func TestTransportFailureIsRemoteError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(url, time.Second, zerolog.Nop())
	_, err := c.ListEntries(context.Background(), day)
	assert.ErrorIs(t, err, diary.ErrRemote)
}

func TestMalformedSuccessIsProtocolError(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing absolute", `{"id":"e1","quantity":10,"meal_slot":"lunch","unit":"mass"}`},
		{"missing unit", `{"id":"e1","quantity":10,"absolute":{"kcal":1,"protein":1,"carbs":1,"fats":1},"meal_slot":"lunch"}`},
		{"partial absolute", `{"id":"e1","quantity":10,"absolute":{"kcal":1},"meal_slot":"lunch","unit":"mass"}`},
		{"not an object", `[1,2]`},
		{"wrong type", `{"id":"e1","quantity":"ten","absolute":{"kcal":1,"protein":1,"carbs":1,"fats":1},"meal_slot":"lunch","unit":"mass"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := stubClient(t, http.StatusOK, tt.text)
			_, err := c.UpdateEntryQuantity(context.Background(), "e1", 10)
			assert.ErrorIs(t, err, diary.ErrProtocol)
		})
	}
}

func TestMissingContentIsProtocolError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[]}`)
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL, time.Second, zerolog.Nop())
	_, err := c.FetchDailyAggregate(context.Background(), day)
	assert.ErrorIs(t, err, diary.ErrProtocol)
}

func TestSlotTargetsRejectPartialSnapshots(t *testing.T) {
	c := stubClient(t, http.StatusOK, `{"lunch":{"kcal":900}}`)
	_, err := c.FetchPerSlotDynamicTargets(context.Background(), day)
	assert.ErrorIs(t, err, diary.ErrProtocol)
}

func TestListEntriesRequiresArray(t *testing.T) {
	c := stubClient(t, http.StatusOK, `{"entries":[]}`)
	_, err := c.ListEntries(context.Background(), day)
	assert.ErrorIs(t, err, diary.ErrProtocol)
}
