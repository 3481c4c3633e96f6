// internal/server/server_test.go
package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"meal-diary/internal/models"
	"meal-diary/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "diary.db"),
		models.DailyTarget{Kcal: 2000, Protein: 110, Carbs: 250, Fats: 70})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := NewDiaryServer(&Config{Host: "127.0.0.1", Port: 0}, store, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// callTool posts a tool call and returns the status and the JSON text payload.
func callTool(t *testing.T, ts *httptest.Server, name string, args map[string]interface{}) (int, string) {
	t.Helper()
	body, err := json.Marshal(protocol.CallToolRequest{Name: name, Arguments: args})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/tools", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, buf.String()
	}
	text := gjson.Get(buf.String(), "content.0.text")
	require.True(t, text.Exists(), "missing text content in %s", buf.String())
	return resp.StatusCode, text.String()
}

func logRice(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	status, body := callTool(t, ts, "log_entry", map[string]interface{}{
		"date": "2024-05-01", "meal_slot": "Lunch", "food_name": "rice", "unit": "g",
		"quantity": 100, "kcal": 200, "protein": 10, "carbs": 20, "fats": 5,
	})
	require.Equal(t, http.StatusOK, status, body)
	return gjson.Get(body, "id").String()
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestLogListAndUpdate(t *testing.T) {
	ts := newTestServer(t)
	id := logRice(t, ts)
	require.NotEmpty(t, id)

	status, body := callTool(t, ts, "list_entries", map[string]interface{}{"date": "2024-05-01"})
	require.Equal(t, http.StatusOK, status)
	entries := gjson.Parse(body).Array()
	require.Len(t, entries, 1)
	assert.Equal(t, "lunch", entries[0].Get("meal_slot").String())
	assert.Equal(t, "mass", entries[0].Get("unit").String())

	status, body = callTool(t, ts, "update_entry_quantity", map[string]interface{}{"id": id, "quantity": 110})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 110.0, gjson.Get(body, "quantity").Float())
	assert.InDelta(t, 220, gjson.Get(body, "absolute.kcal").Float(), 1e-9)
	assert.InDelta(t, 5.5, gjson.Get(body, "absolute.fats").Float(), 1e-9)
	assert.Equal(t, "lunch", gjson.Get(body, "meal_slot").String())

	status, body = callTool(t, ts, "get_daily_aggregate", map[string]interface{}{"date": "2024-05-01"})
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 220, gjson.Get(body, "kcal").Float(), 1e-9)

	status, body = callTool(t, ts, "get_slot_totals", map[string]interface{}{"date": "2024-05-01"})
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 220, gjson.Get(body, "lunch.kcal").Float(), 1e-9)
}

func TestStatusMapping(t *testing.T) {
	ts := newTestServer(t)
	id := logRice(t, ts)

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
		want int
	}{
		{"unknown tool", "calculate_carbs", nil, http.StatusNotFound},
		{"unknown entry", "update_entry_quantity", map[string]interface{}{"id": "missing", "quantity": 10}, http.StatusNotFound},
		{"zero quantity", "update_entry_quantity", map[string]interface{}{"id": id, "quantity": 0}, http.StatusUnprocessableEntity},
		{"missing date", "list_entries", map[string]interface{}{}, http.StatusUnprocessableEntity},
		{"wrong type", "update_entry_quantity", map[string]interface{}{"id": id, "quantity": "lots"}, http.StatusUnprocessableEntity},
		{"delete missing", "delete_entry", map[string]interface{}{"id": "missing"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := callTool(t, ts, tt.tool, tt.args)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestInvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTargets(t *testing.T) {
	ts := newTestServer(t)

	status, body := callTool(t, ts, "get_daily_target", map[string]interface{}{"date": "2024-05-01"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2000.0, gjson.Get(body, "kcal").Float())

	status, _ = callTool(t, ts, "set_daily_target", map[string]interface{}{
		"date": "2024-05-01", "kcal": 2400, "protein": 150, "carbs": 300, "fats": 70,
	})
	require.Equal(t, http.StatusOK, status)
	_, body = callTool(t, ts, "get_daily_target", map[string]interface{}{"date": "2024-05-01"})
	assert.Equal(t, 2400.0, gjson.Get(body, "kcal").Float())

	status, _ = callTool(t, ts, "set_slot_target", map[string]interface{}{
		"date": "2024-05-01", "meal_slot": "dinner", "kcal": 700, "protein": 45, "carbs": 60, "fats": 25,
	})
	require.Equal(t, http.StatusOK, status)
	_, body = callTool(t, ts, "get_slot_targets", map[string]interface{}{"date": "2024-05-01"})
	assert.Equal(t, 700.0, gjson.Get(body, "dinner.kcal").Float())

	status, _ = callTool(t, ts, "clear_slot_targets", map[string]interface{}{"date": "2024-05-01"})
	require.Equal(t, http.StatusOK, status)
	_, body = callTool(t, ts, "get_slot_targets", map[string]interface{}{"date": "2024-05-01"})
	assert.Equal(t, "{}", body)

	status, _ = callTool(t, ts, "set_daily_target", map[string]interface{}{"date": "2024-05-01", "kcal": -5})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}
