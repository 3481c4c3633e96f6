// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-diary/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8011, cfg.GetPort())
	assert.Equal(t, "0.0.0.0", cfg.GetHost())
	assert.Equal(t, "http://127.0.0.1:8011", cfg.GetRemoteURL())
	assert.Equal(t, 500*time.Millisecond, cfg.GetDebounce())
	assert.Equal(t, models.DailyTarget{Kcal: 2000, Protein: 110, Carbs: 250, Fats: 70}, cfg.GetDailyTarget())
	assert.Equal(t, 0.45, cfg.GetWeights()[models.Lunch])
	assert.Equal(t, models.BandRange{0.85, 1.15}, cfg.GetBands()[models.MacroCarbs].Green)
	assert.Equal(t, "meal_diary", cfg.GetTopicPrefix())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9000
storage:
  db_path: /tmp/diary.db
mutator:
  debounce: 250ms
  commit_timeout: 3s
log:
  level: debug
allocation:
  weights:
    Breakfast: 0.3
    lunch: 0.4
    dinner: 0.3
training_day: true
bands:
  fats:
    green: [0.95, 1.05]
    amber: [0.9, 1.1]
daily_target:
  kcal: 2400
  protein: 150
  carbs: 300
  fats: 70
mqtt:
  enabled: true
  broker: localhost:1883
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9000", cfg.GetRemoteURL())
	assert.Equal(t, "/tmp/diary.db", cfg.GetDBPath())
	assert.Equal(t, 250*time.Millisecond, cfg.GetDebounce())
	assert.Equal(t, 3*time.Second, cfg.GetCommitTimeout())
	assert.Equal(t, "debug", cfg.GetLogLevel())
	assert.Equal(t, models.SlotWeights{models.Breakfast: 0.3, models.Lunch: 0.4, models.Dinner: 0.3}, cfg.GetWeights())
	assert.Equal(t, 2400.0, cfg.GetDailyTarget().Kcal)

	bands := cfg.GetBands()
	assert.Equal(t, models.BandRange{0.75, 1.25}, bands[models.MacroCarbs].Green)
	assert.Equal(t, models.BandRange{0.95, 1.05}, bands[models.MacroFats].Green)
	assert.Equal(t, models.BandRange{0.90, 1.10}, bands[models.MacroKcal].Green)
	assert.True(t, cfg.MQTT.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MEAL_DIARY_PORT", "9100")
	t.Setenv("MEAL_DIARY_REMOTE_URL", "http://diary.local:8011")
	t.Setenv("MEAL_DIARY_DEBOUNCE_MS", "800")
	t.Setenv("MEAL_DIARY_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.GetPort())
	assert.Equal(t, "http://diary.local:8011", cfg.GetRemoteURL())
	assert.Equal(t, 800*time.Millisecond, cfg.GetDebounce())
	assert.Equal(t, "warn", cfg.GetLogLevel())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative weight", "allocation:\n  weights:\n    lunch: -0.1\n"},
		{"inverted band", "bands:\n  kcal:\n    green: [1.1, 0.9]\n    amber: [0.8, 1.2]\n"},
		{"port out of range", "server:\n  port: 70000\n"},
		{"negative target", "daily_target:\n  kcal: -1\n"},
		{"mqtt without broker", "mqtt:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{Server: ServerConfig{Port: 9200}, Mutator: MutatorConfig{Debounce: time.Second}}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, loaded.GetPort())
	assert.Equal(t, time.Second, loaded.GetDebounce())
}

func TestFillDefaultsSurvivesSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{Server: ServerConfig{Port: 9300}}
	cfg.FillDefaults()
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9300, loaded.Server.Port)
	assert.Equal(t, "0.0.0.0", loaded.Server.Host)
	assert.Equal(t, 500*time.Millisecond, loaded.Mutator.Debounce)
	require.NotNil(t, loaded.DailyTarget)
	assert.Equal(t, 2000.0, loaded.DailyTarget.Kcal)
	assert.InDelta(t, 0.45, loaded.Allocation.Weights["lunch"], 1e-9)
}
