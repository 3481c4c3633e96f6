// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"meal-diary/internal/models"
	"meal-diary/internal/nutrition"
)

// Config holds the application configuration
type Config struct {
	Server      ServerConfig        `yaml:"server"`
	Storage     StorageConfig       `yaml:"storage"`
	Remote      RemoteConfig        `yaml:"remote"`
	Mutator     MutatorConfig       `yaml:"mutator"`
	Log         LogConfig           `yaml:"log"`
	Allocation  AllocationConfig    `yaml:"allocation,omitempty"`
	Bands       models.MacroBands   `yaml:"bands,omitempty"`       // per-macro overrides of the default bands
	TrainingDay bool                `yaml:"training_day,omitempty"` // widens the carbs bands
	DailyTarget *models.DailyTarget `yaml:"daily_target,omitempty"`
	MQTT        MQTTConfig          `yaml:"mqtt,omitempty"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

type RemoteConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type MutatorConfig struct {
	Debounce      time.Duration `yaml:"debounce,omitempty"`
	CommitTimeout time.Duration `yaml:"commit_timeout,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type AllocationConfig struct {
	Weights map[string]float64 `yaml:"weights,omitempty"`
}

// MQTTConfig holds the broker settings for publishing day views
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`       // host:port
	TopicPrefix string `yaml:"topic_prefix"` // e.g. "meal_diary"
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
}

// Load reads the config file, then applies .env and environment overrides.
// A missing file yields defaults.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// FillDefaults writes the effective value of every defaulted setting back into c,
// so a saved file documents them. The remote URL stays derived from the server
// address and bands stay overrides.
func (c *Config) FillDefaults() {
	c.Server.Host = c.GetHost()
	c.Server.Port = c.GetPort()
	c.Storage.DBPath = c.GetDBPath()
	c.Remote.Timeout = c.GetRemoteTimeout()
	c.Mutator.Debounce = c.GetDebounce()
	c.Mutator.CommitTimeout = c.GetCommitTimeout()
	c.Log.Level = c.GetLogLevel()
	c.MQTT.TopicPrefix = c.GetTopicPrefix()

	target := c.GetDailyTarget()
	c.DailyTarget = &target

	weights := make(map[string]float64)
	for slot, w := range c.GetWeights() {
		weights[string(slot)] = w
	}
	c.Allocation.Weights = weights
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("MEAL_DIARY_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("MEAL_DIARY_PORT", c.Server.Port)
	c.Storage.DBPath = getEnv("MEAL_DIARY_DB_PATH", c.Storage.DBPath)
	c.Remote.URL = getEnv("MEAL_DIARY_REMOTE_URL", c.Remote.URL)
	c.Log.Level = getEnv("MEAL_DIARY_LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvAsBool("MEAL_DIARY_LOG_PRETTY", c.Log.Pretty)
	if ms := getEnvAsInt("MEAL_DIARY_DEBOUNCE_MS", 0); ms > 0 {
		c.Mutator.Debounce = time.Duration(ms) * time.Millisecond
	}
}

// Validate checks the values that cannot be defaulted away
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	for slot, w := range c.Allocation.Weights {
		if w < 0 {
			return fmt.Errorf("allocation weight for %q is negative", slot)
		}
	}
	for macro, b := range c.Bands {
		if b.Green.Lower() > b.Green.Upper() || b.Amber.Lower() > b.Amber.Upper() {
			return fmt.Errorf("bands for %q have an inverted range", macro)
		}
	}
	if c.DailyTarget != nil && (!c.DailyTarget.Valid() || *c.DailyTarget != c.DailyTarget.Clamped()) {
		return fmt.Errorf("daily target must be non-negative")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("MQTT broker address is required when enabled")
	}
	return nil
}

func (c *Config) GetHost() string {
	if c.Server.Host == "" {
		return "0.0.0.0"
	}
	return c.Server.Host
}

// GetPort returns the server port with a default of 8011
func (c *Config) GetPort() int {
	if c.Server.Port <= 0 {
		return 8011
	}
	return c.Server.Port
}

func (c *Config) GetDBPath() string {
	if c.Storage.DBPath == "" {
		return "meal-diary.db"
	}
	return c.Storage.DBPath
}

// GetRemoteURL falls back to the local server address
func (c *Config) GetRemoteURL() string {
	if c.Remote.URL != "" {
		return c.Remote.URL
	}
	host := c.GetHost()
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.GetPort())
}

func (c *Config) GetRemoteTimeout() time.Duration {
	if c.Remote.Timeout <= 0 {
		return 10 * time.Second
	}
	return c.Remote.Timeout
}

// GetDebounce returns the edit debounce window with a default of 500ms
func (c *Config) GetDebounce() time.Duration {
	if c.Mutator.Debounce <= 0 {
		return 500 * time.Millisecond
	}
	return c.Mutator.Debounce
}

func (c *Config) GetCommitTimeout() time.Duration {
	if c.Mutator.CommitTimeout <= 0 {
		return 15 * time.Second
	}
	return c.Mutator.CommitTimeout
}

func (c *Config) GetLogLevel() string {
	if c.Log.Level == "" {
		return "info"
	}
	return c.Log.Level
}

// GetWeights returns the configured slot weights, or the defaults when none are set
func (c *Config) GetWeights() models.SlotWeights {
	if len(c.Allocation.Weights) == 0 {
		return nutrition.DefaultWeights()
	}
	out := make(models.SlotWeights, len(c.Allocation.Weights))
	for slot, w := range c.Allocation.Weights {
		out[models.NormalizeSlot(slot)] = w
	}
	return out
}

// GetBands returns the default (or training day) bands with per-macro overrides applied
func (c *Config) GetBands() models.MacroBands {
	bands := nutrition.DefaultBands()
	if c.TrainingDay {
		bands = nutrition.TrainingDayBands()
	}
	for macro, b := range c.Bands {
		bands[macro] = b
	}
	return bands
}

// GetDailyTarget returns the configured goal with a default of 2000 kcal
func (c *Config) GetDailyTarget() models.DailyTarget {
	if c.DailyTarget == nil {
		return models.DailyTarget{Kcal: 2000, Protein: 110, Carbs: 250, Fats: 70}
	}
	return *c.DailyTarget
}

func (c *Config) GetTopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "meal_diary"
	}
	return c.MQTT.TopicPrefix
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
