// cmd/meal-diary/root.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"meal-diary/internal/client"
	"meal-diary/internal/config"
	"meal-diary/internal/logger"
	"meal-diary/internal/storage"
)

var (
	cfgFile   string
	dbPath    string
	remoteURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "meal-diary",
	Short: "Daily nutrition diary with optimistic quantity edits",
	Long: `meal-diary keeps a daily food diary in a local SQLite record store.
The serve command exposes the store as a tool server; the other commands act as a
client that edits quantities optimistically and reports totals, per-meal targets
and band status.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./meal-diary.db)")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "tool server URL (default derived from server.host/port)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if remoteURL != "" {
		cfg.Remote.URL = remoteURL
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.GetLogLevel()
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)
	return log
}

// openStore opens the SQLite record store
func openStore(cfg *config.Config) (*storage.SQLiteStorage, error) {
	path := cfg.GetDBPath()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return storage.NewSQLiteStorage(path, cfg.GetDailyTarget())
}

func newClient(cfg *config.Config, log zerolog.Logger) *client.Client {
	return client.New(cfg.GetRemoteURL(), cfg.GetRemoteTimeout(), log)
}

// resolveDate defaults to today and accepts YYYY-MM-DD or "yesterday".
func resolveDate(s string) (string, error) {
	switch s {
	case "", "today":
		return time.Now().Format("2006-01-02"), nil
	case "yesterday":
		return time.Now().AddDate(0, 0, -1).Format("2006-01-02"), nil
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return s, nil
}
