// internal/logger/logger_test.go
package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info().Msg("hidden")
	log.Warn().Str("component", "aggregator").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 1)
	assert.Equal(t, "shown", gjson.GetBytes(lines[0], "message").String())
	assert.Equal(t, "aggregator", gjson.GetBytes(lines[0], "component").String())
	assert.True(t, gjson.GetBytes(lines[0], "time").Exists())
}

func TestNewDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: "chatty", Output: &buf})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	New(Config{Level: "debug", Output: &buf})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
