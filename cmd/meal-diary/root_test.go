// cmd/meal-diary/root_test.go
package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDate(t *testing.T) {
	today := time.Now().Format("2006-01-02")

	got, err := resolveDate("")
	require.NoError(t, err)
	assert.Equal(t, today, got)

	got, err = resolveDate("today")
	require.NoError(t, err)
	assert.Equal(t, today, got)

	got, err = resolveDate("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", got)

	_, err = resolveDate("05/01/2024")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"init", "serve", "day", "log", "qty", "step", "delete", "target"} {
		assert.True(t, names[want], want)
	}
}
