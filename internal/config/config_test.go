package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(10000), cfg.AntiCheat.MaxStepsPerCall)
	assert.Equal(t, "balanced", cfg.Matchmaking.DefaultPreset)
	assert.Equal(t, 15*time.Second, cfg.Matchmaking.SweepInterval)
	assert.False(t, cfg.AllowSelfPlay)
	assert.False(t, cfg.Archive.Enabled())
}

func TestOverrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"STEPCHESS_STORE":              "postgres",
		"STEPCHESS_DATABASE_URL":       "postgres://localhost/stepchess",
		"STEPCHESS_ALLOW_SELF_PLAY":    "true",
		"STEPCHESS_MAX_STEPS_PER_HOUR": "0",
		"STEPCHESS_ARCHIVE_BUCKET":     "games",
		"STEPCHESS_REQUEST_TIMEOUT":    "750ms",
	})
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.True(t, cfg.AllowSelfPlay)
	assert.Zero(t, cfg.AntiCheat.MaxStepsPerHour)
	assert.Equal(t, 750*time.Millisecond, cfg.RequestTimeout)
	assert.True(t, cfg.Archive.Enabled())
	assert.Equal(t, "games", cfg.Archive.Settings().Bucket)
}

func TestInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STEPCHESS_STORE": "postgres"},
		"unknown store":        {"STEPCHESS_STORE": "etcd"},
		"zero per call":        {"STEPCHESS_MAX_STEPS_PER_CALL": "0"},
		"negative hourly":      {"STEPCHESS_MAX_STEPS_PER_HOUR": "-1"},
		"unknown mode":         {"STEPCHESS_MATCH_COST_MODE": "teleport"},
		"unknown preset":       {"STEPCHESS_MATCH_PRESET": "blitz"},
		"bad duration":         {"STEPCHESS_REQUEST_TIMEOUT": "soon"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromMap(vars)
			assert.Error(t, err)
		})
	}
}
