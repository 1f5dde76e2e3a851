package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, engine.DefaultRules(), cfg.Rules)
	assert.Equal(t, 30*time.Second, cfg.Rules.TurnTimeLimit)
	assert.Equal(t, 10*time.Minute, cfg.QueueTTL)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.LogDev)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"ADDR":                 ":9000",
		"TURN_TIME_LIMIT":      "20s",
		"QUEUE_TTL":            "5m",
		"QUEUE_SWEEP_INTERVAL": "1s",
		"TURN_POLICY":          "all_must_end",
		"SLOT_POLICY":          "SKULL",
		"LANE_POLICY":          "clamp",
		"BASE_HP":              "1500",
		"BASE_STRIKE":          "true",
		"DATABASE_URL":         "postgres://localhost/duel",
		"LOG_DEV":              "1",
		"ALLOWED_ORIGINS":      "localhost:*, example.com",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, engine.Rules{
		TurnPolicy:    engine.TurnAllMustEnd,
		SlotPolicy:    engine.SlotSkull,
		LanePolicy:    engine.LaneClamp,
		TurnTimeLimit: 20 * time.Second,
		BaseHP:        1500,
		BaseStrike:    true,
	}, cfg.Rules)
	assert.Equal(t, 5*time.Minute, cfg.QueueTTL)
	assert.Equal(t, time.Second, cfg.QueueSweepInterval)
	assert.Equal(t, "postgres://localhost/duel", cfg.DatabaseURL)
	assert.True(t, cfg.LogDev)
	assert.Equal(t, []string{"localhost:*", "example.com"}, cfg.AllowedOrigins)
}

func TestFromEnv_ReportsEveryProblem(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{
		"TURN_TIME_LIMIT": "soon",
		"QUEUE_TTL":       "-1m",
		"TURN_POLICY":     "chaos",
		"BASE_HP":         "0",
		"BASE_STRIKE":     "maybe",
		"DATABASE_URL":    "postgres://localhost:notaport/db",
	}))
	require.Error(t, err)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 6)
	for _, key := range []string{"TURN_TIME_LIMIT", "QUEUE_TTL", "TURN_POLICY", "BASE_HP", "BASE_STRIKE", "DATABASE_URL"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_ReadsProcessEnv(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("ADDR", ":7070")
	t.Setenv("SLOT_POLICY", "null")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, engine.SlotNull, cfg.Rules.SlotPolicy)
}
