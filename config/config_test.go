package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predibot/internal/domain"
)

// --- helpers ---

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

// --- tests ---

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TWITCH_TOKEN", "oauth-abc")

	path := writeConfig(t, `
streamers:
  streamer-1: {}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Feed.RedisAddr)
	assert.Equal(t, "predibot.db", cfg.Storage.DSN)
	assert.Equal(t, 30, cfg.Scanner.IntervalSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "oauth-abc", cfg.Twitch.Token)
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("TWITCH_TOKEN", "")

	path := writeConfig(t, `streamers: {}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "TWITCH_TOKEN")
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("TWITCH_TOKEN", "oauth-abc")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfig(t, `
feed:
  redis_addr: "localhost:6379"
log:
  level: warn
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Feed.RedisAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestBetConfigFor_GlobalWhenNoOverride(t *testing.T) {
	cfg := &Config{
		Bet: domain.BetConfig{Strategy: domain.StrategyMostVoted, Percentage: 3},
	}
	got := cfg.BetConfigFor("unknown")
	assert.Equal(t, domain.StrategyMostVoted, got.Strategy)
	assert.Equal(t, 3.0, got.Percentage)
	// WithDefaults rellena lo que el global no fijó
	assert.Equal(t, 50000, got.MaxPoints)
}

func TestBetConfigFor_OverrideWinsFieldByField(t *testing.T) {
	cfg := &Config{
		Bet: domain.BetConfig{
			Strategy:   domain.StrategyCrowdWisdom,
			Percentage: 5,
			MaxPoints:  20000,
		},
		Streamers: map[string]domain.BetConfig{
			"streamer-1": {Percentage: 10, Stealth: true},
		},
	}
	got := cfg.BetConfigFor("streamer-1")

	assert.Equal(t, 10.0, got.Percentage, "override wins")
	assert.True(t, got.Stealth, "override wins")
	assert.Equal(t, domain.StrategyCrowdWisdom, got.Strategy, "global kept")
	assert.Equal(t, 20000, got.MaxPoints, "global kept")
}

func TestStreamerIDs_Sorted(t *testing.T) {
	cfg := &Config{Streamers: map[string]domain.BetConfig{
		"zeta": {}, "alpha": {}, "mid": {},
	}}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, cfg.StreamerIDs())
}
