package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":10000", cfg.ServerAddr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.NatsURL)
	assert.Equal(t, "lots", cfg.NatsSubjectPrefix)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 180, cfg.BudgetTicks())
	assert.Equal(t, 5*time.Second, cfg.BroadcastInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_FlagsAndEnv(t *testing.T) {
	t.Setenv("CADRAN_DATABASE_URL", "postgres://localhost/cadran")
	t.Setenv("CADRAN_TICK_INTERVAL", "250ms")
	t.Setenv("CADRAN_LOG_LEVEL", "debug")

	cfg, err := Load([]string{"--server-addr", ":8080", "--default-budget", "90s"})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "postgres://localhost/cadran", cfg.DatabaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 360, cfg.BudgetTicks())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestConfig_BudgetTicks(t *testing.T) {
	tests := []struct {
		name   string
		tick   time.Duration
		budget time.Duration
		want   int
	}{
		{"OneSecondTicks", time.Second, 180 * time.Second, 180},
		{"HalfSecondTicks", 500 * time.Millisecond, 90 * time.Second, 180},
		{"SlowTicks", 2 * time.Second, 180 * time.Second, 90},
		{"PartialTickDropped", 2 * time.Second, 5 * time.Second, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{TickInterval: tt.tick, DefaultBudget: tt.budget}
			assert.Equal(t, tt.want, cfg.BudgetTicks())
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "UnknownFlag", args: []string{"--nope"}},
		{name: "BadLogLevel", args: []string{"--log-level", "loud"}},
		{name: "ZeroTick", args: []string{"--tick-interval", "0s"}},
		{name: "ShortBudget", args: []string{"--default-budget", "500ms"}},
		{name: "BudgetBelowTick", args: []string{"--tick-interval", "10s", "--default-budget", "5s"}},
		{name: "EmptyAddr", env: map[string]string{"CADRAN_SERVER_ADDR": " "}},
		{name: "NatsWithoutPrefix", args: []string{"--nats-url", "nats://localhost:4222", "--nats-subject-prefix", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}
