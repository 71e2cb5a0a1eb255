package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	ServerAddr        string
	DatabaseURL       string
	NatsURL           string
	NatsSubjectPrefix string
	TickInterval      time.Duration
	DefaultBudget     time.Duration
	BroadcastInterval time.Duration
	LogLevel          slog.Level
}

// Load reads flags from args, then environment variables prefixed with CADRAN_.
// An environment variable only wins over a flag the caller did not set.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("cadran", pflag.ContinueOnError)

	// server
	fs.String("server-addr", ":10000", "HTTP listen address")

	// storage, empty keeps lots in memory only
	fs.String("database-url", "", "PostgreSQL connection string")

	// event fan-out, empty disables NATS
	fs.String("nats-url", "", "NATS server URL")
	fs.String("nats-subject-prefix", "lots", "subject prefix for lot events")

	// auction clock
	fs.Duration("tick-interval", time.Second, "time between two price decrements")
	fs.Duration("default-budget", 180*time.Second, "time budget of lots created without one")
	fs.Duration("broadcast-interval", 5*time.Second, "period of full snapshot pushes to websocket clients")

	fs.String("log-level", "info", "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// bind pflag to viper
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	v.AutomaticEnv()
	v.SetEnvPrefix("CADRAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", v.GetString("log-level"), err)
	}

	cfg := &Config{
		ServerAddr:        v.GetString("server-addr"),
		DatabaseURL:       v.GetString("database-url"),
		NatsURL:           v.GetString("nats-url"),
		NatsSubjectPrefix: v.GetString("nats-subject-prefix"),
		TickInterval:      v.GetDuration("tick-interval"),
		DefaultBudget:     v.GetDuration("default-budget"),
		BroadcastInterval: v.GetDuration("broadcast-interval"),
		LogLevel:          level,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BudgetTicks is DefaultBudget expressed in ticks of TickInterval, the unit lots count down in
func (c *Config) BudgetTicks() int {
	return int(c.DefaultBudget / c.TickInterval)
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ServerAddr) == "" {
		errs = append(errs, errors.New("server-addr must not be empty"))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick-interval must be positive, got %s", c.TickInterval))
	}
	if c.TickInterval > 0 && c.DefaultBudget < c.TickInterval {
		errs = append(errs, fmt.Errorf("default-budget must cover at least one tick of %s, got %s", c.TickInterval, c.DefaultBudget))
	}
	if c.BroadcastInterval <= 0 {
		errs = append(errs, fmt.Errorf("broadcast-interval must be positive, got %s", c.BroadcastInterval))
	}
	if c.NatsURL != "" && c.NatsSubjectPrefix == "" {
		errs = append(errs, errors.New("nats-subject-prefix must not be empty when nats-url is set"))
	}
	return errors.Join(errs...)
}
