// Package config reads server settings from the environment, after loading a
// .env file if one is present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/DoyleJ11/lane-duel-backend/internal/engine"
	"github.com/DoyleJ11/lane-duel-backend/internal/matchqueue"
)

type Config struct {
	Addr               string
	Rules              engine.Rules
	QueueTTL           time.Duration
	QueueSweepInterval time.Duration
	DatabaseURL        string
	JournalBuffer      int
	LogDev             bool
	AllowedOrigins     []string
}

func Default() Config {
	return Config{
		Addr:               ":8080",
		Rules:              engine.DefaultRules(),
		QueueTTL:           matchqueue.DefaultTTL,
		QueueSweepInterval: matchqueue.DefaultSweepInterval,
		JournalBuffer:      256,
	}
}

// Load reads .env (missing is fine) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Every bad value is reported, not just the first.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs error

	if v := getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		// Catch a malformed DSN here rather than at the first journal write.
		if _, err := pgx.ParseConfig(v); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("DATABASE_URL: %w", err))
		} else {
			cfg.DatabaseURL = v
		}
	}

	errs = multierr.Append(errs, duration(getenv, "TURN_TIME_LIMIT", &cfg.Rules.TurnTimeLimit))
	errs = multierr.Append(errs, duration(getenv, "QUEUE_TTL", &cfg.QueueTTL))
	errs = multierr.Append(errs, duration(getenv, "QUEUE_SWEEP_INTERVAL", &cfg.QueueSweepInterval))

	if v := getenv("TURN_POLICY"); v != "" {
		switch p := engine.TurnPolicy(strings.ToLower(v)); p {
		case engine.TurnSequential, engine.TurnAllMustEnd:
			cfg.Rules.TurnPolicy = p
		default:
			errs = multierr.Append(errs, fmt.Errorf("TURN_POLICY: unknown policy %q", v))
		}
	}
	if v := getenv("SLOT_POLICY"); v != "" {
		switch p := engine.SlotPolicy(strings.ToLower(v)); p {
		case engine.SlotNull, engine.SlotSkull:
			cfg.Rules.SlotPolicy = p
		default:
			errs = multierr.Append(errs, fmt.Errorf("SLOT_POLICY: unknown policy %q", v))
		}
	}
	if v := getenv("LANE_POLICY"); v != "" {
		switch p := engine.LanePolicy(strings.ToLower(v)); p {
		case engine.LaneReject, engine.LaneClamp:
			cfg.Rules.LanePolicy = p
		default:
			errs = multierr.Append(errs, fmt.Errorf("LANE_POLICY: unknown policy %q", v))
		}
	}

	if v := getenv("BASE_HP"); v != "" {
		hp, err := strconv.ParseFloat(v, 64)
		switch {
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("BASE_HP: %w", err))
		case hp <= 0:
			errs = multierr.Append(errs, fmt.Errorf("BASE_HP: must be positive, got %v", hp))
		default:
			cfg.Rules.BaseHP = hp
		}
	}
	errs = multierr.Append(errs, boolean(getenv, "BASE_STRIKE", &cfg.Rules.BaseStrike))
	errs = multierr.Append(errs, boolean(getenv, "LOG_DEV", &cfg.LogDev))

	if v := getenv("JOURNAL_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs = multierr.Append(errs, fmt.Errorf("JOURNAL_BUFFER: want a positive integer, got %q", v))
		} else {
			cfg.JournalBuffer = n
		}
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if errs != nil {
		return Config{}, errs
	}
	return cfg, nil
}

func duration(getenv func(string) string, key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", key, d)
	}
	*dst = d
	return nil
}

func boolean(getenv func(string) string, key string, dst *bool) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
