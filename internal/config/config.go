// Package config assembles the configuration of every component from
// defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/lingofeed/internal/bandit"
	"github.com/example/lingofeed/internal/bot"
	"github.com/example/lingofeed/internal/database"
	"github.com/example/lingofeed/internal/feed"
	"github.com/example/lingofeed/internal/learning"
	"github.com/example/lingofeed/internal/logging"
	"github.com/example/lingofeed/internal/scheduler"
	"github.com/example/lingofeed/internal/scoring"
	"github.com/example/lingofeed/internal/signals"
	"github.com/example/lingofeed/internal/srs"
)

// RedisConfig locates the bandit arm store. An empty URL keeps arms in memory.
type RedisConfig struct {
	URL    string        `koanf:"url"`
	Prefix string        `koanf:"prefix"`
	TTL    time.Duration `koanf:"ttl"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Addr string `koanf:"addr"` // Empty disables the endpoint
}

// Config is the configuration of the whole application
type Config struct {
	Log       logging.Config   `koanf:"log"`
	Database  database.Config  `koanf:"database"`
	Redis     RedisConfig      `koanf:"redis"`
	Telegram  bot.Config       `koanf:"telegram"`
	Metrics   MetricsConfig    `koanf:"metrics"`
	Feed      feed.Config      `koanf:"feed"`
	Bandit    bandit.Config    `koanf:"bandit"`
	Scoring   scoring.Config   `koanf:"scoring"`
	Signals   signals.Config   `koanf:"signals"`
	Learning  learning.Config  `koanf:"learning"`
	SRS       srs.Config       `koanf:"srs"`
	Scheduler scheduler.Config `koanf:"scheduler"`
}

func defaultConfig() *Config {
	return &Config{
		Log:       logging.DefaultConfig(),
		Database:  database.DefaultConfig(),
		Redis:     RedisConfig{Prefix: "lingofeed:bandit:", TTL: 90 * 24 * time.Hour},
		Telegram:  bot.DefaultConfig(),
		Metrics:   MetricsConfig{Addr: ":9090"},
		Feed:      feed.DefaultConfig(),
		Bandit:    bandit.DefaultConfig(),
		Scoring:   scoring.DefaultConfig(),
		Signals:   signals.DefaultConfig(),
		Learning:  learning.DefaultConfig(),
		SRS:       srs.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
	}
}

// Validate rejects inconsistent settings and reports every problem found
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	switch c.Database.Type {
	case database.TypeSQLite, database.TypeMemory:
	case database.TypePostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.type must be sqlite, postgres or memory, got %q", c.Database.Type))
	}

	if err := c.Bandit.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bandit: %w", err))
	}

	if c.Feed.DefaultLimit < 1 || c.Feed.DefaultLimit > 100 {
		errs = append(errs, fmt.Errorf("feed.default_limit %d out of range 1-100", c.Feed.DefaultLimit))
	}
	if c.Feed.MaxConsecutive < 1 {
		errs = append(errs, errors.New("feed.max_consecutive must be at least 1"))
	}
	if c.Feed.Pacing.EarlyEnd > c.Feed.Pacing.LateStart {
		errs = append(errs, fmt.Errorf("feed.pacing.early_end %d is after late_start %d", c.Feed.Pacing.EarlyEnd, c.Feed.Pacing.LateStart))
	}
	if c.Feed.Breaker.FailureRatio <= 0 || c.Feed.Breaker.FailureRatio > 1 {
		errs = append(errs, fmt.Errorf("feed.breaker.failure_ratio %v out of range (0,1]", c.Feed.Breaker.FailureRatio))
	}

	if c.Scoring.TargetComprehensionMin >= c.Scoring.TargetComprehensionMax {
		errs = append(errs, errors.New("scoring.target_comprehension_min must be below target_comprehension_max"))
	}
	if c.Scoring.FreshnessHalfLife <= 0 {
		errs = append(errs, errors.New("scoring.freshness_half_life must be positive"))
	}

	if c.Signals.BufferSize < 1 {
		errs = append(errs, errors.New("signals.buffer_size must be at least 1"))
	}

	if c.Learning.DowngradeSuccessRate >= c.Learning.UpgradeSuccessRate {
		errs = append(errs, errors.New("learning.downgrade_success_rate must be below upgrade_success_rate"))
	}
	if c.Learning.Retention <= 0 {
		errs = append(errs, errors.New("learning.retention must be positive"))
	}

	if c.SRS.MaxCards < 0 {
		errs = append(errs, errors.New("srs.max_cards must not be negative"))
	}

	if c.Scheduler.CleanupAt != "" {
		if _, err := time.Parse("15:04", c.Scheduler.CleanupAt); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.cleanup_at %q is not HH:MM", c.Scheduler.CleanupAt))
		}
	}
	if c.Scheduler.ReminderStartHour < 0 || c.Scheduler.ReminderEndHour > 23 ||
		c.Scheduler.ReminderStartHour > c.Scheduler.ReminderEndHour {
		errs = append(errs, fmt.Errorf("scheduler reminder hours %d-%d are invalid",
			c.Scheduler.ReminderStartHour, c.Scheduler.ReminderEndHour))
	}

	return errors.Join(errs...)
}
