// Package scheduler runs the periodic background jobs: signal flushing,
// interaction retention cleanup and review reminders.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/example/lingofeed/internal/signals"
)

// Flusher persists buffered signals
type Flusher interface {
	Flush(ctx context.Context) signals.FlushStats
	Close(ctx context.Context) signals.FlushStats
}

// Cleaner drops interactions past retention
type Cleaner interface {
	CleanupOldInteractions(ctx context.Context) (int64, error)
}

// Notifier sends review reminders to users with due cards
type Notifier interface {
	SendReviewReminders(ctx context.Context) (int, error)
}

// Config controls job timing
type Config struct {
	FlushInterval time.Duration `koanf:"flush_interval"`
	// CleanupAt is the daily UTC time of the retention cleanup, "HH:MM"
	CleanupAt string `koanf:"cleanup_at"`
	// ReminderInterval is how often reminders are sent; zero disables them
	ReminderInterval time.Duration `koanf:"reminder_interval"`
	// Reminders are only sent between these UTC hours, inclusive
	ReminderStartHour int `koanf:"reminder_start_hour"`
	ReminderEndHour   int `koanf:"reminder_end_hour"`
}

// DefaultConfig returns the default job timing
func DefaultConfig() Config {
	return Config{
		FlushInterval:     30 * time.Second,
		CleanupAt:         "03:00",
		ReminderInterval:  time.Hour,
		ReminderStartHour: 8,
		ReminderEndHour:   20,
	}
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	flusher   Flusher
	cleaner   Cleaner
	notifier  Notifier
	config    Config
	logger    zerolog.Logger
	now       func() time.Time
	ctx       context.Context
}

// New creates a new scheduler instance
func New(flusher Flusher, cleaner Cleaner, cfg Config, logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		flusher:   flusher,
		cleaner:   cleaner,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
		ctx:       context.Background(),
	}
}

// WithNotifier enables review reminders
func (s *Scheduler) WithNotifier(n Notifier) *Scheduler {
	s.notifier = n
	return s
}

// Start registers the jobs and runs them in the background until Stop
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	if s.config.FlushInterval > 0 {
		if _, err := s.scheduler.Every(s.config.FlushInterval).Do(s.RunFlush); err != nil {
			return fmt.Errorf("failed to schedule signal flush: %w", err)
		}
	}
	if s.cleaner != nil && s.config.CleanupAt != "" {
		if _, err := s.scheduler.Every(1).Day().At(s.config.CleanupAt).Do(s.RunCleanup); err != nil {
			return fmt.Errorf("failed to schedule cleanup: %w", err)
		}
	}
	if s.notifier != nil && s.config.ReminderInterval > 0 {
		if _, err := s.scheduler.Every(s.config.ReminderInterval).WaitForSchedule().Do(s.RunReminders); err != nil {
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info().Int("jobs", s.scheduler.Len()).Msg("scheduler started")
	return nil
}

// Stop terminates all scheduled tasks and flushes the remaining signals
func (s *Scheduler) Stop(ctx context.Context) signals.FlushStats {
	s.scheduler.Stop()
	stats := s.flusher.Close(ctx)
	s.logger.Info().
		Int("persisted", stats.Persisted).
		Int("pending", stats.Pending).
		Msg("scheduler stopped")
	return stats
}

// RunFlush persists buffered signals once
func (s *Scheduler) RunFlush() {
	stats := s.flusher.Flush(s.ctx)
	if stats.Persisted > 0 || stats.Pending > 0 {
		s.logger.Debug().
			Int("persisted", stats.Persisted).
			Int("pending", stats.Pending).
			Int("buffered", stats.Buffered).
			Msg("signals flushed")
	}
}

// RunCleanup drops interactions past retention once
func (s *Scheduler) RunCleanup() {
	if _, err := s.cleaner.CleanupOldInteractions(s.ctx); err != nil {
		s.logger.Error().Err(err).Msg("interaction cleanup failed")
	}
}

// RunReminders sends review reminders when inside the reminder hours
func (s *Scheduler) RunReminders() {
	hour := s.now().UTC().Hour()
	if hour < s.config.ReminderStartHour || hour > s.config.ReminderEndHour {
		s.logger.Debug().Int("hour", hour).Msg("outside reminder hours, skipping reminders")
		return
	}
	sent, err := s.notifier.SendReviewReminders(s.ctx)
	if err != nil {
		s.logger.Warn().Err(err).Int("sent", sent).Msg("failed to send some reminders")
		return
	}
	s.logger.Info().Int("sent", sent).Msg("review reminders sent")
}
