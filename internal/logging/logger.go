// Package logging configures the zerolog logger shared by all components.
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	log := logging.WithComponent("feed")
//	log.Info().Str("user_id", id).Msg("feed generated")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration
type Config struct {
	// Level is the minimum level: debug, info, warn, error
	Level string `koanf:"level"`
	// Format is json or console
	Format string `koanf:"format"`
}

// DefaultConfig returns info-level JSON logging
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

var (
	mu     sync.RWMutex
	global = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init replaces the global logger
func Init(cfg Config) {
	InitWithWriter(cfg, os.Stderr)
}

// InitWithWriter replaces the global logger, writing to w
func InitWithWriter(cfg Config, w io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := w
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	mu.Lock()
	global = zerolog.New(out).Level(level).With().Timestamp().Logger()
	mu.Unlock()
}

// Logger returns the global logger
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// WithComponent returns a child logger tagged with a component name
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}
