package feed

import (
	"time"

	"github.com/example/lingofeed/internal/ranking"
)

// BreakerConfig configures the circuit breaker of each content source
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// Config controls feed assembly
type Config struct {
	DefaultLimit int `koanf:"default_limit"`
	// CandidateMultiplier sets how many candidates are fetched per source
	// relative to the requested limit
	CandidateMultiplier int           `koanf:"candidate_multiplier"`
	SourceTimeout       time.Duration `koanf:"source_timeout"`
	MaxConsecutive      int           `koanf:"max_consecutive"`
	HighPriorityCount   int           `koanf:"high_priority_count"`

	Pacing  ranking.PacingConfig `koanf:"pacing"`
	Breaker BreakerConfig        `koanf:"breaker"`
}

// DefaultConfig returns the default feed configuration
func DefaultConfig() Config {
	return Config{
		DefaultLimit:        20,
		CandidateMultiplier: 3,
		SourceTimeout:       2 * time.Second,
		MaxConsecutive:      ranking.DefaultMaxConsecutive,
		HighPriorityCount:   3,
		Pacing:              ranking.DefaultPacingConfig(),
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  5,
			FailureRatio: 0.6,
		},
	}
}
