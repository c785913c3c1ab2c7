package scoring

import "time"

// Config holds the scorer's tunable constants
type Config struct {
	// FreshnessHalfLife controls the decay of the novelty bonus for unseen content
	FreshnessHalfLife time.Duration `koanf:"freshness_half_life"`
	// TargetComprehensionMin and TargetComprehensionMax bound the known-word coverage band
	// that scores 100 for vocabulary match
	TargetComprehensionMin float64 `koanf:"target_comprehension_min"`
	TargetComprehensionMax float64 `koanf:"target_comprehension_max"`
	// VocabularyFallback is the vocabulary score used when content text is unavailable
	VocabularyFallback float64 `koanf:"vocabulary_fallback"`
	// ShortDuration and LongDuration bound the duration bonus of engagement prediction
	ShortDuration time.Duration `koanf:"short_duration"`
	LongDuration  time.Duration `koanf:"long_duration"`
}

// DefaultConfig returns the default scorer configuration
func DefaultConfig() Config {
	return Config{
		FreshnessHalfLife:      72 * time.Hour,
		TargetComprehensionMin: 0.70,
		TargetComprehensionMax: 0.85,
		VocabularyFallback:     72,
		ShortDuration:          3 * time.Minute,
		LongDuration:           20 * time.Minute,
	}
}
