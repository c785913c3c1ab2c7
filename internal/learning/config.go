package learning

import "time"

// Config holds the learning graph's windows and level adaptation thresholds
type Config struct {
	// PatternWindow is the look-back of patterns, success rates and interests
	PatternWindow time.Duration `koanf:"pattern_window"`
	// Retention is how long interaction records are kept
	Retention time.Duration `koanf:"retention"`
	// ComprehensionWindowDays is the window of the rolling comprehension score
	ComprehensionWindowDays int `koanf:"comprehension_window_days"`
	// HistoryWindow is the look-back of the seen-content history used for novelty
	HistoryWindow time.Duration `koanf:"history_window"`
	// SuccessAccuracy is the exercise accuracy (0-100) that counts as a success
	SuccessAccuracy float64 `koanf:"success_accuracy"`

	// Level adaptation
	MinObservations        int     `koanf:"min_observations"`
	UpgradeSuccessRate     float64 `koanf:"upgrade_success_rate"`
	UpgradeComprehension   float64 `koanf:"upgrade_comprehension"`
	DowngradeSuccessRate   float64 `koanf:"downgrade_success_rate"`
	DowngradeComprehension float64 `koanf:"downgrade_comprehension"`
}

// DefaultConfig returns the default learning configuration
func DefaultConfig() Config {
	return Config{
		PatternWindow:           30 * 24 * time.Hour,
		Retention:               90 * 24 * time.Hour,
		ComprehensionWindowDays: 14,
		HistoryWindow:           30 * 24 * time.Hour,
		SuccessAccuracy:         70,
		MinObservations:         10,
		UpgradeSuccessRate:      0.85,
		UpgradeComprehension:    85,
		DowngradeSuccessRate:    0.40,
		DowngradeComprehension:  45,
	}
}
