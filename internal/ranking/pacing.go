package ranking

import (
	"sort"

	"github.com/example/lingofeed/pkg/models"
)

// Phase is the stage of a learning session
type Phase string

const (
	PhaseEarly  Phase = "early"
	PhaseMiddle Phase = "middle"
	PhaseLate   Phase = "late"
)

// PacingConfig controls session pacing
type PacingConfig struct {
	// EarlyEnd is the first session position of the middle phase
	EarlyEnd int `koanf:"early_end"`
	// LateStart is the last session position of the middle phase
	LateStart int `koanf:"late_start"`
	// Boost is added to the score of items that suit the phase
	Boost float64 `koanf:"boost"`
}

// DefaultPacingConfig returns the default pacing configuration
func DefaultPacingConfig() PacingConfig {
	return PacingConfig{EarlyEnd: 10, LateStart: 20, Boost: 10}
}

// PhaseAt classifies a session position
func (c PacingConfig) PhaseAt(position int) Phase {
	switch {
	case position < c.EarlyEnd:
		return PhaseEarly
	case position <= c.LateStart:
		return PhaseMiddle
	default:
		return PhaseLate
	}
}

// boostFor returns the score boost of an item at level l in phase p
func (c PacingConfig) boostFor(p Phase, l models.Level) float64 {
	ord := l.Ordinal()
	if ord < 0 {
		return 0
	}
	switch p {
	case PhaseEarly:
		// Warm up on comfortable material
		if ord <= models.LevelA2.Ordinal() {
			return c.Boost
		}
	case PhaseMiddle:
		if l == models.LevelA2 || l == models.LevelB1 {
			return c.Boost / 2
		}
	case PhaseLate:
		if ord >= models.LevelB1.Ordinal() {
			return c.Boost
		}
	}
	return 0
}

// Pace returns a copy of items with phase boosts applied, stably re-sorted
// by score. Review items are left unboosted.
func Pace(items []models.FeedItem, sessionPosition int, cfg PacingConfig) []models.FeedItem {
	phase := cfg.PhaseAt(sessionPosition)

	out := make([]models.FeedItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Type == models.ContentSRSReview {
			continue
		}
		if b := cfg.boostFor(phase, out[i].Level); b > 0 {
			out[i].Score = min(out[i].Score+b, 100)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
