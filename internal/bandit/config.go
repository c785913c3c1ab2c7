package bandit

import "fmt"

// ArmBounds limits the stored weight of one arm
type ArmBounds struct {
	Min     float64 `koanf:"min" json:"min"`
	Max     float64 `koanf:"max" json:"max"`
	Default float64 `koanf:"default" json:"default"`
}

// Config contains the optimizer's tunable parameters
type Config struct {
	// ExplorationRate is the epsilon of epsilon-greedy exploration
	ExplorationRate float64 `koanf:"exploration_rate"`
	// LearningRate scales how far a reward moves an arm's stored weight
	LearningRate float64 `koanf:"learning_rate"`
	// MinPullsForExploit is the total pull count below which the optimizer always explores
	MinPullsForExploit int `koanf:"min_pulls_for_exploit"`

	LevelMatch      ArmBounds `koanf:"level_match"`
	InterestMatch   ArmBounds `koanf:"interest_match"`
	VocabularyMatch ArmBounds `koanf:"vocabulary_match"`
	Novelty         ArmBounds `koanf:"novelty"`
	Engagement      ArmBounds `koanf:"engagement"`
}

// DefaultConfig returns the default optimizer configuration.
// Arm defaults sum to 1.
func DefaultConfig() Config {
	return Config{
		ExplorationRate:    0.1,
		LearningRate:       0.1,
		MinPullsForExploit: 50,
		LevelMatch:         ArmBounds{Min: 0.15, Max: 0.45, Default: 0.30},
		InterestMatch:      ArmBounds{Min: 0.10, Max: 0.40, Default: 0.25},
		VocabularyMatch:    ArmBounds{Min: 0.05, Max: 0.30, Default: 0.15},
		Novelty:            ArmBounds{Min: 0.05, Max: 0.25, Default: 0.15},
		Engagement:         ArmBounds{Min: 0.05, Max: 0.30, Default: 0.15},
	}
}

// Bounds returns the bounds configured for dimension d
//
//nolint:gocritic // value receiver keeps Config immutable
func (c Config) Bounds(d Dimension) ArmBounds {
	switch d {
	case LevelMatch:
		return c.LevelMatch
	case InterestMatch:
		return c.InterestMatch
	case VocabularyMatch:
		return c.VocabularyMatch
	case Novelty:
		return c.Novelty
	case Engagement:
		return c.Engagement
	}
	return ArmBounds{}
}

// Validate checks rates and arm bounds
//
//nolint:gocritic // value receiver keeps Config immutable
func (c Config) Validate() error {
	if c.ExplorationRate < 0 || c.ExplorationRate > 1 {
		return fmt.Errorf("exploration rate %v out of range [0,1]", c.ExplorationRate)
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning rate %v out of range (0,1]", c.LearningRate)
	}
	for _, d := range Dimensions {
		b := c.Bounds(d)
		if b.Min < 0 || b.Max <= 0 || b.Min > b.Max {
			return fmt.Errorf("arm %s: invalid bounds [%v,%v]", d, b.Min, b.Max)
		}
		if b.Default < b.Min || b.Default > b.Max {
			return fmt.Errorf("arm %s: default %v outside [%v,%v]", d, b.Default, b.Min, b.Max)
		}
	}
	return nil
}
