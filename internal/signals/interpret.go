package signals

import "github.com/example/lingofeed/pkg/models"

// Interpretation labels
const (
	LabelAbandonedEarly      = "abandoned_early"
	LabelPartialEngagement   = "partial_engagement"
	LabelEngaged             = "engaged"
	LabelFullyEngaged        = "fully_engaged"
	LabelInstantSkip         = "instant_skip"
	LabelEarlySkip           = "early_skip"
	LabelLateSkip            = "late_skip"
	LabelPositiveSignal      = "positive_signal"
	LabelReplay              = "replayed_section"
	LabelVocabularyBuilding  = "vocabulary_building"
	LabelContentTooDifficult = "content_too_difficult"
	LabelStruggling          = "struggling"
	LabelProgressing         = "progressing"
	LabelMastering           = "mastering"
	LabelTooDifficult        = "too_difficult"
	LabelTooEasy             = "too_easy"
	LabelEnjoyed             = "enjoyed"
	LabelNeutral             = "neutral"
)

// Recommendations for the ranking side
const (
	RecommendDecreaseDifficulty = "decrease_difficulty"
	RecommendIncreaseDifficulty = "increase_difficulty"
	RecommendShorterContent     = "shorter_content"
	RecommendMaintain           = "maintain"
	RecommendReduceSimilar      = "reduce_similar"
	RecommendAdjustTopic        = "adjust_topic"
	RecommendBoostSimilar       = "boost_similar"
)

// Interpretation is the immediate reading of a tracked signal
type Interpretation struct {
	Label          string `json:"label"`
	Recommendation string `json:"recommendation"`
	// Strength grades engagement actions: like 1, save 2, share 3
	Strength int `json:"strength,omitempty"`
}

func interpretTimeSpent(completion float64) Interpretation {
	switch {
	case completion < 20:
		return Interpretation{Label: LabelAbandonedEarly, Recommendation: RecommendDecreaseDifficulty}
	case completion < 50:
		return Interpretation{Label: LabelPartialEngagement, Recommendation: RecommendShorterContent}
	case completion <= 95:
		return Interpretation{Label: LabelEngaged, Recommendation: RecommendMaintain}
	default:
		return Interpretation{Label: LabelFullyEngaged, Recommendation: RecommendIncreaseDifficulty}
	}
}

func interpretSkip(percentage float64) Interpretation {
	switch {
	case percentage < 10:
		return Interpretation{Label: LabelInstantSkip, Recommendation: RecommendReduceSimilar}
	case percentage < 50:
		return Interpretation{Label: LabelEarlySkip, Recommendation: RecommendAdjustTopic}
	default:
		return Interpretation{Label: LabelLateSkip, Recommendation: RecommendMaintain}
	}
}

var engagementStrength = map[string]int{"like": 1, "save": 2, "share": 3}

func interpretEngagement(action string) Interpretation {
	return Interpretation{
		Label:          LabelPositiveSignal,
		Recommendation: RecommendBoostSimilar,
		Strength:       engagementStrength[action],
	}
}

func interpretLookups(count, threshold int) Interpretation {
	if count > threshold {
		return Interpretation{Label: LabelContentTooDifficult, Recommendation: RecommendDecreaseDifficulty}
	}
	return Interpretation{Label: LabelVocabularyBuilding, Recommendation: RecommendMaintain}
}

func interpretPerformance(accuracy float64) Interpretation {
	switch {
	case accuracy < 50:
		return Interpretation{Label: LabelStruggling, Recommendation: RecommendDecreaseDifficulty}
	case accuracy > 90:
		return Interpretation{Label: LabelMastering, Recommendation: RecommendIncreaseDifficulty}
	default:
		return Interpretation{Label: LabelProgressing, Recommendation: RecommendMaintain}
	}
}

func interpretRating(p models.RatingPayload) Interpretation {
	switch {
	case p.Difficulty == models.DifficultyTooHard:
		return Interpretation{Label: LabelTooDifficult, Recommendation: RecommendDecreaseDifficulty}
	case p.Difficulty == models.DifficultyTooEasy:
		return Interpretation{Label: LabelTooEasy, Recommendation: RecommendIncreaseDifficulty}
	case p.Rating >= 4:
		return Interpretation{Label: LabelEnjoyed, Recommendation: RecommendBoostSimilar}
	default:
		return Interpretation{Label: LabelNeutral, Recommendation: RecommendMaintain}
	}
}
