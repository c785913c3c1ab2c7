// Package scoring computes per-item composite scores from level, interest,
// vocabulary, novelty and engagement sub-scores.
package scoring

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/example/lingofeed/pkg/models"
)

// NeutralScore is returned by every sub-score when its input is missing
const NeutralScore = 50.0

// Weights is the per-dimension weighting of the sub-scores
type Weights struct {
	LevelMatch      float64
	InterestMatch   float64
	VocabularyMatch float64
	Novelty         float64
	Engagement      float64
}

// Patterns summarizes a user's recent behaviour for engagement prediction
type Patterns struct {
	// ByContentType counts recent interactions per content type
	ByContentType map[models.ContentType]int
	Total         int
}

// Scorer computes content scores. It holds no per-user state.
type Scorer struct {
	config Config
	now    func() time.Time
}

// New creates a Scorer
func New(cfg Config) *Scorer {
	if cfg.FreshnessHalfLife <= 0 {
		cfg.FreshnessHalfLife = DefaultConfig().FreshnessHalfLife
	}
	if cfg.TargetComprehensionMin <= 0 || cfg.TargetComprehensionMax <= cfg.TargetComprehensionMin {
		def := DefaultConfig()
		cfg.TargetComprehensionMin = def.TargetComprehensionMin
		cfg.TargetComprehensionMax = def.TargetComprehensionMax
	}
	return &Scorer{config: cfg, now: time.Now}
}

// WithClock returns a copy of the scorer using now as its time source
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	c := *s
	c.now = now
	return &c
}

// Score computes the breakdown and composite score of item for user
func (s *Scorer) Score(item *models.ContentItem, user *models.UserProfile, patterns Patterns, w Weights) (float64, models.ScoreBreakdown) {
	b := models.ScoreBreakdown{
		LevelMatch:      s.LevelMatch(item.Level, user.Level),
		InterestMatch:   s.InterestMatch(item.Topics, user.Interests),
		VocabularyMatch: s.VocabularyMatch(item.Text, item.Level, user.KnownWordCount, user.KnownWords),
		Engagement:      s.PredictEngagement(item, patterns),
	}
	lastSeen, seen := user.HasSeen(item.ID)
	b.Novelty = s.Novelty(item.CreatedAt, lastSeen, seen)
	return Composite(b, w), b
}

// Composite combines a breakdown with weights, rounded to two decimals
func Composite(b models.ScoreBreakdown, w Weights) float64 {
	total := b.LevelMatch*w.LevelMatch +
		b.InterestMatch*w.InterestMatch +
		b.VocabularyMatch*w.VocabularyMatch +
		b.Novelty*w.Novelty +
		b.Engagement*w.Engagement
	return clamp(math.Round(total*100)/100, 0, 100)
}

// LevelMatch scores the CEFR distance between content and user, favouring
// content one level above the user (i+1).
func (s *Scorer) LevelMatch(content, user models.Level) float64 {
	d, ok := user.Distance(content)
	if !ok {
		return NeutralScore
	}
	switch d {
	case 0:
		return 100
	case 1:
		return 95
	case -1:
		return 80
	case 2:
		return 50
	case -2:
		return 40
	}
	if d > 0 {
		return math.Max(0, 50-10*float64(d-2))
	}
	return math.Max(0, 40-10*float64(-d-2))
}

// InterestMatch maps the share of the user's interest weight covered by the
// content topics into [30,100]. Returns 50 when either side is empty.
func (s *Scorer) InterestMatch(topics []string, interests map[string]float64) float64 {
	if len(topics) == 0 || len(interests) == 0 {
		return NeutralScore
	}

	total := 0.0
	normalized := make(map[string]float64, len(interests))
	for topic, w := range interests {
		if w <= 0 {
			continue
		}
		total += w
		normalized[strings.ToLower(topic)] += w
	}
	if total <= 0 {
		return NeutralScore
	}

	matched := 0.0
	counted := make(map[string]bool, len(topics))
	for _, t := range topics {
		key := strings.ToLower(t)
		if counted[key] {
			continue
		}
		counted[key] = true
		matched += normalized[key]
	}

	ratio := math.Min(1, matched/total)
	return 30 + ratio*70
}

// levelVocabulary approximates the vocabulary size needed to follow content at a level
var levelVocabulary = map[models.Level]float64{
	models.LevelA1: 500,
	models.LevelA2: 1000,
	models.LevelB1: 2000,
	models.LevelB2: 4000,
	models.LevelC1: 8000,
	models.LevelC2: 16000,
}

// VocabularyMatch scores how comprehensible content is from known-word coverage.
// Coverage inside the target band scores 100 and decays linearly on both sides.
// Without text the configured flat estimate is returned.
func (s *Scorer) VocabularyMatch(text string, level models.Level, knownCount int, known map[string]struct{}) float64 {
	if strings.TrimSpace(text) == "" {
		return s.config.VocabularyFallback
	}

	var coverage float64
	switch {
	case len(known) > 0:
		words := tokenize(text)
		if len(words) == 0 {
			return s.config.VocabularyFallback
		}
		hits := 0
		for _, w := range words {
			if _, ok := known[w]; ok {
				hits++
			}
		}
		coverage = float64(hits) / float64(len(words))
	case knownCount > 0:
		need, ok := levelVocabulary[level]
		if !ok {
			return NeutralScore
		}
		coverage = math.Min(0.98, float64(knownCount)/need)
	default:
		return s.config.VocabularyFallback
	}

	return s.goldilocks(coverage)
}

func (s *Scorer) goldilocks(coverage float64) float64 {
	lo, hi := s.config.TargetComprehensionMin, s.config.TargetComprehensionMax
	switch {
	case coverage < lo:
		// Zero at 40 points below the band
		return clamp(100-(lo-coverage)*250, 0, 100)
	case coverage > hi:
		// Fully known text still teaches a little
		return clamp(100-(coverage-hi)*200, 0, 100)
	default:
		return 100
	}
}

// Novelty rewards unseen and fresh content and penalizes recently seen content
func (s *Scorer) Novelty(createdAt, lastSeen time.Time, seen bool) float64 {
	now := s.now()
	if !seen {
		freshness := 0.0
		if !createdAt.IsZero() {
			hoursOld := math.Max(0, now.Sub(createdAt).Hours())
			freshness = math.Exp(-hoursOld / s.config.FreshnessHalfLife.Hours())
		}
		return 85 + freshness*15
	}

	h := math.Max(0, now.Sub(lastSeen).Hours())
	switch {
	case h < 24:
		return 0
	case h < 48:
		return 20
	case h < 168:
		return 40 + (h-48)/(168-48)*25
	case h < 720:
		return 65
	default:
		return math.Min(85, 80+(h-720)/(2160-720)*5)
	}
}

// PredictEngagement estimates how likely the user is to engage with item
func (s *Scorer) PredictEngagement(item *models.ContentItem, p Patterns) float64 {
	affinity := 0.5
	if p.Total > 0 {
		affinity = float64(p.ByContentType[item.Type]) / float64(p.Total)
	}
	score := 40 + affinity*40

	if item.DurationSeconds > 0 {
		d := time.Duration(item.DurationSeconds) * time.Second
		mid := (s.config.ShortDuration + s.config.LongDuration) / 2
		switch {
		case d <= s.config.ShortDuration:
			score += 15
		case d <= mid:
			score += 8
		case d > s.config.LongDuration:
			score -= 10
		}
	}
	if item.HasAudio {
		score += 5
	}
	return clamp(score, 0, 100)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
