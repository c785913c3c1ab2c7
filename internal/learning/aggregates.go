package learning

import (
	"context"
	"math"

	"github.com/example/lingofeed/internal/apperr"
	"github.com/example/lingofeed/internal/metrics"
	"github.com/example/lingofeed/pkg/models"
)

// Patterns summarizes a user's recent interactions
type Patterns struct {
	Total          int                            `json:"total"`
	ByType         map[models.InteractionType]int `json:"by_type"`
	ByContentType  map[models.ContentType]int     `json:"by_content_type"`
	ByDifficulty   map[models.Level]int           `json:"by_difficulty"`
	CompletionRate float64                        `json:"completion_rate"`
	AvgTimeSpent   float64                        `json:"avg_time_spent"`
	SkipRate       float64                        `json:"skip_rate"`
	LikeRate       float64                        `json:"like_rate"`
}

func emptyPatterns() *Patterns {
	return &Patterns{
		ByType:        make(map[models.InteractionType]int),
		ByContentType: make(map[models.ContentType]int),
		ByDifficulty:  make(map[models.Level]int),
	}
}

// DifficultyStats is the success record of a user at one level
type DifficultyStats struct {
	Attempts  int     `json:"attempts"`
	Successes int     `json:"successes"`
	Rate      float64 `json:"rate"`
}

// GetInteractionPatterns aggregates the pattern window. On store failure it
// logs and returns empty patterns.
func (g *Graph) GetInteractionPatterns(ctx context.Context, userID string) *Patterns {
	p := emptyPatterns()
	records, err := g.interactions.QueryInteractions(ctx, userID, g.now().Add(-g.config.PatternWindow))
	if err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load interaction patterns")
		return p
	}

	var views, completed, skips, likes int
	var timeSpent float64
	for i := range records {
		in := &records[i]
		p.Total++
		p.ByType[in.Type]++
		if in.ContentType != "" {
			p.ByContentType[in.ContentType]++
		}
		if in.Level != "" {
			p.ByDifficulty[in.Level]++
		}
		switch in.Type {
		case models.InteractionViewed:
			views++
			if v, ok := in.View(); ok {
				timeSpent += v.TimeSpent
				if v.Completed {
					completed++
				}
			}
		case models.InteractionSkipped:
			skips++
		case models.InteractionLiked:
			likes++
		}
	}

	if views > 0 {
		p.CompletionRate = float64(completed) / float64(views)
		p.AvgTimeSpent = timeSpent / float64(views)
		p.LikeRate = float64(likes) / float64(views)
	}
	if views+skips > 0 {
		p.SkipRate = float64(skips) / float64(views+skips)
	}
	return p
}

// CalculateComprehensionScore averages over the window's views: 100 for a
// completed view, otherwise the watched fraction times 100. It returns 0
// without data or on store failure.
func (g *Graph) CalculateComprehensionScore(ctx context.Context, userID string, windowDays int) float64 {
	score, _ := g.comprehension(ctx, userID, windowDays)
	return score
}

// comprehension is CalculateComprehensionScore that also reports whether any
// view backed the score
func (g *Graph) comprehension(ctx context.Context, userID string, windowDays int) (float64, bool) {
	if windowDays <= 0 {
		windowDays = g.config.ComprehensionWindowDays
	}
	since := g.now().AddDate(0, 0, -windowDays)
	records, err := g.interactions.QueryInteractions(ctx, userID, since, models.InteractionViewed)
	if err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to compute comprehension score")
		return 0, false
	}

	total, n := 0.0, 0
	for i := range records {
		v, ok := records[i].View()
		if !ok {
			continue
		}
		n++
		switch {
		case v.Completed:
			total += 100
		case v.Duration > 0:
			total += math.Min(1, v.TimeSpent/v.Duration) * 100
		}
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}

// isSuccess reports whether an interaction counts as a success at its level.
// attempt is false for interactions that are not outcomes.
func (g *Graph) isSuccess(in *models.Interaction) (attempt, success bool) {
	switch in.Type {
	case models.InteractionViewed:
		return true, in.Completed()
	case models.InteractionExercise:
		p, ok := in.Payload.(models.PerformancePayload)
		return true, ok && p.Accuracy >= g.config.SuccessAccuracy
	}
	return false, false
}

// GetSuccessRateByDifficulty buckets view and exercise outcomes of the
// pattern window by content level. On store failure it returns an empty map.
func (g *Graph) GetSuccessRateByDifficulty(ctx context.Context, userID string) map[models.Level]DifficultyStats {
	out := make(map[models.Level]DifficultyStats)
	records, err := g.interactions.QueryInteractions(ctx, userID, g.now().Add(-g.config.PatternWindow),
		models.InteractionViewed, models.InteractionExercise)
	if err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to compute success by difficulty")
		return out
	}

	for i := range records {
		in := &records[i]
		if !in.Level.Valid() {
			continue
		}
		attempt, success := g.isSuccess(in)
		if !attempt {
			continue
		}
		s := out[in.Level]
		s.Attempts++
		if success {
			s.Successes++
		}
		s.Rate = float64(s.Successes) / float64(s.Attempts)
		out[in.Level] = s
	}
	return out
}

// Interest weighting of topic occurrences
const (
	likeTopicWeight = 3
	viewTopicWeight = 1
	maxInterest     = 10.0
)

// UpdateInterestWeights counts topics of the user's recent views and likes
// (likes count triple), scales them so the top topic weighs 10 and stores
// each weight. It returns the computed weights.
func (g *Graph) UpdateInterestWeights(ctx context.Context, userID string) (map[string]float64, error) {
	records, err := g.interactions.QueryInteractions(ctx, userID, g.now().Add(-g.config.PatternWindow),
		models.InteractionViewed, models.InteractionLiked)
	if err != nil {
		return nil, apperr.NewPersistence("query_interests", err)
	}

	counts := make(map[string]float64)
	top := 0.0
	for i := range records {
		w := float64(viewTopicWeight)
		if records[i].Type == models.InteractionLiked {
			w = likeTopicWeight
		}
		for _, topic := range records[i].Topics {
			if topic == "" {
				continue
			}
			counts[topic] += w
			top = math.Max(top, counts[topic])
		}
	}
	if top == 0 {
		return counts, nil
	}

	g.profileMu.Lock()
	defer g.profileMu.Unlock()

	weights := make(map[string]float64, len(counts))
	for topic, c := range counts {
		weights[topic] = math.Round(c/top*maxInterest*100) / 100
		if err := g.users.UpsertInterest(ctx, userID, topic, weights[topic]); err != nil {
			return weights, apperr.NewPersistence("upsert_interest", err)
		}
	}
	return weights, nil
}

// CleanupOldInteractions deletes interactions older than the retention period
func (g *Graph) CleanupOldInteractions(ctx context.Context) (int64, error) {
	cutoff := g.now().Add(-g.config.Retention)
	n, err := g.interactions.DeleteInteractionsBefore(ctx, cutoff)
	if err != nil {
		return 0, apperr.NewPersistence("delete_old_interactions", err)
	}
	metrics.InteractionsCleaned.Add(float64(n))
	g.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("old interactions cleaned up")
	return n, nil
}

// RecentHistory returns the content the user viewed or skipped within the
// history window. On store failure it returns nil.
func (g *Graph) RecentHistory(ctx context.Context, userID string) []models.HistoryEntry {
	records, err := g.interactions.QueryInteractions(ctx, userID, g.now().Add(-g.config.HistoryWindow),
		models.InteractionViewed, models.InteractionSkipped)
	if err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load view history")
		return nil
	}
	history := make([]models.HistoryEntry, 0, len(records))
	for i := range records {
		if records[i].ContentID == "" {
			continue
		}
		history = append(history, models.HistoryEntry{ContentID: records[i].ContentID, ViewedAt: records[i].Timestamp})
	}
	return history
}

// RefreshProfile writes the rolling comprehension score and success rates
// onto the stored profile
func (g *Graph) RefreshProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	comprehension, measured := g.comprehension(ctx, userID, g.config.ComprehensionWindowDays)
	stats := g.GetSuccessRateByDifficulty(ctx, userID)

	g.profileMu.Lock()
	defer g.profileMu.Unlock()

	profile, err := g.users.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.NewPersistence("get_user", err)
	}
	if profile == nil {
		profile = models.NewBootstrapProfile(userID, g.now())
	}
	if measured {
		profile.ComprehensionScore = comprehension
	}
	profile.SuccessByDifficulty = make(map[models.Level]float64, len(stats))
	for l, s := range stats {
		profile.SuccessByDifficulty[l] = s.Rate
	}
	profile.UpdatedAt = g.now()

	if err := g.users.UpsertUser(ctx, profile); err != nil {
		return profile, apperr.NewPersistence("upsert_user", err)
	}
	return profile, nil
}
