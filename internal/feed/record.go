package feed

import (
	"context"
	"math"

	"github.com/example/lingofeed/internal/apperr"
	"github.com/example/lingofeed/internal/bandit"
	"github.com/example/lingofeed/internal/metrics"
	"github.com/example/lingofeed/pkg/models"
)

// RecordInteraction stores user feedback on a feed item and trains the
// user's weights with it. The reward credited to the weights that produced
// the last feed is returned. Storage failures after validation are logged
// and do not fail the call.
func (s *Service) RecordInteraction(ctx context.Context, userID string, in models.InteractionInput) (float64, error) {
	if userID == "" {
		return 0, apperr.NewValidation("user_id", "is required")
	}
	if in.Type == models.InteractionLevelMove {
		return 0, apperr.NewValidation("type", "level changes are recorded by level adaptation")
	}
	if err := validateStruct(&in); err != nil {
		return 0, err
	}
	interaction := interactionFromInput(userID, &in)
	if err := interaction.Validate(); err != nil {
		return 0, apperr.NewValidation("payload", err.Error())
	}
	logger := s.logger.With().Str("user_id", userID).Str("type", string(in.Type)).Logger()

	reward := bandit.CalculateReward(in)
	metrics.Rewards.Observe(reward)

	used := s.deps.Bandit.LastWeights(ctx, userID)
	if err := s.deps.Bandit.UpdateReward(ctx, userID, used, reward); err != nil {
		logger.Warn().Err(err).Msg("failed to update bandit arms")
	}

	if err := s.deps.Graph.TrackInteraction(ctx, interaction); err != nil {
		if apperr.IsValidation(err) {
			return 0, err
		}
		logger.Warn().Err(err).Msg("failed to store interaction")
		return reward, nil
	}
	if s.deps.Tracker != nil {
		s.deps.Tracker.Observe(interaction)
	}

	s.deps.Graph.Learn(ctx, userID)

	logger.Debug().Float64("reward", reward).Str("content_id", in.ContentID).Msg("interaction recorded")
	return reward, nil
}

// interactionFromInput builds the typed interaction record for an input
func interactionFromInput(userID string, in *models.InteractionInput) *models.Interaction {
	rec := &models.Interaction{
		UserID:      userID,
		Type:        in.Type,
		ContentID:   in.ContentID,
		ContentType: in.ContentType,
		Level:       in.Level,
		Topics:      in.Topics,
	}

	switch in.Type {
	case models.InteractionViewed:
		completion := 0.0
		if in.Duration > 0 {
			completion = math.Round(in.TimeSpent/in.Duration*1000) / 10
		}
		rec.Payload = models.ViewPayload{
			TimeSpent:      in.TimeSpent,
			Duration:       in.Duration,
			CompletionRate: completion,
			Completed:      in.Completed,
		}
	case models.InteractionSkipped:
		pct := 0.0
		if in.Duration > 0 {
			pct = math.Round(in.TimeSpent/in.Duration*1000) / 10
		}
		rec.Payload = models.SkipPayload{SkipPosition: in.TimeSpent, TotalDuration: in.Duration, SkipPercentage: pct}
	case models.InteractionLiked:
		rec.Payload = models.EngagementPayload{Action: "like"}
	case models.InteractionSaved:
		rec.Payload = models.EngagementPayload{Action: "save"}
	case models.InteractionShared:
		rec.Payload = models.EngagementPayload{Action: "share"}
	case models.InteractionReplayed:
		rec.Payload = models.ReplayPayload{Position: in.TimeSpent}
	case models.InteractionLookup:
		rec.Payload = models.WordLookupPayload{Word: in.Word}
	case models.InteractionExercise:
		// One graded attempt: Completed means answered correctly
		p := models.PerformancePayload{ExerciseType: "exercise", Total: 1}
		if in.ContentType == models.ContentSRSReview {
			p.ExerciseType = string(models.ContentSRSReview)
		}
		if in.Completed {
			p.Correct, p.Accuracy = 1, 100
		}
		rec.Payload = p
	case models.InteractionRated:
		p := models.RatingPayload{Rating: in.Rating}
		if p.Rating == 0 {
			p.Rating = 3
		}
		switch {
		case in.TooHard:
			p.Difficulty = models.DifficultyTooHard
		case in.TooEasy:
			p.Difficulty = models.DifficultyTooEasy
		default:
			p.Difficulty = models.DifficultyJustRight
		}
		rec.Payload = p
	}
	return rec
}
