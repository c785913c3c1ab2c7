package learning

import (
	"context"
	"fmt"

	"github.com/example/lingofeed/internal/apperr"
	"github.com/example/lingofeed/internal/metrics"
	"github.com/example/lingofeed/pkg/models"
)

// LevelChange describes one level adaptation
type LevelChange struct {
	From          models.Level
	To            models.Level
	Reason        string
	SuccessRate   float64
	Comprehension float64
	Observations  int
}

// Up reports whether the change is an upgrade
func (c *LevelChange) Up() bool {
	d, _ := c.From.Distance(c.To)
	return d > 0
}

// AdaptLevel moves the user at most one CEFR step based on the success rate
// at the current level and the comprehension score. Without views in the
// comprehension window only the success rate decides. It returns nil when the
// level stays, including when fewer than MinObservations outcomes exist.
// A change is stored on the profile and recorded as a level_changed
// interaction.
func (g *Graph) AdaptLevel(ctx context.Context, userID string) (*LevelChange, error) {
	profile, err := g.users.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.NewPersistence("get_user", err)
	}
	if profile == nil || !profile.Level.Valid() {
		return nil, nil
	}

	stats := g.GetSuccessRateByDifficulty(ctx, userID)[profile.Level]
	if stats.Attempts < g.config.MinObservations {
		return nil, nil
	}
	comprehension, measured := g.comprehension(ctx, userID, g.config.ComprehensionWindowDays)

	change := g.decide(profile.Level, stats, comprehension, measured)
	if change == nil {
		return nil, nil
	}

	g.profileMu.Lock()
	current, err := g.users.GetUser(ctx, userID)
	if err == nil && current != nil {
		profile = current
	}
	profile.Level = change.To
	if measured {
		profile.ComprehensionScore = comprehension
	}
	profile.UpdatedAt = g.now()
	err = g.users.UpsertUser(ctx, profile)
	g.profileMu.Unlock()
	if err != nil {
		return nil, apperr.NewPersistence("upsert_user", err)
	}

	event := &models.Interaction{
		UserID: userID,
		Type:   models.InteractionLevelMove,
		Level:  change.To,
		Payload: models.LevelChangePayload{
			From:          change.From,
			To:            change.To,
			Reason:        change.Reason,
			SuccessRate:   change.SuccessRate,
			Comprehension: change.Comprehension,
		},
	}
	if err := g.TrackInteraction(ctx, event); err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to record level change")
	}

	direction := "down"
	if change.Up() {
		direction = "up"
	}
	metrics.LevelChanges.WithLabelValues(direction).Inc()
	g.logger.Info().
		Str("user_id", userID).
		Str("from", string(change.From)).
		Str("to", string(change.To)).
		Str("reason", change.Reason).
		Float64("success_rate", change.SuccessRate).
		Float64("comprehension", comprehension).
		Msg("user level adapted")

	return change, nil
}

// Learn refreshes everything derived from a user's stored outcomes: interest
// weights, profile stats and the level. Failures are logged. It returns the
// level change, if any.
func (g *Graph) Learn(ctx context.Context, userID string) *LevelChange {
	logger := g.logger.With().Str("user_id", userID).Logger()
	if _, err := g.UpdateInterestWeights(ctx, userID); err != nil {
		logger.Warn().Err(err).Msg("failed to update interest weights")
	}
	if _, err := g.RefreshProfile(ctx, userID); err != nil {
		logger.Warn().Err(err).Msg("failed to refresh profile")
	}
	change, err := g.AdaptLevel(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Msg("level adaptation failed")
	}
	return change
}

func (g *Graph) decide(level models.Level, stats DifficultyStats, comprehension float64, measured bool) *LevelChange {
	c := &LevelChange{
		From:          level,
		SuccessRate:   stats.Rate,
		Comprehension: comprehension,
		Observations:  stats.Attempts,
	}
	switch {
	case !measured && stats.Rate > g.config.UpgradeSuccessRate:
		c.To = level.Next()
		c.Reason = fmt.Sprintf("success rate %.0f%% at %s", stats.Rate*100, level)
	case stats.Rate > g.config.UpgradeSuccessRate && comprehension > g.config.UpgradeComprehension:
		c.To = level.Next()
		c.Reason = fmt.Sprintf("success rate %.0f%% and comprehension %.0f at %s", stats.Rate*100, comprehension, level)
	case stats.Rate < g.config.DowngradeSuccessRate:
		c.To = level.Prev()
		c.Reason = fmt.Sprintf("success rate %.0f%% at %s", stats.Rate*100, level)
	case measured && comprehension < g.config.DowngradeComprehension:
		c.To = level.Prev()
		c.Reason = fmt.Sprintf("comprehension %.0f at %s", comprehension, level)
	default:
		return nil
	}
	if c.To == level {
		// Already at A1 or C2
		return nil
	}
	return c
}
