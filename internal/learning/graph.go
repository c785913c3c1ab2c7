// Package learning keeps the durable record of user interactions and the
// learner aggregates derived from it: XP, streaks, interaction patterns,
// comprehension, success by difficulty, interests and CEFR level.
package learning

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/lingofeed/internal/apperr"
	"github.com/example/lingofeed/pkg/models"
)

// UserStore persists learner profiles
type UserStore interface {
	// GetUser returns nil, nil when the user does not exist
	GetUser(ctx context.Context, id string) (*models.UserProfile, error)
	UpsertUser(ctx context.Context, p *models.UserProfile) error
	UpsertInterest(ctx context.Context, userID, topic string, weight float64) error
}

// InteractionStore persists interaction records
type InteractionStore interface {
	AppendInteraction(ctx context.Context, in *models.Interaction) error
	// QueryInteractions returns interactions at or after since, oldest first
	QueryInteractions(ctx context.Context, userID string, since time.Time, types ...models.InteractionType) ([]models.Interaction, error)
	DeleteInteractionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityStore keeps per-day activity counters
type ActivityStore interface {
	IncrementDailyActivity(ctx context.Context, userID string, day time.Time, xp int) error
}

// Graph records interactions and derives learner aggregates from them
type Graph struct {
	users        UserStore
	interactions InteractionStore
	activity     ActivityStore
	config       Config
	logger       zerolog.Logger
	now          func() time.Time

	// profileMu serializes profile read-modify-write cycles
	profileMu sync.Mutex
	pending   sync.WaitGroup
}

// NewGraph creates a Graph
func NewGraph(users UserStore, interactions InteractionStore, activity ActivityStore, cfg Config, logger zerolog.Logger) *Graph {
	return &Graph{
		users:        users,
		interactions: interactions,
		activity:     activity,
		config:       cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock replaces the graph's clock
func (g *Graph) WithClock(now func() time.Time) *Graph {
	g.now = now
	return g
}

// Config returns the graph configuration
func (g *Graph) Config() Config {
	return g.config
}

// TrackInteraction validates and stores an interaction, then updates the
// user's XP, streak and daily activity in the background. Missing IDs and
// timestamps are filled in.
func (g *Graph) TrackInteraction(ctx context.Context, in *models.Interaction) error {
	if in == nil {
		return apperr.NewValidation("interaction", "is required")
	}
	if err := in.Validate(); err != nil {
		return apperr.NewValidation("interaction", err.Error())
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = g.now()
	}

	if err := g.interactions.AppendInteraction(ctx, in); err != nil {
		return apperr.NewPersistence("append_interaction", err)
	}

	record := *in
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		g.updateAggregates(context.WithoutCancel(ctx), &record)
	}()
	return nil
}

// Wait blocks until background aggregate updates have finished
func (g *Graph) Wait() {
	g.pending.Wait()
}

func (g *Graph) updateAggregates(ctx context.Context, in *models.Interaction) {
	logger := g.logger.With().Str("user_id", in.UserID).Str("type", string(in.Type)).Logger()
	xp := ExperienceFor(in)

	if err := g.activity.IncrementDailyActivity(ctx, in.UserID, in.Timestamp, xp); err != nil {
		logger.Warn().Err(err).Msg("failed to update daily activity")
	}

	g.profileMu.Lock()
	defer g.profileMu.Unlock()

	profile, err := g.users.GetUser(ctx, in.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load profile for aggregates")
		return
	}
	if profile == nil {
		profile = models.NewBootstrapProfile(in.UserID, g.now())
	}

	profile.XP += xp
	profile.Streak = NextStreak(profile.Streak, profile.LastActiveAt, in.Timestamp)
	if profile.LastActiveAt == nil || in.Timestamp.After(*profile.LastActiveAt) {
		ts := in.Timestamp
		profile.LastActiveAt = &ts
	}
	profile.UpdatedAt = g.now()

	if err := g.users.UpsertUser(ctx, profile); err != nil {
		logger.Warn().Err(err).Msg("failed to store profile aggregates")
	}
}

// ExperienceFor returns the XP awarded for an interaction
func ExperienceFor(in *models.Interaction) int {
	switch in.Type {
	case models.InteractionViewed:
		if in.Completed() {
			return 10
		}
		return 5
	case models.InteractionLiked:
		return 2
	case models.InteractionSaved:
		return 3
	case models.InteractionShared:
		return 5
	case models.InteractionReplayed:
		return 2
	case models.InteractionLookup:
		return 1
	case models.InteractionExercise:
		xp := 15
		if p, ok := in.Payload.(models.PerformancePayload); ok && p.Accuracy >= 90 {
			xp += 5
		}
		return xp
	case models.InteractionRated:
		return 2
	}
	return 0
}

// NextStreak returns the streak after activity at now, given the previous
// streak and last activity time
func NextStreak(streak int, lastActive *time.Time, now time.Time) int {
	if lastActive == nil || streak <= 0 {
		return 1
	}
	elapsed := now.Sub(*lastActive)
	switch {
	case elapsed < 24*time.Hour:
		return streak
	case elapsed <= 48*time.Hour:
		return streak + 1
	default:
		return 1
	}
}
