// Package bandit learns per-user weights for the content scoring dimensions.
//
// Each scoring dimension is an arm. A feed request draws a weight vector
// (epsilon-greedy with UCB1 bookkeeping, or Thompson sampling) and the reward
// observed for the served content nudges each arm's stored weight toward the
// weight that was actually used.
package bandit

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/lingofeed/internal/apperr"
)

// Context describes the situation of a feed request
type Context struct {
	Hour          int // Local hour of day, 0-23
	SessionLength int // Items consumed in this session
	RecentSkips   int // Skips among the user's recent signals
}

// Optimizer maintains per-user arm statistics
type Optimizer struct {
	config Config
	store  ArmStore
	logger zerolog.Logger
	now    func() time.Time

	// mu serializes read-modify-write of user state and guards rng
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an Optimizer backed by store
func New(cfg Config, store ArmStore, logger zerolog.Logger) *Optimizer {
	if store == nil {
		store = NewMemoryArmStore()
	}
	return &Optimizer{
		config: cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
}

// WithSeed makes the optimizer's random draws deterministic
func (o *Optimizer) WithSeed(seed uint64) *Optimizer {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return o
}

// Config returns the optimizer configuration
func (o *Optimizer) Config() Config {
	return o.config
}

func (o *Optimizer) newState() *UserState {
	s := &UserState{Arms: make(map[Dimension]ArmState, len(Dimensions)), UpdatedAt: o.now()}
	for _, d := range Dimensions {
		s.Arms[d] = ArmState{Weight: o.config.Bounds(d).Default}
	}
	return s
}

// load returns the user's state, creating it lazily. Callers hold o.mu.
func (o *Optimizer) load(ctx context.Context, userID string) (*UserState, error) {
	s, err := o.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil || len(s.Arms) == 0 {
		return o.newState(), nil
	}
	for _, d := range Dimensions {
		if _, ok := s.Arms[d]; !ok {
			s.Arms[d] = ArmState{Weight: o.config.Bounds(d).Default}
		}
	}
	return s, nil
}

func (o *Optimizer) defaultWeights() Weights {
	var w Weights
	for _, d := range Dimensions {
		w.Set(d, o.config.Bounds(d).Default)
	}
	return w.Normalize()
}

// GetWeights returns a normalized weight vector for one feed request
func (o *Optimizer) GetWeights(ctx context.Context, userID string) Weights {
	return o.serve(ctx, userID, nil)
}

// GetContextualWeights returns GetWeights adjusted for the request context
func (o *Optimizer) GetContextualWeights(ctx context.Context, userID string, c Context) Weights {
	return o.serve(ctx, userID, &c)
}

func (o *Optimizer) serve(ctx context.Context, userID string, c *Context) Weights {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.load(ctx, userID)
	if err != nil {
		o.logger.Warn().Err(err).Str("user_id", userID).Msg("bandit state unavailable, using default weights")
		return o.defaultWeights()
	}

	total := state.TotalPulls()
	explore := total < o.config.MinPullsForExploit || o.rng.Float64() < o.config.ExplorationRate

	var w Weights
	if explore {
		for _, d := range Dimensions {
			b := o.config.Bounds(d)
			w.Set(d, b.Min+o.rng.Float64()*(b.Max-b.Min))
		}
	} else {
		for _, d := range Dimensions {
			arm := state.Arms[d]
			arm.Confidence = ucb1(arm, total)
			state.Arms[d] = arm
			w.Set(d, arm.Weight)
		}
	}
	w = w.Normalize()
	if c != nil {
		w = applyContext(w, *c)
	}

	o.remember(ctx, userID, state, w)
	return w
}

// remember stores the served weights. Callers hold o.mu.
func (o *Optimizer) remember(ctx context.Context, userID string, state *UserState, w Weights) {
	state.LastWeights = &w
	state.UpdatedAt = o.now()
	if err := o.store.Put(ctx, userID, state); err != nil {
		o.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to store served weights")
	}
}

// ucb1 returns avgReward + sqrt(2 ln(total) / pulls); unpulled arms get the
// largest finite bonus so they sort first.
func ucb1(arm ArmState, total int) float64 {
	if arm.Pulls == 0 || total <= 1 {
		return math.MaxFloat64
	}
	return arm.AverageReward + math.Sqrt(2*math.Log(float64(total))/float64(arm.Pulls))
}

// applyContext scales weights by context multipliers and renormalizes
func applyContext(w Weights, c Context) Weights {
	mult := Weights{LevelMatch: 1, InterestMatch: 1, VocabularyMatch: 1, Novelty: 1, Engagement: 1}
	scale := func(d Dimension, f float64) { mult.Set(d, mult.Get(d)*f) }

	switch {
	case c.Hour >= 22 || c.Hour < 6:
		// Late sessions lean on easy engagement
		scale(Engagement, 1.2)
		scale(VocabularyMatch, 0.9)
	case c.Hour >= 6 && c.Hour < 12:
		scale(LevelMatch, 1.1)
		scale(VocabularyMatch, 1.1)
	}

	switch {
	case c.SessionLength >= 20:
		scale(Novelty, 1.2)
	case c.SessionLength < 5:
		scale(InterestMatch, 1.1)
	}

	if c.RecentSkips >= 3 {
		scale(InterestMatch, 1.3)
		scale(LevelMatch, 1.1)
	}
	if c.RecentSkips >= 5 {
		scale(Novelty, 1.2)
	}

	var out Weights
	for _, d := range Dimensions {
		out.Set(d, w.Get(d)*mult.Get(d))
	}
	return out.Normalize()
}

// UpdateReward credits reward to every arm in proportion to the weight it was
// given and moves each stored weight toward the weight that was used.
func (o *Optimizer) UpdateReward(ctx context.Context, userID string, used Weights, reward float64) error {
	reward = clamp(reward, 0, 1)

	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.load(ctx, userID)
	if err != nil {
		return apperr.NewPersistence("load_bandit_state", err)
	}

	lr := o.config.LearningRate
	for _, d := range Dimensions {
		b := o.config.Bounds(d)
		arm := state.Arms[d]
		u := used.Get(d)

		arm.Pulls++
		arm.CumulativeReward += reward * u
		arm.AverageReward = arm.CumulativeReward / float64(arm.Pulls)
		arm.Weight = clamp(arm.Weight+lr*(u-arm.Weight)*reward, b.Min, b.Max)
		state.Arms[d] = arm
	}
	state.UpdatedAt = o.now()

	if err := o.store.Put(ctx, userID, state); err != nil {
		return apperr.NewPersistence("store_bandit_state", err)
	}
	return nil
}

// LastWeights returns the weights most recently served to the user,
// or the default weights if none were served.
func (o *Optimizer) LastWeights(ctx context.Context, userID string) Weights {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.load(ctx, userID)
	if err != nil || state.LastWeights == nil {
		return o.defaultWeights()
	}
	return *state.LastWeights
}

// ResetUser forgets all state of a user
func (o *Optimizer) ResetUser(ctx context.Context, userID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Delete(ctx, userID)
}

// ExportUserData returns a copy of the user's state (fresh defaults if none)
func (o *Optimizer) ExportUserData(ctx context.Context, userID string) (*UserState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to export bandit state: %w", err)
	}
	return state.Clone(), nil
}

// ImportUserData replaces the user's state. Weights are clamped to the
// configured bounds and averages recomputed from the imported totals.
func (o *Optimizer) ImportUserData(ctx context.Context, userID string, state *UserState) error {
	if state == nil {
		return apperr.NewValidation("state", "is required")
	}
	s := state.Clone()
	if s.Arms == nil {
		s.Arms = make(map[Dimension]ArmState)
	}
	for _, d := range Dimensions {
		b := o.config.Bounds(d)
		arm, ok := s.Arms[d]
		if !ok {
			arm = ArmState{Weight: b.Default}
		}
		if arm.Pulls < 0 {
			return apperr.NewValidation("arms."+string(d)+".pulls", "must not be negative")
		}
		arm.Weight = clamp(arm.Weight, b.Min, b.Max)
		if arm.Pulls > 0 {
			arm.AverageReward = arm.CumulativeReward / float64(arm.Pulls)
		}
		s.Arms[d] = arm
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.store.Put(ctx, userID, s); err != nil {
		return fmt.Errorf("failed to import bandit state: %w", err)
	}
	return nil
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
