// Package signals captures fine-grained behavioral signals during content
// consumption. Each signal is kept in a bounded per-user buffer, persisted
// asynchronously as an interaction and interpreted on the spot.
package signals

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/lingofeed/internal/apperr"
	"github.com/example/lingofeed/internal/learning"
	"github.com/example/lingofeed/internal/metrics"
	"github.com/example/lingofeed/pkg/models"
)

// InteractionRecorder durably stores interactions
type InteractionRecorder interface {
	TrackInteraction(ctx context.Context, in *models.Interaction) error
}

// Learner derives learner state from stored outcomes. A recorder that also
// implements Learner is asked to learn after each outcome signal is stored.
type Learner interface {
	Learn(ctx context.Context, userID string) *learning.LevelChange
}

// Config controls buffering and persistence of signals
type Config struct {
	// BufferSize caps each user's signal buffer; the oldest signal is evicted
	BufferSize int `koanf:"buffer_size"`
	// RetryQueueSize caps the failed writes kept for the next flush
	RetryQueueSize int `koanf:"retry_queue_size"`
	// PersistTimeout bounds a single interaction write
	PersistTimeout time.Duration `koanf:"persist_timeout"`
	// LookupThreshold is the number of lookups on one item above which it is too difficult
	LookupThreshold int `koanf:"lookup_threshold"`
}

// DefaultConfig returns the default tracker configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:      100,
		RetryQueueSize:  1000,
		PersistTimeout:  5 * time.Second,
		LookupThreshold: 10,
	}
}

// Content identifies the item a signal refers to
type Content struct {
	ID     string
	Type   models.ContentType
	Level  models.Level
	Topics []string
}

// ContentOf describes a content item for tracking
func ContentOf(item *models.ContentItem) Content {
	return Content{ID: item.ID, Type: item.Type, Level: item.Level, Topics: item.Topics}
}

// FlushStats reports the outcome of a flush
type FlushStats struct {
	Persisted int
	Pending   int
	Buffered  int
}

// Tracker records signals
type Tracker struct {
	recorder InteractionRecorder
	config   Config
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	buffers map[string]*ring
	retry   []*models.Interaction

	inflight sync.WaitGroup
}

// NewTracker creates a Tracker persisting through recorder
func NewTracker(recorder InteractionRecorder, cfg Config, logger zerolog.Logger) *Tracker {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.RetryQueueSize <= 0 {
		cfg.RetryQueueSize = def.RetryQueueSize
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}
	if cfg.LookupThreshold <= 0 {
		cfg.LookupThreshold = def.LookupThreshold
	}
	return &Tracker{
		recorder: recorder,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		buffers:  make(map[string]*ring),
	}
}

// WithClock replaces the tracker's clock
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// TrackTimeSpent records how long a user spent on an item
func (t *Tracker) TrackTimeSpent(ctx context.Context, userID string, c Content, timeSpent, duration float64) (Interpretation, error) {
	if timeSpent < 0 || duration <= 0 {
		return Interpretation{}, apperr.NewValidation("duration", "time spent must be >= 0 and duration > 0")
	}
	completion := round1(timeSpent / duration * 100)
	payload := models.ViewPayload{
		TimeSpent:      timeSpent,
		Duration:       duration,
		CompletionRate: completion,
		Completed:      completion > 95,
	}
	if err := t.track(ctx, userID, models.InteractionViewed, c, payload); err != nil {
		return Interpretation{}, err
	}
	return interpretTimeSpent(completion), nil
}

// TrackSkip records that a user skipped an item at skipPosition seconds
func (t *Tracker) TrackSkip(ctx context.Context, userID string, c Content, skipPosition, totalDuration float64) (Interpretation, error) {
	if skipPosition < 0 || totalDuration <= 0 {
		return Interpretation{}, apperr.NewValidation("total_duration", "skip position must be >= 0 and duration > 0")
	}
	pct := round1(skipPosition / totalDuration * 100)
	payload := models.SkipPayload{SkipPosition: skipPosition, TotalDuration: totalDuration, SkipPercentage: pct}
	if err := t.track(ctx, userID, models.InteractionSkipped, c, payload); err != nil {
		return Interpretation{}, err
	}
	return interpretSkip(pct), nil
}

var engagementTypes = map[string]models.InteractionType{
	"like":  models.InteractionLiked,
	"save":  models.InteractionSaved,
	"share": models.InteractionShared,
}

// TrackEngagement records a like, save or share
func (t *Tracker) TrackEngagement(ctx context.Context, userID string, c Content, action string) (Interpretation, error) {
	typ, ok := engagementTypes[action]
	if !ok {
		return Interpretation{}, apperr.NewValidation("action", "must be like, save or share")
	}
	if err := t.track(ctx, userID, typ, c, models.EngagementPayload{Action: action}); err != nil {
		return Interpretation{}, err
	}
	return interpretEngagement(action), nil
}

// TrackReplay records that a user replayed an item from position seconds
func (t *Tracker) TrackReplay(ctx context.Context, userID string, c Content, position float64) (Interpretation, error) {
	if err := t.track(ctx, userID, models.InteractionReplayed, c, models.ReplayPayload{Position: position}); err != nil {
		return Interpretation{}, err
	}
	return Interpretation{Label: LabelReplay, Recommendation: RecommendMaintain}, nil
}

// TrackWordLookup records a dictionary lookup made while consuming an item
func (t *Tracker) TrackWordLookup(ctx context.Context, userID string, c Content, word, sentence string) (Interpretation, error) {
	if err := t.track(ctx, userID, models.InteractionLookup, c, models.WordLookupPayload{Word: word, Context: sentence}); err != nil {
		return Interpretation{}, err
	}

	count := 0
	for _, s := range t.RecentSignals(userID) {
		if s.Type == models.InteractionLookup && s.ContentID == c.ID {
			count++
		}
	}
	return interpretLookups(count, t.config.LookupThreshold), nil
}

// TrackPerformance records an exercise result
func (t *Tracker) TrackPerformance(ctx context.Context, userID string, c Content, exerciseType string, correct, total int) (Interpretation, error) {
	if total <= 0 || correct < 0 || correct > total {
		return Interpretation{}, apperr.NewValidation("total", "correct must be within 0..total and total > 0")
	}
	accuracy := round1(float64(correct) / float64(total) * 100)
	payload := models.PerformancePayload{ExerciseType: exerciseType, Correct: correct, Total: total, Accuracy: accuracy}
	if err := t.track(ctx, userID, models.InteractionExercise, c, payload); err != nil {
		return Interpretation{}, err
	}
	return interpretPerformance(accuracy), nil
}

// TrackContentRating records an explicit rating with optional difficulty feedback
func (t *Tracker) TrackContentRating(ctx context.Context, userID string, c Content, rating int, difficulty string) (Interpretation, error) {
	payload := models.RatingPayload{Rating: rating, Difficulty: difficulty}
	if err := t.track(ctx, userID, models.InteractionRated, c, payload); err != nil {
		return Interpretation{}, err
	}
	return interpretRating(payload), nil
}

// track validates a signal, buffers it and starts its persistence
func (t *Tracker) track(ctx context.Context, userID string, typ models.InteractionType, c Content, payload models.InteractionPayload) error {
	if userID == "" {
		return apperr.NewValidation("user_id", "is required")
	}
	in := &models.Interaction{
		UserID:      userID,
		Type:        typ,
		ContentID:   c.ID,
		ContentType: c.Type,
		Level:       c.Level,
		Topics:      c.Topics,
		Timestamp:   t.now(),
		Payload:     payload,
	}
	if err := in.Validate(); err != nil {
		return apperr.NewValidation(payload.Kind(), err.Error())
	}

	t.buffer(in)

	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		t.persist(context.WithoutCancel(ctx), in)
	}()
	return nil
}

func (t *Tracker) buffer(in *models.Interaction) {
	t.mu.Lock()
	buf, ok := t.buffers[in.UserID]
	if !ok {
		buf = newRing(t.config.BufferSize)
		t.buffers[in.UserID] = buf
	}
	if buf.push(*in) {
		t.logger.Debug().Str("user_id", in.UserID).Msg("signal buffer full, oldest signal evicted")
	}
	t.mu.Unlock()

	metrics.SignalsTracked.WithLabelValues(string(in.Type)).Inc()
}

// Observe buffers an interaction that was persisted elsewhere
func (t *Tracker) Observe(in *models.Interaction) {
	if in == nil || in.UserID == "" {
		return
	}
	if in.Timestamp.IsZero() {
		c := *in
		c.Timestamp = t.now()
		in = &c
	}
	t.buffer(in)
}

// persist writes one interaction, queueing it for retry on failure.
// It reports whether the write succeeded.
func (t *Tracker) persist(ctx context.Context, in *models.Interaction) bool {
	if t.recorder == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, t.config.PersistTimeout)
	defer cancel()

	err := t.recorder.TrackInteraction(ctx, in)
	if err == nil {
		if l, ok := t.recorder.(Learner); ok && isOutcome(in.Type) {
			l.Learn(ctx, in.UserID)
		}
		return true
	}
	if apperr.IsValidation(err) {
		t.logger.Warn().Err(err).Str("user_id", in.UserID).Msg("dropping invalid signal")
		return false
	}

	metrics.SignalPersistFailures.Inc()
	t.logger.Warn().Err(err).Str("user_id", in.UserID).Str("type", string(in.Type)).Msg("failed to persist signal, queued for retry")

	t.mu.Lock()
	if len(t.retry) >= t.config.RetryQueueSize {
		t.retry = t.retry[1:]
		t.logger.Warn().Msg("signal retry queue full, oldest signal dropped")
	}
	t.retry = append(t.retry, in)
	t.mu.Unlock()
	return false
}

// isOutcome reports whether a signal feeds interests, success rates or
// comprehension
func isOutcome(t models.InteractionType) bool {
	switch t {
	case models.InteractionViewed, models.InteractionLiked, models.InteractionExercise:
		return true
	}
	return false
}

// Flush retries queued writes and reports buffer occupancy.
// It is a no-op when nothing is queued.
func (t *Tracker) Flush(ctx context.Context) FlushStats {
	t.mu.Lock()
	queued := t.retry
	t.retry = nil
	t.mu.Unlock()

	stats := FlushStats{}
	for _, in := range queued {
		if ctx.Err() != nil {
			t.requeue(in)
			continue
		}
		if t.persist(ctx, in) {
			stats.Persisted++
		}
	}

	t.mu.Lock()
	stats.Pending = len(t.retry)
	for _, b := range t.buffers {
		stats.Buffered += b.len()
	}
	t.mu.Unlock()

	metrics.SignalRetryQueue.Set(float64(stats.Pending))
	metrics.SignalBufferOccupancy.Set(float64(stats.Buffered))
	if len(queued) > 0 {
		t.logger.Info().
			Int("persisted", stats.Persisted).
			Int("pending", stats.Pending).
			Int("buffered", stats.Buffered).
			Msg("signal flush completed")
	}
	return stats
}

func (t *Tracker) requeue(in *models.Interaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retry = append(t.retry, in)
}

// Close waits for in-flight writes and flushes once
func (t *Tracker) Close(ctx context.Context) FlushStats {
	t.inflight.Wait()
	return t.Flush(ctx)
}

// Wait blocks until in-flight writes have finished
func (t *Tracker) Wait() {
	t.inflight.Wait()
}

// RecentSignals returns a copy of the user's buffered signals, oldest first
func (t *Tracker) RecentSignals(userID string) []models.Interaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	buf, ok := t.buffers[userID]
	if !ok {
		return nil
	}
	return buf.items()
}

// RecentSkipCount counts skips among the user's buffered signals
func (t *Tracker) RecentSkipCount(userID string) int {
	n := 0
	for _, s := range t.RecentSignals(userID) {
		if s.Type == models.InteractionSkipped {
			n++
		}
	}
	return n
}

// SessionLength counts buffered signals since the given time
func (t *Tracker) SessionLength(userID string, since time.Time) int {
	n := 0
	for _, s := range t.RecentSignals(userID) {
		if !s.Timestamp.Before(since) {
			n++
		}
	}
	return n
}
