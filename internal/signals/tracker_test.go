package signals

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingofeed/internal/apperr"
	"github.com/example/lingofeed/internal/learning"
	"github.com/example/lingofeed/internal/memstore"
	"github.com/example/lingofeed/pkg/models"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []models.Interaction
	err      error
}

func (f *fakeRecorder) TrackInteraction(_ context.Context, in *models.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, *in)
	return nil
}

func (f *fakeRecorder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRecorder) all() []models.Interaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Interaction(nil), f.recorded...)
}

func newTestTracker(rec InteractionRecorder, cfg Config) *Tracker {
	return NewTracker(rec, cfg, zerolog.Nop()).WithClock(func() time.Time { return testNow })
}

var video = Content{ID: "vid2", Type: models.ContentVideo, Level: models.LevelA2, Topics: []string{"travel"}}

func TestTrackSkipRecordsPercentage(t *testing.T) {
	rec := &fakeRecorder{}
	tr := newTestTracker(rec, DefaultConfig())

	interp, err := tr.TrackSkip(context.Background(), "u", video, 10, 180)
	require.NoError(t, err)
	tr.Wait()

	assert.Equal(t, LabelInstantSkip, interp.Label)
	assert.Equal(t, RecommendReduceSimilar, interp.Recommendation)

	recorded := rec.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, models.InteractionSkipped, recorded[0].Type)
	assert.Equal(t, "vid2", recorded[0].ContentID)
	p, ok := recorded[0].Payload.(models.SkipPayload)
	require.True(t, ok)
	assert.InDelta(t, 5.6, p.SkipPercentage, 1e-9)
}

func TestTimeSpentInterpretation(t *testing.T) {
	tests := []struct {
		spent     float64
		label     string
		recommend string
		completed bool
	}{
		{10, LabelAbandonedEarly, RecommendDecreaseDifficulty, false},
		{40, LabelPartialEngagement, RecommendShorterContent, false},
		{95, LabelEngaged, RecommendMaintain, false},
		{99, LabelFullyEngaged, RecommendIncreaseDifficulty, true},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			rec := &fakeRecorder{}
			tr := newTestTracker(rec, DefaultConfig())
			interp, err := tr.TrackTimeSpent(context.Background(), "u", video, tt.spent, 100)
			require.NoError(t, err)
			tr.Wait()

			assert.Equal(t, tt.label, interp.Label)
			assert.Equal(t, tt.recommend, interp.Recommendation)
			v, ok := rec.all()[0].View()
			require.True(t, ok)
			assert.Equal(t, tt.completed, v.Completed)
		})
	}
}

func TestSkipInterpretationBands(t *testing.T) {
	assert.Equal(t, LabelInstantSkip, interpretSkip(9.9).Label)
	assert.Equal(t, LabelEarlySkip, interpretSkip(10).Label)
	assert.Equal(t, LabelLateSkip, interpretSkip(50).Label)
}

func TestEngagementStrength(t *testing.T) {
	tr := newTestTracker(&fakeRecorder{}, DefaultConfig())
	ctx := context.Background()

	for action, strength := range map[string]int{"like": 1, "save": 2, "share": 3} {
		interp, err := tr.TrackEngagement(ctx, "u", video, action)
		require.NoError(t, err)
		assert.Equal(t, LabelPositiveSignal, interp.Label)
		assert.Equal(t, strength, interp.Strength)
	}

	_, err := tr.TrackEngagement(ctx, "u", video, "poke")
	assert.True(t, apperr.IsValidation(err))
	tr.Wait()
}

func TestWordLookupsMarkContentTooDifficult(t *testing.T) {
	tr := newTestTracker(&fakeRecorder{}, DefaultConfig())
	ctx := context.Background()

	var interp Interpretation
	var err error
	for i := 0; i < 10; i++ {
		interp, err = tr.TrackWordLookup(ctx, "u", video, fmt.Sprintf("w%d", i), "")
		require.NoError(t, err)
	}
	assert.Equal(t, LabelVocabularyBuilding, interp.Label)

	interp, err = tr.TrackWordLookup(ctx, "u", video, "last", "")
	require.NoError(t, err)
	assert.Equal(t, LabelContentTooDifficult, interp.Label)
	assert.Equal(t, RecommendDecreaseDifficulty, interp.Recommendation)
	tr.Wait()
}

func TestPerformanceAndRating(t *testing.T) {
	tr := newTestTracker(&fakeRecorder{}, DefaultConfig())
	ctx := context.Background()

	interp, err := tr.TrackPerformance(ctx, "u", video, "cloze", 4, 10)
	require.NoError(t, err)
	assert.Equal(t, LabelStruggling, interp.Label)

	interp, err = tr.TrackPerformance(ctx, "u", video, "cloze", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, LabelMastering, interp.Label)

	_, err = tr.TrackPerformance(ctx, "u", video, "cloze", 11, 10)
	assert.True(t, apperr.IsValidation(err))

	interp, err = tr.TrackContentRating(ctx, "u", video, 5, models.DifficultyTooHard)
	require.NoError(t, err)
	assert.Equal(t, LabelTooDifficult, interp.Label)

	interp, err = tr.TrackContentRating(ctx, "u", video, 4, "")
	require.NoError(t, err)
	assert.Equal(t, LabelEnjoyed, interp.Label)

	_, err = tr.TrackContentRating(ctx, "u", video, 0, "")
	assert.True(t, apperr.IsValidation(err))
	tr.Wait()
}

func TestBufferEvictsOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 3
	tr := newTestTracker(nil, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tr.TrackReplay(ctx, "u", Content{ID: fmt.Sprintf("c%d", i)}, 1)
		require.NoError(t, err)
	}
	_, err := tr.TrackSkip(ctx, "u", Content{ID: "c5"}, 1, 10)
	require.NoError(t, err)
	tr.Wait()

	recent := tr.RecentSignals("u")
	require.Len(t, recent, 3)
	assert.Equal(t, "c3", recent[0].ContentID)
	assert.Equal(t, "c5", recent[2].ContentID)
	assert.Equal(t, 1, tr.RecentSkipCount("u"))
	assert.Equal(t, 3, tr.SessionLength("u", testNow.Add(-time.Minute)))
	assert.Empty(t, tr.RecentSignals("nobody"))
}

func TestFailedWritesAreRetriedOnFlush(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	tr := newTestTracker(rec, DefaultConfig())
	ctx := context.Background()

	_, err := tr.TrackSkip(ctx, "u", video, 90, 100)
	require.NoError(t, err)
	tr.Wait()
	assert.Empty(t, rec.all())

	stats := tr.Flush(ctx)
	assert.Equal(t, 0, stats.Persisted)
	assert.Equal(t, 1, stats.Pending)

	rec.setErr(nil)
	stats = tr.Close(ctx)
	assert.Equal(t, 1, stats.Persisted)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.Buffered)
	assert.Len(t, rec.all(), 1)
}

func TestFlushEmptyIsNoop(t *testing.T) {
	tr := newTestTracker(&fakeRecorder{}, DefaultConfig())
	assert.Equal(t, FlushStats{}, tr.Flush(context.Background()))
}

func TestValidationErrorsAreDroppedNotRetried(t *testing.T) {
	rec := &fakeRecorder{err: apperr.NewValidation("x", "bad")}
	tr := newTestTracker(rec, DefaultConfig())

	_, err := tr.TrackReplay(context.Background(), "u", video, 3)
	require.NoError(t, err)
	tr.Wait()
	assert.Equal(t, 0, tr.Flush(context.Background()).Pending)
}

func TestTrackRequiresUser(t *testing.T) {
	tr := newTestTracker(nil, DefaultConfig())
	_, err := tr.TrackSkip(context.Background(), "", video, 1, 10)
	assert.True(t, apperr.IsValidation(err))
}

func TestObserveBuffersWithoutPersisting(t *testing.T) {
	rec := &fakeRecorder{}
	tr := newTestTracker(rec, DefaultConfig())

	tr.Observe(&models.Interaction{UserID: "u", Type: models.InteractionSkipped, ContentID: "c"})
	tr.Observe(nil)
	tr.Wait()

	assert.Equal(t, 1, tr.RecentSkipCount("u"))
	assert.Equal(t, testNow, tr.RecentSignals("u")[0].Timestamp)
	assert.Empty(t, rec.all())
}

type learningRecorder struct {
	fakeRecorder
	mu      sync.Mutex
	learned []string
}

func (l *learningRecorder) Learn(_ context.Context, userID string) *learning.LevelChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.learned = append(l.learned, userID)
	return nil
}

func TestTrackerLearnsFromStoredOutcomes(t *testing.T) {
	rec := &learningRecorder{}
	tr := newTestTracker(rec, DefaultConfig())
	ctx := context.Background()

	_, err := tr.TrackPerformance(ctx, "u", video, "srs_review", 1, 1)
	require.NoError(t, err)
	_, err = tr.TrackWordLookup(ctx, "u", video, "tren", "")
	require.NoError(t, err)
	tr.Wait()

	assert.Len(t, rec.all(), 2)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"u"}, rec.learned)
}

func TestReviewResultsAdaptLevel(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return testNow }
	store := memstore.New().WithClock(clock)
	graph := learning.NewGraph(store, store, store, learning.DefaultConfig(), zerolog.Nop()).WithClock(clock)
	tr := newTestTracker(graph, DefaultConfig())

	p := models.NewBootstrapProfile("u", testNow)
	p.Level = models.LevelB1
	require.NoError(t, store.UpsertUser(ctx, p))

	card := Content{ID: "srs-1", Type: models.ContentSRSReview, Level: models.LevelB1}
	for i := 0; i < 10; i++ {
		_, err := tr.TrackPerformance(ctx, "u", card, "srs_review", 1, 1)
		require.NoError(t, err)
		tr.Wait()
	}
	graph.Wait()

	u, err := store.GetUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, models.LevelB2, u.Level)
}
