package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingofeed/internal/apperr"
	"github.com/example/lingofeed/internal/bandit"
	"github.com/example/lingofeed/internal/learning"
	"github.com/example/lingofeed/internal/memstore"
	"github.com/example/lingofeed/internal/ranking"
	"github.com/example/lingofeed/internal/scoring"
	"github.com/example/lingofeed/internal/signals"
	"github.com/example/lingofeed/internal/srs"
	"github.com/example/lingofeed/pkg/models"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type harness struct {
	svc     *Service
	store   *memstore.Store
	graph   *learning.Graph
	bandit  *bandit.Optimizer
	tracker *signals.Tracker
}

func newHarness(t *testing.T, content ContentSource) *harness {
	t.Helper()
	return newHarnessWithStore(t, memstore.New().WithClock(clock), content)
}

func newHarnessWithStore(t *testing.T, store *memstore.Store, content ContentSource) *harness {
	t.Helper()
	if content == nil {
		content = store
	}
	logger := zerolog.Nop()
	graph := learning.NewGraph(store, store, store, learning.DefaultConfig(), logger).WithClock(clock)
	opt := bandit.New(bandit.DefaultConfig(), bandit.NewMemoryArmStore(), logger).WithSeed(3)
	tracker := signals.NewTracker(graph, signals.DefaultConfig(), logger).WithClock(clock)

	svc := NewService(Deps{
		Content:  content,
		Users:    store,
		Graph:    graph,
		Bandit:   opt,
		Scorer:   scoring.New(scoring.DefaultConfig()).WithClock(clock),
		Injector: srs.NewInjector(store, srs.DefaultConfig(), logger),
		Tracker:  tracker,
	}, DefaultConfig(), logger).WithClock(clock)

	t.Cleanup(func() {
		graph.Wait()
		tracker.Wait()
	})
	return &harness{svc: svc, store: store, graph: graph, bandit: opt, tracker: tracker}
}

var catalogTypes = []models.ContentType{
	models.ContentVideo, models.ContentArticle, models.ContentPodcast,
	models.ContentYouTube, models.ContentMusic, models.ContentStory,
}

// seedCatalog adds perType items of every feed content type
func seedCatalog(store *memstore.Store, perType int) {
	levels := models.Levels
	topics := []string{"travel", "food", "music", "sports", "science"}
	for ti, ct := range catalogTypes {
		for i := 0; i < perType; i++ {
			store.AddContent(models.ContentItem{
				ID:              fmt.Sprintf("%s-%d", ct, i),
				Type:            ct,
				Title:           fmt.Sprintf("%s number %d", ct, i),
				Level:           levels[(i+ti)%len(levels)],
				Topics:          []string{topics[(i+ti)%len(topics)]},
				DurationSeconds: 60 * (i + 1),
				HasAudio:        ct != models.ContentArticle,
				Popularity:      (i*37 + ti*11) % 100,
				CreatedAt:       testNow.Add(-time.Duration(i*10+ti) * time.Hour),
			})
		}
	}
}

func TestGenerateFeedForNewUser(t *testing.T) {
	h := newHarness(t, nil)
	seedCatalog(h.store, 5)
	ctx := context.Background()

	resp, err := h.svc.GenerateFeed(ctx, models.FeedRequest{UserID: "newbie"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Items)
	assert.LessOrEqual(t, len(resp.Items), DefaultConfig().DefaultLimit)
	assert.False(t, resp.Partial)
	assert.InDelta(t, 1.0, sum(resp.Weights), 1e-9)
	assert.LessOrEqual(t, ranking.LongestRun(resp.Items), 2)

	for i, it := range resp.Items {
		assert.GreaterOrEqual(t, it.Score, 0.0)
		assert.LessOrEqual(t, it.Score, 100.0)
		require.NotNil(t, it.Breakdown)
		if i < 3 {
			assert.Equal(t, models.PriorityHigh, it.Priority)
		} else {
			assert.Equal(t, models.PriorityNormal, it.Priority)
		}
	}

	profile, err := h.store.GetUser(ctx, "newbie")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, models.LevelA2, profile.Level)
	for _, topic := range models.StarterInterests {
		assert.Equal(t, models.StarterInterestWeight, profile.Interests[topic])
	}
}

func sum(m map[string]float64) float64 {
	total := 0.0
	for _, v := range m {
		total += v
	}
	return total
}

type flakySource struct {
	inner  ContentSource
	broken map[models.ContentType]bool
}

func (f *flakySource) FetchContent(ctx context.Context, t models.ContentType, limit int) ([]models.ContentItem, error) {
	if f.broken[t] {
		return nil, errors.New("upstream timeout")
	}
	return f.inner.FetchContent(ctx, t, limit)
}

func TestGenerateFeedOmitsFailingSource(t *testing.T) {
	store := memstore.New().WithClock(clock)
	seedCatalog(store, 4)
	src := &flakySource{inner: store, broken: map[models.ContentType]bool{models.ContentVideo: true}}

	h := newHarnessWithStore(t, store, src)

	resp, err := h.svc.GenerateFeed(context.Background(), models.FeedRequest{UserID: "u", Limit: 50})
	require.NoError(t, err)

	assert.True(t, resp.Partial)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "video")
	assert.NotEmpty(t, resp.Items)
	for _, it := range resp.Items {
		assert.NotEqual(t, models.ContentVideo, it.Type)
	}
}

type slowSource struct{}

func (slowSource) FetchContent(ctx context.Context, _ models.ContentType, _ int) ([]models.ContentItem, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGenerateFeedBoundsSourceTime(t *testing.T) {
	h := newHarness(t, slowSource{})
	h.svc.config.SourceTimeout = 20 * time.Millisecond

	resp, err := h.svc.GenerateFeed(context.Background(), models.FeedRequest{UserID: "u"})
	require.NoError(t, err)
	assert.True(t, resp.Partial)
	assert.Empty(t, resp.Items)
	assert.Len(t, resp.Warnings, len(models.FeedContentTypes))
}

func TestGenerateFeedValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.FeedRequest
	}{
		{"missing user", models.FeedRequest{}},
		{"limit too large", models.FeedRequest{UserID: "u", Limit: 101}},
		{"negative position", models.FeedRequest{UserID: "u", SessionPosition: -1}},
		{"bad sort mode", models.FeedRequest{UserID: "u", SortMode: "random"}},
		{"bad level filter", models.FeedRequest{UserID: "u", Levels: []models.Level{"Z9"}}},
		{"review type filter", models.FeedRequest{UserID: "u", ContentTypes: []models.ContentType{models.ContentSRSReview}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.GenerateFeed(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
		})
	}
}

func TestGenerateFeedFilters(t *testing.T) {
	h := newHarness(t, nil)
	seedCatalog(h.store, 6)
	ctx := context.Background()

	resp, err := h.svc.GenerateFeed(ctx, models.FeedRequest{
		UserID:       "u",
		Limit:        100,
		ContentTypes: []models.ContentType{models.ContentArticle, models.ContentPodcast},
		Levels:       []models.Level{models.LevelA2, models.LevelB1},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Items)
	for _, it := range resp.Items {
		assert.Contains(t, []models.ContentType{models.ContentArticle, models.ContentPodcast}, it.Type)
		assert.Contains(t, []models.Level{models.LevelA2, models.LevelB1}, it.Level)
	}

	resp, err = h.svc.GenerateFeed(ctx, models.FeedRequest{UserID: "u", Limit: 100, Topics: []string{"Science"}})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Items)
	for _, it := range resp.Items {
		assert.Equal(t, []string{"science"}, it.Topics)
	}

	resp, err = h.svc.GenerateFeed(ctx, models.FeedRequest{UserID: "u", Limit: 100, SearchQuery: "MUSIC number 2"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "music-2", resp.Items[0].ID)
}

func TestGenerateFeedSortModes(t *testing.T) {
	h := newHarness(t, nil)
	seedCatalog(h.store, 5)
	ctx := context.Background()

	resp, err := h.svc.GenerateFeed(ctx, models.FeedRequest{UserID: "u", Limit: 100, SortMode: models.SortRecent})
	require.NoError(t, err)
	for i := 1; i < len(resp.Items); i++ {
		assert.False(t, resp.Items[i].CreatedAt.After(resp.Items[i-1].CreatedAt), "position %d", i)
	}

	resp, err = h.svc.GenerateFeed(ctx, models.FeedRequest{UserID: "u", Limit: 100, SortMode: models.SortPopular})
	require.NoError(t, err)
	for i := 1; i < len(resp.Items); i++ {
		assert.LessOrEqual(t, resp.Items[i].Popularity, resp.Items[i-1].Popularity, "position %d", i)
	}
}

func TestGenerateFeedInjectsReviewCards(t *testing.T) {
	h := newHarness(t, nil)
	seedCatalog(h.store, 5)
	h.store.AddCards("u",
		models.ReviewCard{WordID: 1, Word: "viaje", Translation: "trip", Mastery: 1, NextDue: testNow.Add(-time.Hour)},
		models.ReviewCard{WordID: 2, Word: "comida", Translation: "food", Mastery: 2, NextDue: testNow.Add(-2 * time.Hour)},
	)

	resp, err := h.svc.GenerateFeed(context.Background(), models.FeedRequest{UserID: "u", Limit: 12, IncludeSRS: true})
	require.NoError(t, err)

	require.Len(t, resp.Items, 14)
	reviews := 0
	for _, it := range resp.Items {
		if it.Type == models.ContentSRSReview {
			reviews++
			require.NotNil(t, it.Review)
		}
	}
	assert.Equal(t, 2, reviews)
}

func TestGenerateFeedReviewStoreFailureIsWarning(t *testing.T) {
	h := newHarness(t, nil)
	seedCatalog(h.store, 2)
	h.svc.deps.Injector = srs.NewInjector(failingCards{}, srs.DefaultConfig(), zerolog.Nop())

	resp, err := h.svc.GenerateFeed(context.Background(), models.FeedRequest{UserID: "u", IncludeSRS: true})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Items)
	assert.Contains(t, resp.Warnings, "review cards unavailable")
}

type failingCards struct{}

func (failingCards) GetDueReviewCards(context.Context, string, int) ([]models.ReviewCard, error) {
	return nil, errors.New("cards offline")
}

func TestGenerateFeedUsesDefaultProfileWhenStoreDown(t *testing.T) {
	h := newHarness(t, nil)
	seedCatalog(h.store, 2)
	broken := memstore.New()
	broken.Fail(errors.New("down"))
	h.svc.deps.Users = broken

	resp, err := h.svc.GenerateFeed(context.Background(), models.FeedRequest{UserID: "u"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Items)
	assert.NotEmpty(t, resp.Warnings)
}

func TestRecordInteraction(t *testing.T) {
	h := newHarness(t, nil)
	seedCatalog(h.store, 3)
	ctx := context.Background()

	resp, err := h.svc.GenerateFeed(ctx, models.FeedRequest{UserID: "u"})
	require.NoError(t, err)
	first := resp.Items[0]

	reward, err := h.svc.RecordInteraction(ctx, "u", models.InteractionInput{
		Type:        models.InteractionViewed,
		ContentID:   first.ID,
		ContentType: first.Type,
		Level:       first.Level,
		Topics:      first.Topics,
		Completed:   true,
		Liked:       true,
		TimeSpent:   30,
		Duration:    60,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, reward, 1e-9)
	h.graph.Wait()

	state, err := h.bandit.ExportUserData(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, len(bandit.Dimensions), state.TotalPulls())

	views, err := h.store.QueryInteractions(ctx, "u", time.Time{}, models.InteractionViewed)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, first.ID, views[0].ContentID)

	profile, err := h.store.GetUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 10, profile.XP)
	assert.Equal(t, 100.0, profile.ComprehensionScore)
	assert.Equal(t, 10.0, profile.Interests[first.Topics[0]])

	// The viewed item is no longer novel
	resp, err = h.svc.GenerateFeed(ctx, models.FeedRequest{UserID: "u", Limit: 100})
	require.NoError(t, err)
	for _, it := range resp.Items {
		if it.ID == first.ID {
			assert.Zero(t, it.Breakdown.Novelty)
		}
	}
}

func TestRecordInteractionSkipFeedsContext(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		reward, err := h.svc.RecordInteraction(ctx, "u", models.InteractionInput{
			Type: models.InteractionSkipped, ContentID: fmt.Sprintf("c%d", i), Skipped: true, TimeSpent: 2, Duration: 100,
		})
		require.NoError(t, err)
		assert.Zero(t, reward)
	}
	assert.Equal(t, 3, h.tracker.RecentSkipCount("u"))
}

func TestRecordInteractionValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.RecordInteraction(ctx, "", models.InteractionInput{Type: models.InteractionViewed})
	assert.True(t, apperr.IsValidation(err))

	_, err = h.svc.RecordInteraction(ctx, "u", models.InteractionInput{})
	assert.True(t, apperr.IsValidation(err))

	_, err = h.svc.RecordInteraction(ctx, "u", models.InteractionInput{Type: models.InteractionViewed, TimeSpent: -1})
	assert.True(t, apperr.IsValidation(err))

	_, err = h.svc.RecordInteraction(ctx, "u", models.InteractionInput{Type: models.InteractionLevelMove})
	assert.True(t, apperr.IsValidation(err))
}

func TestRecordInteractionRejectsUnknownTypesBeforeRewarding(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	inputs := []models.InteractionInput{
		{Type: "totally_bogus"},
		{Type: models.InteractionViewed, ContentType: "hologram"},
		{Type: models.InteractionLookup, ContentID: "c1"},
	}
	for _, in := range inputs {
		_, err := h.svc.RecordInteraction(ctx, "u2", in)
		assert.True(t, apperr.IsValidation(err), "type %q", in.Type)
	}

	state, err := h.bandit.ExportUserData(ctx, "u2")
	require.NoError(t, err)
	if state != nil {
		assert.Zero(t, state.TotalPulls())
	}
	stored, err := h.store.QueryInteractions(ctx, "u2", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRecordInteractionCompletedExercisesCountAsSuccesses(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	p := models.NewBootstrapProfile("u", testNow)
	p.Level = models.LevelB1
	require.NoError(t, h.store.UpsertUser(ctx, p))

	for i := 0; i < 10; i++ {
		_, err := h.svc.RecordInteraction(ctx, "u", models.InteractionInput{
			Type:        models.InteractionExercise,
			ContentID:   fmt.Sprintf("ex%d", i),
			ContentType: models.ContentSRSReview,
			Level:       models.LevelB1,
			Completed:   true,
		})
		require.NoError(t, err)
	}
	h.graph.Wait()

	stats := h.graph.GetSuccessRateByDifficulty(ctx, "u")
	assert.Equal(t, 10, stats[models.LevelB1].Attempts)
	assert.Equal(t, 10, stats[models.LevelB1].Successes)

	u, err := h.store.GetUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, models.LevelB2, u.Level)
}

func TestRecordInteractionWordLookup(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.RecordInteraction(ctx, "u", models.InteractionInput{
		Type: models.InteractionLookup, ContentID: "c1", Word: "ephemeral",
	})
	require.NoError(t, err)

	stored, err := h.store.QueryInteractions(ctx, "u", time.Time{}, models.InteractionLookup)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	payload, ok := stored[0].Payload.(models.WordLookupPayload)
	require.True(t, ok)
	assert.Equal(t, "ephemeral", payload.Word)
}

func TestInteractionFromInputRating(t *testing.T) {
	rec := interactionFromInput("u", &models.InteractionInput{Type: models.InteractionRated, TooHard: true})
	p, ok := rec.Payload.(models.RatingPayload)
	require.True(t, ok)
	assert.Equal(t, 3, p.Rating)
	assert.Equal(t, models.DifficultyTooHard, p.Difficulty)
	assert.NoError(t, rec.Validate())
}
