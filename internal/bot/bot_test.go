package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingofeed/internal/signals"
	"github.com/example/lingofeed/pkg/models"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	answers []tgbotapi.CallbackConfig
	updates chan tgbotapi.Update
	stopped bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answers = append(f.answers, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type fakeFeed struct {
	items    []models.FeedItem
	requests []models.FeedRequest
	inputs   []models.InteractionInput
}

func (f *fakeFeed) GenerateFeed(_ context.Context, req models.FeedRequest) (*models.FeedResponse, error) {
	f.requests = append(f.requests, req)
	return &models.FeedResponse{UserID: req.UserID, Items: f.items}, nil
}

func (f *fakeFeed) RecordInteraction(_ context.Context, _ string, in models.InteractionInput) (float64, error) {
	f.inputs = append(f.inputs, in)
	return 0.5, nil
}

type fakeTracker struct {
	lookups     []signals.Content
	performance []int
}

func (f *fakeTracker) TrackWordLookup(_ context.Context, _ string, c signals.Content, _, _ string) (signals.Interpretation, error) {
	f.lookups = append(f.lookups, c)
	return signals.Interpretation{Label: signals.LabelVocabularyBuilding}, nil
}

func (f *fakeTracker) TrackPerformance(_ context.Context, _ string, _ signals.Content, _ string, correct, _ int) (signals.Interpretation, error) {
	f.performance = append(f.performance, correct)
	return signals.Interpretation{}, nil
}

type fakeProfiles struct {
	profile *models.UserProfile
}

func (f *fakeProfiles) GetUser(context.Context, string) (*models.UserProfile, error) {
	return f.profile, nil
}

type fakeReviews struct {
	due     []models.ReviewCard
	reviews map[int64]int
	deck    []int64
}

func (f *fakeReviews) GetDueReviewCards(context.Context, string, int) ([]models.ReviewCard, error) {
	return f.due, nil
}

func (f *fakeReviews) RecordReview(_ context.Context, userID string, wordID int64, quality int) (*models.ReviewProgress, error) {
	if f.reviews == nil {
		f.reviews = make(map[int64]int)
	}
	f.reviews[wordID] = quality
	return &models.ReviewProgress{UserID: userID, WordID: wordID, Interval: 1}, nil
}

func (f *fakeReviews) AddToDeck(_ context.Context, _ string, wordID int64) error {
	f.deck = append(f.deck, wordID)
	return nil
}

type fakeWords map[string]*models.Word

func (f fakeWords) GetByWord(_ context.Context, text string) (*models.Word, error) {
	return f[text], nil
}

type harness struct {
	bot     *Bot
	api     *fakeAPI
	feed    *fakeFeed
	tracker *fakeTracker
	reviews *fakeReviews
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		api: &fakeAPI{updates: make(chan tgbotapi.Update)},
		feed: &fakeFeed{items: []models.FeedItem{
			{ContentItem: models.ContentItem{ID: "v1", Type: models.ContentVideo, Title: "Tapas", Level: models.LevelA2, Topics: []string{"food"}, DurationSeconds: 60}, Score: 81},
			{ContentItem: models.ContentItem{ID: "srs-7", Type: models.ContentSRSReview, Title: "casa"}, Score: 95, Review: &models.ReviewCard{WordID: 7, Word: "casa", Translation: "house"}},
		}},
		tracker: &fakeTracker{},
		reviews: &fakeReviews{},
		now:     time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	h.bot = New(h.api, Deps{
		Feed:     h.feed,
		Tracker:  h.tracker,
		Profiles: &fakeProfiles{profile: &models.UserProfile{ID: "42", Level: models.LevelB1, XP: 120, Streak: 3, KnownWordCount: 15}},
		Reviews:  h.reviews,
		Words:    fakeWords{"casa": {ID: 7, Word: "casa", Translation: "house"}},
	}, DefaultConfig(), zerolog.Nop())
	h.bot.now = func() time.Time { return h.now }
	return h
}

func command(text string) *tgbotapi.Message {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: 42},
		Chat:     &tgbotapi.Chat{ID: 4242},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func press(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 4242}},
		Data:    data,
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		want    callback
		wantErr bool
	}{
		{data: "like:v1", want: callback{Action: actionLike, ContentID: "v1"}},
		{data: "done:a:b", want: callback{Action: actionDone, ContentID: "a:b"}},
		{data: "rv:7:4", want: callback{Action: actionReview, WordID: 7, Quality: 4}},
		{data: "menu:feed", want: callback{Action: actionMenu, ContentID: "feed"}},
		{data: "rv:7", wantErr: true},
		{data: "rv:x:4", wantErr: true},
		{data: "rv:7:9", wantErr: true},
		{data: "like:", wantErr: true},
		{data: "dance:v1", wantErr: true},
		{data: "garbage", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := parseCallback(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFeedCommandSendsItemsAndAdvancesPosition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.bot.HandleCommand(ctx, command("/feed")))
	require.NoError(t, h.bot.HandleCommand(ctx, command("/feed")))

	require.Len(t, h.feed.requests, 2)
	assert.Equal(t, "42", h.feed.requests[0].UserID)
	assert.Equal(t, 0, h.feed.requests[0].SessionPosition)
	assert.Equal(t, 2, h.feed.requests[1].SessionPosition)
	assert.True(t, h.feed.requests[0].IncludeSRS)

	msgs := h.api.messages()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Text, "Tapas")
	kb, ok := msgs[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "done:v1", *kb.InlineKeyboard[0][0].CallbackData)
	review, ok := msgs[1].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "rv:7:1", *review.InlineKeyboard[0][0].CallbackData)
}

func TestFeedbackButtonsRecordInteractions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.bot.HandleCommand(ctx, command("/feed")))

	h.now = h.now.Add(5 * time.Second)
	require.NoError(t, h.bot.HandleCallback(ctx, press("skip:v1")))
	require.NoError(t, h.bot.HandleCallback(ctx, press("done:v1")))
	require.NoError(t, h.bot.HandleCallback(ctx, press("hard:v1")))

	require.Len(t, h.feed.inputs, 3)
	skip := h.feed.inputs[0]
	assert.Equal(t, models.InteractionSkipped, skip.Type)
	assert.InDelta(t, 5.0, skip.TimeSpent, 1e-9)
	assert.InDelta(t, 60.0, skip.Duration, 1e-9)
	assert.Equal(t, []string{"food"}, skip.Topics)

	done := h.feed.inputs[1]
	assert.Equal(t, models.InteractionViewed, done.Type)
	assert.True(t, done.Completed)
	assert.InDelta(t, 60.0, done.TimeSpent, 1e-9)

	hard := h.feed.inputs[2]
	assert.Equal(t, models.InteractionRated, hard.Type)
	assert.True(t, hard.TooHard)
	assert.Equal(t, 2, hard.Rating)
	assert.Len(t, h.api.answers, 3)
}

func TestUnknownItemIsNotRecorded(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.HandleCallback(context.Background(), press("like:nope")))
	assert.Empty(t, h.feed.inputs)
	require.Len(t, h.api.answers, 1)
	assert.Equal(t, "This item has expired.", h.api.answers[0].Text)
}

func TestReviewButtonSchedulesCard(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.HandleCallback(context.Background(), press("rv:7:4")))
	assert.Equal(t, map[int64]int{7: 4}, h.reviews.reviews)
	assert.Equal(t, []int{1}, h.tracker.performance)

	require.NoError(t, h.bot.HandleCallback(context.Background(), press("rv:7:1")))
	assert.Equal(t, []int{1, 0}, h.tracker.performance)
}

func TestLookupUsesCurrentItemAndAddsToDeck(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.bot.HandleCommand(ctx, command("/feed")))
	require.NoError(t, h.bot.HandleCommand(ctx, command("/lookup casa la casa es grande")))

	require.Len(t, h.tracker.lookups, 1)
	assert.Equal(t, "v1", h.tracker.lookups[0].ID)
	assert.Equal(t, []int64{7}, h.reviews.deck)

	msgs := h.api.messages()
	assert.Contains(t, msgs[len(msgs)-1].Text, "casa: house")
}

func TestStatsCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.HandleCommand(context.Background(), command("/stats")))
	msgs := h.api.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "XP: 120")
	assert.Contains(t, msgs[0].Text, "Streak: 3 days")
}

func TestReviewReminders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.bot.HandleCommand(ctx, command("/start")))

	sent, err := h.bot.SendReviewReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	h.reviews.due = []models.ReviewCard{{WordID: 7, Word: "casa"}}
	sent, err = h.bot.SendReviewReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	msgs := h.api.messages()
	assert.Contains(t, msgs[len(msgs)-1].Text, "1 word to review")
}

func TestRunStopsWithContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	h.api.updates <- tgbotapi.Update{UpdateID: 1, Message: command("/help")}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
	assert.True(t, h.api.stopped)
	assert.Len(t, h.api.messages(), 1)
}
