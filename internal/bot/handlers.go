package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lingofeed/internal/signals"
	"github.com/example/lingofeed/pkg/models"
)

// Callback actions on feed items
const (
	actionLike   = "like"
	actionSave   = "save"
	actionSkip   = "skip"
	actionDone   = "done"
	actionHard   = "hard"
	actionEasy   = "easy"
	actionReview = "rv"
	actionMenu   = "menu"
)

// maxCallbackData is the Telegram limit on callback data
const maxCallbackData = 64

// callback is a parsed button press
type callback struct {
	Action    string
	ContentID string
	WordID    int64
	Quality   int
}

// parseCallback decodes "action:content-id", "rv:word-id:quality" and
// "menu:name" callback data
func parseCallback(data string) (callback, error) {
	action, arg, ok := strings.Cut(data, ":")
	if !ok || arg == "" {
		return callback{}, fmt.Errorf("malformed callback %q", data)
	}
	switch action {
	case actionLike, actionSave, actionSkip, actionDone, actionHard, actionEasy, actionMenu:
		return callback{Action: action, ContentID: arg}, nil
	case actionReview:
		word, quality, ok := strings.Cut(arg, ":")
		if !ok {
			return callback{}, fmt.Errorf("malformed review callback %q", data)
		}
		id, err := strconv.ParseInt(word, 10, 64)
		if err != nil {
			return callback{}, fmt.Errorf("invalid word id in %q: %w", data, err)
		}
		q, err := strconv.Atoi(quality)
		if err != nil || q < 0 || q > 5 {
			return callback{}, fmt.Errorf("invalid review quality in %q", data)
		}
		return callback{Action: action, WordID: id, Quality: q}, nil
	}
	return callback{}, fmt.Errorf("unknown callback action %q", action)
}

func mainMenu() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "📚 Feed", CallbackData: "menu:feed"}, {Text: "📊 Stats", CallbackData: "menu:stats"}},
	}
}

// itemButtons returns the feedback keyboard of a feed item, or nil when
// the id does not fit in callback data
func itemButtons(item *models.FeedItem) [][]MenuButton {
	if item.Review != nil {
		id := strconv.FormatInt(item.Review.WordID, 10)
		return [][]MenuButton{{
			{Text: "Again", CallbackData: "rv:" + id + ":1"},
			{Text: "Hard", CallbackData: "rv:" + id + ":3"},
			{Text: "Good", CallbackData: "rv:" + id + ":4"},
			{Text: "Easy", CallbackData: "rv:" + id + ":5"},
		}}
	}
	if len(actionLike)+1+len(item.ID) > maxCallbackData {
		return nil
	}
	data := func(action string) string { return action + ":" + item.ID }
	return [][]MenuButton{
		{
			{Text: "✅ Done", CallbackData: data(actionDone)},
			{Text: "⏭ Skip", CallbackData: data(actionSkip)},
			{Text: "❤️", CallbackData: data(actionLike)},
			{Text: "🔖", CallbackData: data(actionSave)},
		},
		{
			{Text: "Too hard", CallbackData: data(actionHard)},
			{Text: "Too easy", CallbackData: data(actionEasy)},
		},
	}
}

func formatItem(item *models.FeedItem) string {
	if item.Review != nil {
		return fmt.Sprintf("🔁 Review: %s\n(%s)\nHow well did you remember it?", item.Review.Word, item.Review.Translation)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s · %s] %s\n", item.Type, item.Level, item.Title)
	if len(item.Topics) > 0 {
		fmt.Fprintf(&sb, "Topics: %s\n", strings.Join(item.Topics, ", "))
	}
	if item.DurationSeconds > 0 {
		fmt.Fprintf(&sb, "Length: %s\n", (time.Duration(item.DurationSeconds) * time.Second).String())
	}
	fmt.Fprintf(&sb, "Match: %.0f", item.Score)
	return sb.String()
}

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message.From == nil || message.Chat == nil {
		return fmt.Errorf("invalid message: required fields are missing")
	}
	user := userID(message.From)
	chatID := message.Chat.ID

	b.mu.Lock()
	b.sessionFor(user, chatID)
	b.mu.Unlock()

	switch message.Command() {
	case "start":
		return b.send(chatID, "👋 Welcome! I pick videos, articles, podcasts and stories that fit your level and interests.\n\n"+
			"Send /feed to get content, /help for all commands.", mainMenu())
	case "help":
		return b.send(chatID, "/feed - get your next items\n"+
			"/level - show your level and comprehension\n"+
			"/stats - show your progress\n"+
			"/lookup <word> [sentence] - look up a word in the item you are reading", nil)
	case "feed":
		return b.handleFeed(ctx, user, chatID)
	case "level":
		return b.handleLevel(ctx, user, chatID)
	case "stats":
		return b.handleStats(ctx, user, chatID)
	case "lookup":
		return b.handleLookup(ctx, user, chatID, message.CommandArguments())
	default:
		return b.send(chatID, "Unknown command. Use /help to see the commands.", mainMenu())
	}
}

func (b *Bot) handleFeed(ctx context.Context, user string, chatID int64) error {
	b.mu.Lock()
	position := b.sessionFor(user, chatID).position
	b.mu.Unlock()

	resp, err := b.deps.Feed.GenerateFeed(ctx, models.FeedRequest{
		UserID:          user,
		Limit:           b.config.FeedSize,
		SessionPosition: position,
		IncludeSRS:      b.deps.Reviews != nil,
	})
	if err != nil {
		_ = b.send(chatID, "Sorry, I couldn't build your feed right now.", nil)
		return fmt.Errorf("failed to generate feed: %w", err)
	}
	if len(resp.Items) == 0 {
		return b.send(chatID, "Nothing new for you right now. Try again later!", nil)
	}

	now := b.now()
	b.mu.Lock()
	s := b.sessionFor(user, chatID)
	s.position += len(resp.Items)
	for _, item := range resp.Items {
		s.items[item.ID] = item
		s.sentAt[item.ID] = now
	}
	b.mu.Unlock()

	for i := range resp.Items {
		item := &resp.Items[i]
		if err := b.send(chatID, formatItem(item), itemButtons(item)); err != nil {
			return err
		}
		if item.Review == nil {
			b.mu.Lock()
			s.current = item.ID
			b.mu.Unlock()
		}
	}
	b.logger.Debug().Str("user_id", user).Int("items", len(resp.Items)).Int("position", position).Msg("feed delivered")
	return nil
}

func (b *Bot) handleLevel(ctx context.Context, user string, chatID int64) error {
	p, err := b.deps.Profiles.GetUser(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		return b.send(chatID, "You don't have a level yet. Send /feed to start.", nil)
	}
	return b.send(chatID, fmt.Sprintf("Level: %s\nComprehension: %.0f%%", p.Level, p.ComprehensionScore), nil)
}

func (b *Bot) handleStats(ctx context.Context, user string, chatID int64) error {
	p, err := b.deps.Profiles.GetUser(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		return b.send(chatID, "No progress yet. Send /feed to start.", nil)
	}
	text := fmt.Sprintf("📊 Your progress\n\nLevel: %s\nXP: %d\nStreak: %d %s\nKnown words: %d",
		p.Level, p.XP, p.Streak, plural(p.Streak, "day", "days"), p.KnownWordCount)
	return b.send(chatID, text, mainMenu())
}

func (b *Bot) handleLookup(ctx context.Context, user string, chatID int64, args string) error {
	word, sentence, _ := strings.Cut(strings.TrimSpace(args), " ")
	if word == "" {
		return b.send(chatID, "Usage: /lookup <word> [sentence]", nil)
	}

	b.mu.Lock()
	s := b.sessionFor(user, chatID)
	item, ok := s.items[s.current]
	b.mu.Unlock()
	var content signals.Content
	if ok {
		content = signals.ContentOf(&item.ContentItem)
	}

	interp, err := b.deps.Tracker.TrackWordLookup(ctx, user, content, word, strings.TrimSpace(sentence))
	if err != nil {
		return fmt.Errorf("failed to track lookup: %w", err)
	}

	reply := fmt.Sprintf("No translation for %q yet.", word)
	if b.deps.Words != nil {
		w, err := b.deps.Words.GetByWord(ctx, word)
		if err != nil {
			return fmt.Errorf("failed to look up word: %w", err)
		}
		if w != nil {
			reply = fmt.Sprintf("%s: %s", w.Word, w.Translation)
			if w.Context != "" {
				reply += "\n" + w.Context
			}
			if b.deps.Reviews != nil {
				if err := b.deps.Reviews.AddToDeck(ctx, user, w.ID); err != nil {
					b.logger.Warn().Err(err).Str("user_id", user).Msg("failed to add word to deck")
				} else {
					reply += "\nAdded to your reviews."
				}
			}
		}
	}
	if interp.Label == signals.LabelContentTooDifficult {
		reply += "\nThis one looks hard. I'll suggest easier content."
	}
	return b.send(chatID, reply, nil)
}

// HandleCallback handles button presses
func (b *Bot) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return fmt.Errorf("invalid callback: required fields are missing")
	}
	user := userID(cq.From)
	chatID := cq.Message.Chat.ID

	cb, err := parseCallback(cq.Data)
	if err != nil {
		b.answer(cq.ID, "")
		return err
	}

	switch cb.Action {
	case actionMenu:
		b.answer(cq.ID, "")
		switch cb.ContentID {
		case "feed":
			return b.handleFeed(ctx, user, chatID)
		case "stats":
			return b.handleStats(ctx, user, chatID)
		}
		return nil
	case actionReview:
		return b.handleReview(ctx, cq.ID, user, cb)
	}

	b.mu.Lock()
	s := b.sessionFor(user, chatID)
	item, ok := s.items[cb.ContentID]
	sentAt := s.sentAt[cb.ContentID]
	b.mu.Unlock()
	if !ok {
		b.answer(cq.ID, "This item has expired.")
		return nil
	}

	in := feedbackInput(cb.Action, &item, b.now().Sub(sentAt))
	if _, err := b.deps.Feed.RecordInteraction(ctx, user, in); err != nil {
		b.answer(cq.ID, "Couldn't save that.")
		return fmt.Errorf("failed to record %s: %w", cb.Action, err)
	}
	b.answer(cq.ID, acknowledgement(cb.Action))
	return nil
}

// feedbackInput builds the interaction for a button press on item, shown
// elapsed ago
func feedbackInput(action string, item *models.FeedItem, elapsed time.Duration) models.InteractionInput {
	in := models.InteractionInput{
		ContentID:   item.ID,
		ContentType: item.Type,
		Level:       item.Level,
		Topics:      item.Topics,
		Duration:    float64(item.DurationSeconds),
	}
	spent := elapsed.Seconds()
	if spent < 0 {
		spent = 0
	}
	if in.Duration > 0 && spent > in.Duration {
		spent = in.Duration
	}

	switch action {
	case actionDone:
		in.Type = models.InteractionViewed
		in.Completed = true
		in.TimeSpent = spent
		if in.Duration > 0 {
			in.TimeSpent = in.Duration
		}
	case actionSkip:
		in.Type = models.InteractionSkipped
		in.Skipped = true
		in.TimeSpent = spent
	case actionLike:
		in.Type = models.InteractionLiked
		in.Liked = true
	case actionSave:
		in.Type = models.InteractionSaved
		in.Saved = true
	case actionHard:
		in.Type = models.InteractionRated
		in.TooHard = true
		in.Rating = 2
	case actionEasy:
		in.Type = models.InteractionRated
		in.TooEasy = true
		in.Rating = 4
	}
	return in
}

func acknowledgement(action string) string {
	switch action {
	case actionLike:
		return "❤️ Liked"
	case actionSave:
		return "🔖 Saved"
	case actionSkip:
		return "Skipped"
	case actionHard:
		return "Got it, easier content next"
	case actionEasy:
		return "Got it, more challenge next"
	}
	return "Nice work!"
}

func (b *Bot) handleReview(ctx context.Context, callbackID, user string, cb callback) error {
	if b.deps.Reviews == nil {
		b.answer(callbackID, "Reviews are not available.")
		return nil
	}
	p, err := b.deps.Reviews.RecordReview(ctx, user, cb.WordID, cb.Quality)
	if err != nil {
		b.answer(callbackID, "Couldn't save that.")
		return fmt.Errorf("failed to record review: %w", err)
	}

	correct := 0
	if cb.Quality >= 3 {
		correct = 1
	}
	content := signals.Content{ID: fmt.Sprintf("srs-%d", cb.WordID), Type: models.ContentSRSReview}
	if _, err := b.deps.Tracker.TrackPerformance(ctx, user, content, "srs_review", correct, 1); err != nil {
		b.logger.Warn().Err(err).Str("user_id", user).Msg("failed to track review result")
	}
	b.answer(callbackID, fmt.Sprintf("Next review in %d %s", p.Interval, plural(p.Interval, "day", "days")))
	return nil
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Warn().Err(err).Msg("failed to answer callback")
	}
}
