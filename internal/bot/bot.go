// Package bot delivers feeds over Telegram and turns button presses into
// interactions, review answers and word lookups.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/example/lingofeed/internal/signals"
	"github.com/example/lingofeed/pkg/models"
)

// API is the part of the Telegram client the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// FeedService generates feeds and records feedback on them
type FeedService interface {
	GenerateFeed(ctx context.Context, req models.FeedRequest) (*models.FeedResponse, error)
	RecordInteraction(ctx context.Context, userID string, in models.InteractionInput) (float64, error)
}

// SignalTracker records signals that have no feed button
type SignalTracker interface {
	TrackWordLookup(ctx context.Context, userID string, c signals.Content, word, sentence string) (signals.Interpretation, error)
	TrackPerformance(ctx context.Context, userID string, c signals.Content, exerciseType string, correct, total int) (signals.Interpretation, error)
}

// ProfileStore reads learner profiles
type ProfileStore interface {
	GetUser(ctx context.Context, id string) (*models.UserProfile, error)
}

// ReviewStore schedules review cards
type ReviewStore interface {
	GetDueReviewCards(ctx context.Context, userID string, limit int) ([]models.ReviewCard, error)
	RecordReview(ctx context.Context, userID string, wordID int64, quality int) (*models.ReviewProgress, error)
	AddToDeck(ctx context.Context, userID string, wordID int64) error
}

// Dictionary looks up vocabulary
type Dictionary interface {
	GetByWord(ctx context.Context, text string) (*models.Word, error)
}

// Deps are the collaborators of the bot. Reviews and Words are optional.
type Deps struct {
	Feed     FeedService
	Tracker  SignalTracker
	Profiles ProfileStore
	Reviews  ReviewStore
	Words    Dictionary
}

// MenuButton represents a button in a keyboard
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// session is the feed state of one chat
type session struct {
	chatID   int64
	position int
	items    map[string]models.FeedItem
	sentAt   map[string]time.Time
	current  string // Last content item sent
}

// Bot represents the Telegram bot application
type Bot struct {
	api      API
	deps     Deps
	config   Config
	logger   zerolog.Logger
	now      func() time.Time
	mu       sync.Mutex
	sessions map[string]*session // By user id
	wg       sync.WaitGroup
}

// Connect authorizes against the Bot API with the token
func Connect(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	return api, nil
}

// New creates a new bot instance
func New(api API, deps Deps, cfg Config, logger zerolog.Logger) *Bot {
	def := DefaultConfig()
	if cfg.FeedSize <= 0 {
		cfg.FeedSize = def.FeedSize
	}
	if cfg.ReminderCards <= 0 {
		cfg.ReminderCards = def.ReminderCards
	}
	return &Bot{
		api:      api,
		deps:     deps,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Run handles updates until ctx is done
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = int(b.config.PollTimeout.Seconds())
	updates := b.api.GetUpdatesChan(updateConfig)
	b.logger.Info().Msg("bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.logger.Info().Msg("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil && update.Message.IsCommand():
		err = b.HandleCommand(ctx, update.Message)
	case update.Message != nil:
		err = b.send(update.Message.Chat.ID, "I don't understand. Use /help to see the commands.", nil)
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	}
	if err != nil {
		b.logger.Error().Err(err).Int("update_id", update.UpdateID).Msg("failed to handle update")
	}
}

// userID maps a Telegram user to a learner id
func userID(from *tgbotapi.User) string {
	return strconv.FormatInt(from.ID, 10)
}

// sessionFor returns the chat session of the user, creating it if needed.
// Callers hold b.mu.
func (b *Bot) sessionFor(user string, chatID int64) *session {
	s, ok := b.sessions[user]
	if !ok {
		s = &session{
			chatID: chatID,
			items:  make(map[string]models.FeedItem),
			sentAt: make(map[string]time.Time),
		}
		b.sessions[user] = s
	}
	s.chatID = chatID
	return s
}

func (b *Bot) send(chatID int64, text string, keyboard [][]MenuButton) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = createKeyboard(keyboard)
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendReviewReminders tells every known chat how many review cards are due.
// It returns the number of reminders sent.
func (b *Bot) SendReviewReminders(ctx context.Context) (int, error) {
	if b.deps.Reviews == nil {
		return 0, nil
	}
	b.mu.Lock()
	chats := make(map[string]int64, len(b.sessions))
	for user, s := range b.sessions {
		chats[user] = s.chatID
	}
	b.mu.Unlock()

	sent := 0
	var errs []error
	for user, chatID := range chats {
		cards, err := b.deps.Reviews.GetDueReviewCards(ctx, user, b.config.ReminderCards)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", user, err))
			continue
		}
		if len(cards) == 0 {
			continue
		}
		text := fmt.Sprintf("You have %d %s to review. Send /feed to practice them.", len(cards), plural(len(cards), "word", "words"))
		if err := b.send(chatID, text, nil); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", user, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
