// Package srs splices due spaced-repetition review cards into a feed.
package srs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/example/lingofeed/pkg/models"
)

// CardStore returns the review cards a user has due
type CardStore interface {
	GetDueReviewCards(ctx context.Context, userID string, limit int) ([]models.ReviewCard, error)
}

// Config controls review card injection
type Config struct {
	// MaxCards is the most cards injected into one feed
	MaxCards int `koanf:"max_cards"`
	// CardScore is the score given to injected cards
	CardScore float64 `koanf:"card_score"`
}

// DefaultConfig returns the default injection settings
func DefaultConfig() Config {
	return Config{MaxCards: 5, CardScore: 95}
}

// Injector merges due cards into feeds
type Injector struct {
	store  CardStore
	config Config
	logger zerolog.Logger
}

// NewInjector creates an Injector reading cards from store
func NewInjector(store CardStore, cfg Config, logger zerolog.Logger) *Injector {
	if cfg.MaxCards <= 0 {
		cfg.MaxCards = DefaultConfig().MaxCards
	}
	return &Injector{store: store, config: cfg, logger: logger}
}

// Inject returns items with up to MaxCards review cards spliced in at even
// intervals. The relative order of items is preserved. If no card is due,
// or the store fails, items are returned unchanged; the error is returned
// so the caller can surface it as a warning.
func (i *Injector) Inject(ctx context.Context, userID string, items []models.FeedItem) ([]models.FeedItem, error) {
	if i.store == nil || len(items) == 0 {
		return items, nil
	}
	cards, err := i.store.GetDueReviewCards(ctx, userID, i.config.MaxCards)
	if err != nil {
		i.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load due review cards")
		return items, fmt.Errorf("failed to load due review cards: %w", err)
	}
	if len(cards) > i.config.MaxCards {
		cards = cards[:i.config.MaxCards]
	}
	if len(cards) == 0 {
		return items, nil
	}
	return Splice(items, cards, i.config.CardScore), nil
}

// Splice inserts one card after every interval items, where interval is
// len(items)/(len(cards)+1) and at least 1. At most len(items) cards are
// used so two cards are never adjacent.
func Splice(items []models.FeedItem, cards []models.ReviewCard, score float64) []models.FeedItem {
	if len(cards) > len(items) {
		cards = cards[:len(items)]
	}
	interval := max(len(items)/(len(cards)+1), 1)

	out := make([]models.FeedItem, 0, len(items)+len(cards))
	next := 0
	for j := range items {
		out = append(out, items[j])
		if next < len(cards) && (j+1)%interval == 0 {
			out = append(out, CardItem(cards[next], score))
			next++
		}
	}
	return out
}

// CardItem wraps a review card as a feed item
func CardItem(card models.ReviewCard, score float64) models.FeedItem {
	c := card
	return models.FeedItem{
		ContentItem: models.ContentItem{
			ID:    "srs-" + strconv.FormatInt(card.WordID, 10),
			Type:  models.ContentSRSReview,
			Title: card.Word,
			Text:  card.Translation,
		},
		Score:  score,
		Review: &c,
	}
}
