// Package memstore keeps users, interactions, content and review cards in
// process memory. It backs the "memory" database type and package tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/lingofeed/pkg/models"
)

// ErrUnavailable is returned by every operation after Fail is called
var ErrUnavailable = errors.New("memstore: store unavailable")

// Store is a mutex-guarded in-memory store
type Store struct {
	mu           sync.RWMutex
	users        map[string]*models.UserProfile
	interactions []models.Interaction
	activity     map[string]map[time.Time]*models.DailyActivity
	content      map[models.ContentType][]models.ContentItem
	cards        map[string][]models.ReviewCard
	failErr      error
	now          func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:    make(map[string]*models.UserProfile),
		activity: make(map[string]map[time.Time]*models.DailyActivity),
		content:  make(map[models.ContentType][]models.ContentItem),
		cards:    make(map[string][]models.ReviewCard),
		now:      time.Now,
	}
}

// WithClock sets the clock used to decide which cards are due
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Fail makes every subsequent operation return err; nil restores the store
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *Store) failure() error {
	return s.failErr
}

// GetUser returns a copy of the profile, or nil, nil if absent
func (s *Store) GetUser(_ context.Context, id string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(); err != nil {
		return nil, err
	}
	u := s.users[id].Clone()
	if u != nil && len(s.cards[id]) > 0 {
		u.KnownWords = s.knownWords(id)
		u.KnownWordCount = max(u.KnownWordCount, len(u.KnownWords))
	}
	return u, nil
}

// UpsertUser stores a copy of the profile
func (s *Store) UpsertUser(_ context.Context, p *models.UserProfile) error {
	if p == nil || p.ID == "" {
		return errors.New("memstore: profile without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	s.users[p.ID] = p.Clone()
	return nil
}

// UpsertInterest sets one interest weight, creating the user if needed
func (s *Store) UpsertInterest(_ context.Context, userID, topic string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	u, ok := s.users[userID]
	if !ok {
		u = models.NewBootstrapProfile(userID, s.now())
		s.users[userID] = u
	}
	if u.Interests == nil {
		u.Interests = make(map[string]float64)
	}
	u.Interests[topic] = weight
	return nil
}

// AppendInteraction stores an interaction
func (s *Store) AppendInteraction(_ context.Context, in *models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	c := *in
	c.Topics = append([]string(nil), in.Topics...)
	s.interactions = append(s.interactions, c)
	return nil
}

// QueryInteractions returns the user's interactions at or after since,
// oldest first, optionally filtered by type
func (s *Store) QueryInteractions(_ context.Context, userID string, since time.Time, types ...models.InteractionType) ([]models.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(); err != nil {
		return nil, err
	}

	var out []models.Interaction
	for _, in := range s.interactions {
		if in.UserID != userID || in.Timestamp.Before(since) {
			continue
		}
		if len(types) > 0 && !containsType(types, in.Type) {
			continue
		}
		out = append(out, in)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func containsType(types []models.InteractionType, t models.InteractionType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// DeleteInteractionsBefore removes interactions older than cutoff
func (s *Store) DeleteInteractionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return 0, err
	}
	kept := s.interactions[:0]
	var removed int64
	for _, in := range s.interactions {
		if in.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, in)
	}
	s.interactions = kept
	return removed, nil
}

// InteractionCount returns the number of stored interactions
func (s *Store) InteractionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.interactions)
}

// IncrementDailyActivity adds one interaction and xp to the user's day
func (s *Store) IncrementDailyActivity(_ context.Context, userID string, day time.Time, xp int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	day = models.DayOf(day)
	days, ok := s.activity[userID]
	if !ok {
		days = make(map[time.Time]*models.DailyActivity)
		s.activity[userID] = days
	}
	a, ok := days[day]
	if !ok {
		a = &models.DailyActivity{UserID: userID, Day: day}
		days[day] = a
	}
	a.Interactions++
	a.XP += xp
	return nil
}

// GetDailyActivity returns the user's activity for the day containing day
func (s *Store) GetDailyActivity(_ context.Context, userID string, day time.Time) (*models.DailyActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(); err != nil {
		return nil, err
	}
	a, ok := s.activity[userID][models.DayOf(day)]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

// AddContent adds items to the catalog
func (s *Store) AddContent(items ...models.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.content[it.Type] = append(s.content[it.Type], it)
	}
}

// UpsertContent adds or replaces a catalog item
func (s *Store) UpsertContent(_ context.Context, item *models.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(); err != nil {
		return err
	}
	list := s.content[item.Type]
	for i := range list {
		if list[i].ID == item.ID {
			list[i] = *item
			return nil
		}
	}
	s.content[item.Type] = append(list, *item)
	return nil
}

// FetchContent returns up to limit items of type t, newest first
func (s *Store) FetchContent(ctx context.Context, t models.ContentType, limit int) ([]models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(); err != nil {
		return nil, err
	}

	items := append([]models.ContentItem(nil), s.content[t]...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// AddCards adds review cards for a user
func (s *Store) AddCards(userID string, cards ...models.ReviewCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[userID] = append(s.cards[userID], cards...)
}

// GetDueReviewCards returns up to limit cards due now, most overdue first
func (s *Store) GetDueReviewCards(_ context.Context, userID string, limit int) ([]models.ReviewCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(); err != nil {
		return nil, err
	}

	now := s.now()
	var due []models.ReviewCard
	for _, c := range s.cards[userID] {
		if !c.NextDue.After(now) {
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].NextDue.Before(due[j].NextDue) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// knownWords returns the words of the user's cards at models.KnownMastery or above.
// Callers hold s.mu.
func (s *Store) knownWords(userID string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, c := range s.cards[userID] {
		if c.Mastery >= models.KnownMastery {
			out[strings.ToLower(c.Word)] = struct{}{}
		}
	}
	return out
}
