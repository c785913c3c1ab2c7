package models

import "time"

// HistoryEntry records that a user has seen a content item
type HistoryEntry struct {
	ContentID string    `json:"content_id"`
	ViewedAt  time.Time `json:"viewed_at"`
}

// UserProfile is the learner state used for ranking
type UserProfile struct {
	ID                  string              `json:"id" db:"id"`
	Level               Level               `json:"level" db:"level"`
	KnownWordCount      int                 `json:"known_word_count" db:"known_word_count"`
	KnownWords          map[string]struct{} `json:"-" db:"-"` // Optional, loaded from the review store
	Interests           map[string]float64  `json:"interests" db:"-"`
	RecentHistory       []HistoryEntry      `json:"recent_history" db:"-"`
	SuccessByDifficulty map[Level]float64   `json:"success_by_difficulty" db:"-"`
	ComprehensionScore  float64             `json:"comprehension_score" db:"comprehension_score"`
	Streak              int                 `json:"streak" db:"streak"`
	XP                  int                 `json:"xp" db:"xp"`
	LastActiveAt        *time.Time          `json:"last_active_at,omitempty" db:"last_active_at"`
	CreatedAt           time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at" db:"updated_at"`
}

// DefaultLevel is the level assigned to new users
const DefaultLevel = LevelA2

// StarterInterests are the interests assigned to new users
var StarterInterests = []string{"travel", "food", "music", "culture"}

// StarterInterestWeight is the weight of each starter interest
const StarterInterestWeight = 5.0

// NewBootstrapProfile returns the default profile for a user seen for the first time
func NewBootstrapProfile(userID string, now time.Time) *UserProfile {
	interests := make(map[string]float64, len(StarterInterests))
	for _, topic := range StarterInterests {
		interests[topic] = StarterInterestWeight
	}
	return &UserProfile{
		ID:                  userID,
		Level:               DefaultLevel,
		Interests:           interests,
		SuccessByDifficulty: make(map[Level]float64),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// HasSeen returns the most recent time the user saw contentID
func (p *UserProfile) HasSeen(contentID string) (time.Time, bool) {
	var last time.Time
	seen := false
	for _, h := range p.RecentHistory {
		if h.ContentID == contentID && (!seen || h.ViewedAt.After(last)) {
			last = h.ViewedAt
			seen = true
		}
	}
	return last, seen
}

// Clone returns a deep copy of the profile
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.KnownWords != nil {
		c.KnownWords = make(map[string]struct{}, len(p.KnownWords))
		for w := range p.KnownWords {
			c.KnownWords[w] = struct{}{}
		}
	}
	if p.Interests != nil {
		c.Interests = make(map[string]float64, len(p.Interests))
		for k, v := range p.Interests {
			c.Interests[k] = v
		}
	}
	if p.SuccessByDifficulty != nil {
		c.SuccessByDifficulty = make(map[Level]float64, len(p.SuccessByDifficulty))
		for k, v := range p.SuccessByDifficulty {
			c.SuccessByDifficulty[k] = v
		}
	}
	c.RecentHistory = append([]HistoryEntry(nil), p.RecentHistory...)
	if p.LastActiveAt != nil {
		t := *p.LastActiveAt
		c.LastActiveAt = &t
	}
	return &c
}
