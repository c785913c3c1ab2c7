package models

import "time"

// SortMode selects the ordering of a feed
type SortMode string

const (
	SortRecommended SortMode = "recommended"
	SortRecent      SortMode = "recent"
	SortPopular     SortMode = "popular"
)

// Prefetch priorities attached to feed items
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// FeedRequest holds the parameters of a feed generation call
type FeedRequest struct {
	UserID          string        `json:"user_id" validate:"required,max=128"`
	Limit           int           `json:"limit" validate:"gte=0,lte=100"` // 0 means the configured default
	SessionPosition int           `json:"session_position" validate:"gte=0"`
	IncludeSRS      bool          `json:"include_srs"`
	ContentTypes    []ContentType `json:"content_types,omitempty" validate:"dive,oneof=video article podcast youtube music story"`
	Levels          []Level       `json:"levels,omitempty" validate:"dive,oneof=A1 A2 B1 B2 C1 C2"`
	Topics          []string      `json:"topics,omitempty" validate:"dive,min=1"`
	SearchQuery     string        `json:"search_query,omitempty" validate:"max=200"`
	SortMode        SortMode      `json:"sort_mode,omitempty" validate:"omitempty,oneof=recommended recent popular"`
}

// ScoreBreakdown holds the sub-scores of a content item, each in [0,100]
type ScoreBreakdown struct {
	LevelMatch      float64 `json:"level_match"`
	InterestMatch   float64 `json:"interest_match"`
	VocabularyMatch float64 `json:"vocabulary_match"`
	Novelty         float64 `json:"novelty"`
	Engagement      float64 `json:"engagement"`
}

// FeedItem is a ranked content item in a feed response
type FeedItem struct {
	ContentItem
	Score     float64         `json:"score"`
	Breakdown *ScoreBreakdown `json:"breakdown,omitempty"`
	Priority  string          `json:"priority"`
	Review    *ReviewCard     `json:"review,omitempty"` // Set on srs_review items
}

// FeedResponse is the result of a feed generation call
type FeedResponse struct {
	UserID      string             `json:"user_id"`
	Items       []FeedItem         `json:"items"`
	Weights     map[string]float64 `json:"weights"`
	Partial     bool               `json:"partial"` // A content source failed
	Warnings    []string           `json:"warnings,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// InteractionInput is the payload accepted by the interaction recording entry point
type InteractionInput struct {
	Type        InteractionType `json:"type" validate:"required,oneof=content_viewed content_skipped content_liked content_saved content_shared content_replayed word_lookup exercise_completed content_rated"`
	ContentID   string          `json:"content_id" validate:"max=128"`
	ContentType ContentType     `json:"content_type,omitempty" validate:"omitempty,oneof=video article podcast youtube music story srs_review"`
	Level       Level           `json:"level,omitempty" validate:"omitempty,oneof=A1 A2 B1 B2 C1 C2"`
	Topics      []string        `json:"topics,omitempty"`
	Word        string          `json:"word,omitempty" validate:"required_if=Type word_lookup,max=100"`
	Completed   bool            `json:"completed"`
	Liked       bool            `json:"liked"`
	Saved       bool            `json:"saved"`
	Shared      bool            `json:"shared"`
	Skipped     bool            `json:"skipped"`
	TooHard     bool            `json:"too_hard"`
	TooEasy     bool            `json:"too_easy"`
	Rating      int             `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	TimeSpent   float64         `json:"time_spent" validate:"gte=0"` // Seconds
	Duration    float64         `json:"duration" validate:"gte=0"`   // Seconds
}
