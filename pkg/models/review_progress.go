package models

import "time"

// ReviewProgress is the spaced-repetition state of one word for one user
type ReviewProgress struct {
	ID               int64     `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	WordID           int64     `json:"word_id" db:"word_id"`
	EasinessFactor   float64   `json:"easiness_factor" db:"easiness_factor"`
	Interval         int       `json:"interval" db:"interval_days"` // Days
	Repetitions      int       `json:"repetitions" db:"repetitions"`
	LastQuality      int       `json:"last_quality" db:"last_quality"`
	ConsecutiveRight int       `json:"consecutive_right" db:"consecutive_right"`
	LastReviewDate   time.Time `json:"last_review_date" db:"last_review_date"`
	NextReviewDate   time.Time `json:"next_review_date" db:"next_review_date"`
}

// Word is a vocabulary entry that can be reviewed
type Word struct {
	ID          int64     `json:"id" db:"id"`
	Word        string    `json:"word" db:"word"`
	Translation string    `json:"translation" db:"translation"`
	Context     string    `json:"context,omitempty" db:"context"`
	Level       Level     `json:"level,omitempty" db:"level"`
	Topic       string    `json:"topic,omitempty" db:"topic"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
