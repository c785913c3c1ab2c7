package models

import "time"

// ReviewCard is a due spaced-repetition card merged into the feed
type ReviewCard struct {
	WordID      int64     `json:"word_id" db:"word_id"`
	Word        string    `json:"word" db:"word"`
	Translation string    `json:"translation" db:"translation"`
	Mastery     int       `json:"mastery" db:"mastery"` // 0-5
	NextDue     time.Time `json:"next_due" db:"next_review_date"`
}

// KnownMastery is the card mastery from which a word counts as known
const KnownMastery = 3
