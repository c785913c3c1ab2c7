package models

import "time"

// DailyActivity aggregates a user's interactions for one UTC day
type DailyActivity struct {
	UserID       string    `json:"user_id" db:"user_id"`
	Day          time.Time `json:"day" db:"day"`
	Interactions int       `json:"interactions" db:"interactions"`
	XP           int       `json:"xp" db:"xp"`
}

// DayOf truncates t to the start of its UTC day
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
