package models

import (
	"fmt"
	"strings"
)

// Level is a CEFR proficiency band
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// Levels lists every CEFR level from beginner to proficient
var Levels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// ParseLevel parses a CEFR level, case-insensitive
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if l.Ordinal() < 0 {
		return "", fmt.Errorf("unknown CEFR level %q", s)
	}
	return l, nil
}

// Ordinal returns the 0-based position of the level, or -1 if unknown
func (l Level) Ordinal() int {
	for i, lv := range Levels {
		if lv == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is a known CEFR level
func (l Level) Valid() bool {
	return l.Ordinal() >= 0
}

// Next returns the level one step above, or l itself at C2
func (l Level) Next() Level {
	i := l.Ordinal()
	if i < 0 || i == len(Levels)-1 {
		return l
	}
	return Levels[i+1]
}

// Prev returns the level one step below, or l itself at A1
func (l Level) Prev() Level {
	i := l.Ordinal()
	if i <= 0 {
		return l
	}
	return Levels[i-1]
}

// Distance returns the signed ordinal distance from l to other
// (positive when other is harder). ok is false if either level is unknown.
func (l Level) Distance(other Level) (d int, ok bool) {
	a, b := l.Ordinal(), other.Ordinal()
	if a < 0 || b < 0 {
		return 0, false
	}
	return b - a, true
}
