package spaced_repetition

import (
	"sort"
	"time"

	"github.com/example/lingofeed/pkg/models"
)

// SM2 implements the SuperMemo-2 algorithm for spaced repetition
type SM2 struct {
	// PassThreshold is the lowest quality that counts as recalled
	PassThreshold int
	// MaxInterval caps the review interval in days
	MaxInterval int
	// InitialIntervals are the intervals in days of the first repetitions
	InitialIntervals []int
}

// NewSM2 creates an SM2 with default settings
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold:    3,
		MaxInterval:      365,
		InitialIntervals: []int{0, 1, 2, 3, 7, 10, 15, 20, 30},
	}
}

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// DefaultEasiness is the easiness factor of a word never reviewed
const DefaultEasiness = 2.5

// NewProgress returns the initial progress of a word, due immediately
func NewProgress(userID string, wordID int64, now time.Time) *models.ReviewProgress {
	return &models.ReviewProgress{
		UserID:         userID,
		WordID:         wordID,
		EasinessFactor: DefaultEasiness,
		Interval:       1,
		LastQuality:    int(QualityCorrectDifficult),
		NextReviewDate: now,
	}
}

// Process applies a review of the given quality at now
func (sm *SM2) Process(progress *models.ReviewProgress, quality QualityResponse, now time.Time) {
	if quality < QualityBlackout {
		quality = QualityBlackout
	}
	if quality > QualityPerfect {
		quality = QualityPerfect
	}
	if progress.EasinessFactor == 0 {
		progress.EasinessFactor = DefaultEasiness
	}

	interval, ef, reps := sm.ComputeNextInterval(int(quality), progress.Repetitions, progress.EasinessFactor, progress.Interval)
	progress.Interval = interval
	progress.EasinessFactor = ef
	progress.Repetitions = reps
	progress.LastQuality = int(quality)
	progress.LastReviewDate = now

	if int(quality) >= sm.PassThreshold {
		progress.ConsecutiveRight++
	} else {
		progress.ConsecutiveRight = 0
	}
	progress.NextReviewDate = now.AddDate(0, 0, progress.Interval)
}

// ComputeNextInterval returns the next interval in days, the new easiness
// factor and the new repetition count
func (sm *SM2) ComputeNextInterval(quality, repetitions int, currentEF float64, currentInterval int) (int, float64, int) {
	newEF := currentEF + (0.1 - float64(5-quality)*(0.08+float64(5-quality)*0.02))
	if newEF < 1.3 {
		newEF = 1.3
	}

	if quality < sm.PassThreshold {
		// Relearn from tomorrow
		return 1, newEF, 0
	}

	newRepetitions := repetitions + 1
	var newInterval int
	if newRepetitions < len(sm.InitialIntervals) {
		newInterval = sm.InitialIntervals[newRepetitions]
	} else {
		newInterval = int(float64(currentInterval) * newEF)
	}
	if newInterval > sm.MaxInterval {
		newInterval = sm.MaxInterval
	}
	if newInterval < 1 {
		newInterval = 1
	}
	return newInterval, newEF, newRepetitions
}

// SelectDue returns up to limit progress records due at now. Never-reviewed
// words come first, then harder words (lower easiness), then the most overdue.
func (sm *SM2) SelectDue(progress []models.ReviewProgress, now time.Time, limit int) []models.ReviewProgress {
	var due []models.ReviewProgress
	for _, p := range progress {
		if !p.NextReviewDate.After(now) {
			due = append(due, p)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if (a.Repetitions == 0) != (b.Repetitions == 0) {
			return a.Repetitions == 0
		}
		if a.EasinessFactor != b.EasinessFactor {
			return a.EasinessFactor < b.EasinessFactor
		}
		return a.NextReviewDate.Before(b.NextReviewDate)
	})

	if limit > 0 && len(due) > limit {
		return due[:limit]
	}
	return due
}

// IsWordMastered reports whether a word has been reviewed at least 5 times,
// last recalled with quality 4 or 5 and is on an interval of 30+ days
func (sm *SM2) IsWordMastered(progress *models.ReviewProgress) bool {
	return progress.Repetitions >= 5 &&
		progress.LastQuality >= int(QualityCorrectHesitation) &&
		progress.Interval >= 30
}

// Mastery grades progress from 0 (new or forgotten) to 5 (mastered)
func (sm *SM2) Mastery(progress *models.ReviewProgress) int {
	if sm.IsWordMastered(progress) {
		return 5
	}
	return min(progress.ConsecutiveRight, 4)
}

// CalculateQuality maps an answer accuracy in [0,1] to a response quality
func (sm *SM2) CalculateQuality(accuracy float64) QualityResponse {
	if accuracy <= 0 {
		return QualityBlackout
	}
	q := int(accuracy * 5)
	if q > 5 {
		q = 5
	}
	return QualityResponse(q)
}
