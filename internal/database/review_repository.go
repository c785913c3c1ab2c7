package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lingofeed/internal/spaced_repetition"
	"github.com/example/lingofeed/pkg/models"
)

// ReviewRepository stores per-user review progress and schedules it with SM-2
type ReviewRepository struct {
	db  *sqlx.DB
	sm2 *spaced_repetition.SM2
	now func() time.Time
}

// NewReviewRepository creates a new repository instance
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db, sm2: spaced_repetition.NewSM2(), now: time.Now}
}

// WithClock sets the clock used for due dates
func (r *ReviewRepository) WithClock(now func() time.Time) *ReviewRepository {
	r.now = now
	return r
}

const progressColumns = `rp.id, rp.user_id, rp.word_id, rp.easiness_factor, rp.interval_days, rp.repetitions,
	rp.last_quality, rp.consecutive_right, rp.last_review_date, rp.next_review_date`

type cardRow struct {
	Word        string `db:"word"`
	Translation string `db:"translation"`
	models.ReviewProgress
}

// GetDueReviewCards returns up to limit cards due now. New words come first,
// then the hardest, then the most overdue.
func (r *ReviewRepository) GetDueReviewCards(ctx context.Context, userID string, limit int) ([]models.ReviewCard, error) {
	now := r.now().UTC()
	var rows []cardRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT w.word, w.translation, `+progressColumns+`
		FROM review_progress rp
		JOIN words w ON w.id = rp.word_id
		WHERE rp.user_id = ? AND rp.next_review_date <= ?
		ORDER BY rp.next_review_date ASC`),
		userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due words: %w", err)
	}

	words := make(map[int64]cardRow, len(rows))
	progress := make([]models.ReviewProgress, len(rows))
	for i, row := range rows {
		words[row.WordID] = row
		progress[i] = row.ReviewProgress
	}

	due := r.sm2.SelectDue(progress, now, limit)
	cards := make([]models.ReviewCard, 0, len(due))
	for i := range due {
		row := words[due[i].WordID]
		cards = append(cards, models.ReviewCard{
			WordID:      due[i].WordID,
			Word:        row.Word,
			Translation: row.Translation,
			Mastery:     r.sm2.Mastery(&due[i]),
			NextDue:     due[i].NextReviewDate,
		})
	}
	return cards, nil
}

// GetProgress returns the user's progress on a word, or nil, nil if the
// word is not in the user's deck
func (r *ReviewRepository) GetProgress(ctx context.Context, userID string, wordID int64) (*models.ReviewProgress, error) {
	var p models.ReviewProgress
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`
		SELECT `+progressColumns+` FROM review_progress rp WHERE rp.user_id = ? AND rp.word_id = ?`),
		userID, wordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user progress: %w", err)
	}
	return &p, nil
}

// AddToDeck puts a word in the user's deck, due immediately. A word already
// in the deck keeps its schedule.
func (r *ReviewRepository) AddToDeck(ctx context.Context, userID string, wordID int64) error {
	p := spaced_repetition.NewProgress(userID, wordID, r.now().UTC())
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO review_progress (
			user_id, word_id, easiness_factor, interval_days, repetitions,
			last_quality, consecutive_right, last_review_date, next_review_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, word_id) DO NOTHING`),
		p.UserID, p.WordID, p.EasinessFactor, p.Interval, p.Repetitions,
		p.LastQuality, p.ConsecutiveRight, p.LastReviewDate, p.NextReviewDate)
	if err != nil {
		return fmt.Errorf("failed to add word to deck: %w", err)
	}
	return nil
}

// RecordReview applies a review answer of the given quality (0-5) and
// returns the rescheduled progress. Words not yet in the deck are added.
func (r *ReviewRepository) RecordReview(ctx context.Context, userID string, wordID int64, quality int) (*models.ReviewProgress, error) {
	if quality < 0 || quality > 5 {
		return nil, fmt.Errorf("review quality %d out of range 0-5", quality)
	}
	now := r.now().UTC()

	p, err := r.GetProgress(ctx, userID, wordID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = spaced_repetition.NewProgress(userID, wordID, now)
	}
	r.sm2.Process(p, spaced_repetition.QualityResponse(quality), now)

	err = r.db.QueryRowxContext(ctx, r.db.Rebind(`
		INSERT INTO review_progress (
			user_id, word_id, easiness_factor, interval_days, repetitions,
			last_quality, consecutive_right, last_review_date, next_review_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, word_id) DO UPDATE SET
			easiness_factor = excluded.easiness_factor,
			interval_days = excluded.interval_days,
			repetitions = excluded.repetitions,
			last_quality = excluded.last_quality,
			consecutive_right = excluded.consecutive_right,
			last_review_date = excluded.last_review_date,
			next_review_date = excluded.next_review_date
		RETURNING id`),
		p.UserID, p.WordID, p.EasinessFactor, p.Interval, p.Repetitions,
		p.LastQuality, p.ConsecutiveRight, p.LastReviewDate.UTC(), p.NextReviewDate.UTC(),
	).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to save user progress: %w", err)
	}
	return p, nil
}
