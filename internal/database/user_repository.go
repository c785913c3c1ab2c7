package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/example/lingofeed/internal/spaced_repetition"
	"github.com/example/lingofeed/pkg/models"
)

// UserRepository handles database operations for learner profiles
type UserRepository struct {
	db  *sqlx.DB
	sm2 *spaced_repetition.SM2
	now func() time.Time
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db, sm2: spaced_repetition.NewSM2(), now: time.Now}
}

type userRow struct {
	ID                  string     `db:"id"`
	Level               string     `db:"level"`
	KnownWordCount      int        `db:"known_word_count"`
	ComprehensionScore  float64    `db:"comprehension_score"`
	SuccessByDifficulty string     `db:"success_by_difficulty"`
	Streak              int        `db:"streak"`
	XP                  int        `db:"xp"`
	LastActiveAt        *time.Time `db:"last_active_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// GetUser returns the profile with its interests and known words, or nil,
// nil if the user does not exist
func (r *UserRepository) GetUser(ctx context.Context, id string) (*models.UserProfile, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, level, known_word_count, comprehension_score, success_by_difficulty,
		       streak, xp, last_active_at, created_at, updated_at
		FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	level, err := models.ParseLevel(row.Level)
	if err != nil {
		level = models.DefaultLevel
	}
	p := &models.UserProfile{
		ID:                  row.ID,
		Level:               level,
		KnownWordCount:      row.KnownWordCount,
		ComprehensionScore:  row.ComprehensionScore,
		Streak:              row.Streak,
		XP:                  row.XP,
		LastActiveAt:        row.LastActiveAt,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
		Interests:           make(map[string]float64),
		SuccessByDifficulty: make(map[models.Level]float64),
	}
	if row.SuccessByDifficulty != "" {
		if err := json.Unmarshal([]byte(row.SuccessByDifficulty), &p.SuccessByDifficulty); err != nil {
			return nil, fmt.Errorf("failed to parse success by difficulty: %w", err)
		}
	}

	var interests []struct {
		Topic  string  `db:"topic"`
		Weight float64 `db:"weight"`
	}
	if err := r.db.SelectContext(ctx, &interests,
		r.db.Rebind(`SELECT topic, weight FROM user_interests WHERE user_id = ?`), id); err != nil {
		return nil, fmt.Errorf("failed to get user interests: %w", err)
	}
	for _, in := range interests {
		p.Interests[in.Topic] = in.Weight
	}

	known, err := r.knownWords(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(known) > 0 {
		p.KnownWords = known
		p.KnownWordCount = max(p.KnownWordCount, len(known))
	}
	return p, nil
}

// knownWords returns the user's words whose review mastery reaches
// models.KnownMastery
func (r *UserRepository) knownWords(ctx context.Context, userID string) (map[string]struct{}, error) {
	var rows []struct {
		Word string `db:"word"`
		models.ReviewProgress
	}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT w.word, rp.id, rp.user_id, rp.word_id, rp.easiness_factor, rp.interval_days,
		       rp.repetitions, rp.last_quality, rp.consecutive_right, rp.last_review_date, rp.next_review_date
		FROM review_progress rp
		JOIN words w ON w.id = rp.word_id
		WHERE rp.user_id = ?`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get known words: %w", err)
	}

	out := make(map[string]struct{})
	for i := range rows {
		if r.sm2.Mastery(&rows[i].ReviewProgress) >= models.KnownMastery {
			out[strings.ToLower(rows[i].Word)] = struct{}{}
		}
	}
	return out, nil
}

// UpsertUser inserts or updates a profile. Interests are replaced when the
// profile carries them.
func (r *UserRepository) UpsertUser(ctx context.Context, p *models.UserProfile) error {
	if p == nil || p.ID == "" {
		return errors.New("profile without id")
	}
	success, err := json.Marshal(p.SuccessByDifficulty)
	if err != nil {
		return fmt.Errorf("failed to marshal success by difficulty: %w", err)
	}
	if p.SuccessByDifficulty == nil {
		success = []byte("{}")
	}

	now := r.now().UTC()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	var lastActive *time.Time
	if p.LastActiveAt != nil {
		t := p.LastActiveAt.UTC()
		lastActive = &t
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO users (
			id, level, known_word_count, comprehension_score, success_by_difficulty,
			streak, xp, last_active_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			level = excluded.level,
			known_word_count = excluded.known_word_count,
			comprehension_score = excluded.comprehension_score,
			success_by_difficulty = excluded.success_by_difficulty,
			streak = excluded.streak,
			xp = excluded.xp,
			last_active_at = excluded.last_active_at,
			updated_at = excluded.updated_at`),
		p.ID, string(p.Level), p.KnownWordCount, p.ComprehensionScore, string(success),
		p.Streak, p.XP, lastActive, created.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	if p.Interests != nil {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM user_interests WHERE user_id = ?`), p.ID); err != nil {
			return fmt.Errorf("failed to clear user interests: %w", err)
		}
		for topic, weight := range p.Interests {
			if err := upsertInterest(ctx, tx, p.ID, topic, weight); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}
	return nil
}

// UpsertInterest sets one interest weight, creating a default user if needed
func (r *UserRepository) UpsertInterest(ctx context.Context, userID, topic string, weight float64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now().UTC()
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO users (id, level, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		userID, string(models.DefaultLevel), now, now)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	if err := upsertInterest(ctx, tx, userID, topic, weight); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit interest: %w", err)
	}
	return nil
}

func upsertInterest(ctx context.Context, tx *sqlx.Tx, userID, topic string, weight float64) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO user_interests (user_id, topic, weight) VALUES (?, ?, ?)
		ON CONFLICT (user_id, topic) DO UPDATE SET weight = excluded.weight`),
		userID, topic, weight)
	if err != nil {
		return fmt.Errorf("failed to upsert interest %q: %w", topic, err)
	}
	return nil
}
