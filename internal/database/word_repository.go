package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lingofeed/pkg/models"
)

// WordRepository handles database operations for vocabulary words
type WordRepository struct {
	db *sqlx.DB
}

// NewWordRepository creates a new repository instance
func NewWordRepository(db *sqlx.DB) *WordRepository {
	return &WordRepository{db: db}
}

// UpsertWord inserts a word or updates the translation of an existing one
// and sets word.ID
func (r *WordRepository) UpsertWord(ctx context.Context, word *models.Word) error {
	word.Word = strings.ToLower(strings.TrimSpace(word.Word))
	if word.Word == "" {
		return errors.New("word is empty")
	}
	if word.CreatedAt.IsZero() {
		word.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`
		INSERT INTO words (word, translation, context, level, topic, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (word) DO UPDATE SET
			translation = CASE WHEN excluded.translation <> '' THEN excluded.translation ELSE words.translation END,
			context = CASE WHEN excluded.context <> '' THEN excluded.context ELSE words.context END
		RETURNING id`),
		word.Word, word.Translation, word.Context, string(word.Level), word.Topic, word.CreatedAt.UTC(),
	).Scan(&word.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert word: %w", err)
	}
	return nil
}

// GetByWord returns a word by its text, or nil, nil if unknown
func (r *WordRepository) GetByWord(ctx context.Context, text string) (*models.Word, error) {
	var word models.Word
	err := r.db.GetContext(ctx, &word, r.db.Rebind(`
		SELECT id, word, translation, context, level, topic, created_at FROM words WHERE word = ?`),
		strings.ToLower(strings.TrimSpace(text)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word: %w", err)
	}
	return &word, nil
}

// SearchWords returns up to limit words whose text or translation contains query
func (r *WordRepository) SearchWords(ctx context.Context, query string, limit int) ([]models.Word, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	var words []models.Word
	err := r.db.SelectContext(ctx, &words, r.db.Rebind(`
		SELECT id, word, translation, context, level, topic, created_at FROM words
		WHERE word LIKE ? OR LOWER(translation) LIKE ?
		ORDER BY word LIMIT ?`),
		pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search words: %w", err)
	}
	return words, nil
}
