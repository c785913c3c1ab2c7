package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lingofeed/pkg/models"
)

// ContentRepository handles database operations for the content catalog
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new repository instance
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// FetchContent returns up to limit items of type t, newest first
func (r *ContentRepository) FetchContent(ctx context.Context, t models.ContentType, limit int) ([]models.ContentItem, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []models.ContentItem
	err := r.db.SelectContext(ctx, &items, r.db.Rebind(`
		SELECT id, type, title, level, text, duration_seconds, has_audio, popularity, created_at
		FROM content WHERE type = ?
		ORDER BY created_at DESC, id
		LIMIT ?`),
		string(t), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s content: %w", t, err)
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	query, args, err := sqlx.In(`SELECT content_id, topic FROM content_topics WHERE content_id IN (?) ORDER BY topic`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build topic query: %w", err)
	}
	var topics []struct {
		ContentID string `db:"content_id"`
		Topic     string `db:"topic"`
	}
	if err := r.db.SelectContext(ctx, &topics, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to fetch content topics: %w", err)
	}

	byID := make(map[string][]string, len(items))
	for _, t := range topics {
		byID[t.ContentID] = append(byID[t.ContentID], t.Topic)
	}
	for i := range items {
		items[i].Topics = byID[items[i].ID]
	}
	return items, nil
}

// UpsertContent inserts or replaces a catalog item and its topics
func (r *ContentRepository) UpsertContent(ctx context.Context, item *models.ContentItem) error {
	if item == nil || item.ID == "" {
		return errors.New("content item without id")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO content (id, type, title, level, text, duration_seconds, has_audio, popularity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			level = excluded.level,
			text = excluded.text,
			duration_seconds = excluded.duration_seconds,
			has_audio = excluded.has_audio,
			popularity = excluded.popularity,
			created_at = excluded.created_at`),
		item.ID, string(item.Type), item.Title, string(item.Level), item.Text,
		item.DurationSeconds, item.HasAudio, item.Popularity, item.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert content: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM content_topics WHERE content_id = ?`), item.ID); err != nil {
		return fmt.Errorf("failed to clear content topics: %w", err)
	}
	for _, topic := range item.Topics {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO content_topics (content_id, topic) VALUES (?, ?)
			ON CONFLICT (content_id, topic) DO NOTHING`), item.ID, topic)
		if err != nil {
			return fmt.Errorf("failed to insert content topic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit content: %w", err)
	}
	return nil
}
