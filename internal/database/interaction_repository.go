package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/lingofeed/pkg/models"
)

// InteractionRepository handles database operations for interaction records
type InteractionRepository struct {
	db *sqlx.DB
}

// NewInteractionRepository creates a new repository instance
func NewInteractionRepository(db *sqlx.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

type interactionRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Type        string    `db:"type"`
	ContentID   string    `db:"content_id"`
	ContentType string    `db:"content_type"`
	Level       string    `db:"level"`
	Topics      string    `db:"topics"`
	Payload     *string   `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}

// AppendInteraction inserts an interaction, assigning an id if it has none
func (r *InteractionRepository) AppendInteraction(ctx context.Context, in *models.Interaction) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	topics, err := json.Marshal(in.Topics)
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}
	if in.Topics == nil {
		topics = []byte("[]")
	}
	var payload *string
	if in.Payload != nil {
		raw, err := models.MarshalPayload(in.Payload)
		if err != nil {
			return err
		}
		s := string(raw)
		payload = &s
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO interactions (id, user_id, type, content_id, content_type, level, topics, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		in.ID, in.UserID, string(in.Type), in.ContentID, string(in.ContentType), string(in.Level),
		string(topics), payload, in.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// QueryInteractions returns the user's interactions at or after since,
// oldest first, optionally filtered by type
func (r *InteractionRepository) QueryInteractions(ctx context.Context, userID string, since time.Time, types ...models.InteractionType) ([]models.Interaction, error) {
	query := `
		SELECT id, user_id, type, content_id, content_type, level, topics, payload, created_at
		FROM interactions
		WHERE user_id = ? AND created_at >= ?`
	args := []any{userID, since.UTC()}
	if len(types) > 0 {
		query += ` AND type IN (?)`
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		args = append(args, names)
	}
	query += ` ORDER BY created_at ASC`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build interaction query: %w", err)
	}

	var rows []interactionRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}

	out := make([]models.Interaction, 0, len(rows))
	for _, row := range rows {
		in, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func (row interactionRow) toModel() (models.Interaction, error) {
	in := models.Interaction{
		ID:          row.ID,
		UserID:      row.UserID,
		Type:        models.InteractionType(row.Type),
		ContentID:   row.ContentID,
		ContentType: models.ContentType(row.ContentType),
		Level:       models.Level(row.Level),
		Timestamp:   row.CreatedAt,
	}
	if row.Topics != "" && row.Topics != "[]" {
		if err := json.Unmarshal([]byte(row.Topics), &in.Topics); err != nil {
			return in, fmt.Errorf("failed to parse topics of interaction %s: %w", row.ID, err)
		}
	}
	if row.Payload != nil {
		p, err := models.UnmarshalPayload([]byte(*row.Payload))
		if err != nil {
			return in, fmt.Errorf("failed to parse payload of interaction %s: %w", row.ID, err)
		}
		in.Payload = p
	}
	return in, nil
}

// DeleteInteractionsBefore removes interactions older than cutoff and
// returns how many were removed
func (r *InteractionRepository) DeleteInteractionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM interactions WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old interactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted interactions: %w", err)
	}
	return n, nil
}

// CountByType returns the user's interaction counts per type
func (r *InteractionRepository) CountByType(ctx context.Context, userID string) (map[models.InteractionType]int, error) {
	var rows []struct {
		Type  string `db:"type"`
		Count int    `db:"n"`
	}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT type, COUNT(*) AS n FROM interactions WHERE user_id = ? GROUP BY type`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count interactions: %w", err)
	}
	out := make(map[models.InteractionType]int, len(rows))
	for _, row := range rows {
		out[models.InteractionType(row.Type)] = row.Count
	}
	return out, nil
}
