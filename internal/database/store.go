package database

import "github.com/jmoiron/sqlx"

// Store groups the repositories sharing one connection
type Store struct {
	DB           *sqlx.DB
	Users        *UserRepository
	Interactions *InteractionRepository
	Activity     *ActivityRepository
	Content      *ContentRepository
	Words        *WordRepository
	Reviews      *ReviewRepository
}

// NewStore creates the repositories on db
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		DB:           db,
		Users:        NewUserRepository(db),
		Interactions: NewInteractionRepository(db),
		Activity:     NewActivityRepository(db),
		Content:      NewContentRepository(db),
		Words:        NewWordRepository(db),
		Reviews:      NewReviewRepository(db),
	}
}

// Close closes the connection
func (s *Store) Close() error {
	return s.DB.Close()
}
