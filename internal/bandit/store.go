package bandit

import (
	"context"
	"sync"
	"time"
)

// ArmState holds the statistics of one arm for one user
type ArmState struct {
	Pulls            int     `json:"pulls"`
	CumulativeReward float64 `json:"cumulative_reward"`
	AverageReward    float64 `json:"average_reward"`
	Weight           float64 `json:"weight"`
	Confidence       float64 `json:"confidence"`
}

// UserState is the complete bandit state of one user
type UserState struct {
	Arms map[Dimension]ArmState `json:"arms"`
	// LastWeights are the weights most recently served to the user
	LastWeights *Weights  `json:"last_weights,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TotalPulls sums the pulls of all arms
func (s *UserState) TotalPulls() int {
	total := 0
	for _, a := range s.Arms {
		total += a.Pulls
	}
	return total
}

// Clone returns a deep copy of the state
func (s *UserState) Clone() *UserState {
	if s == nil {
		return nil
	}
	c := &UserState{
		Arms:      make(map[Dimension]ArmState, len(s.Arms)),
		UpdatedAt: s.UpdatedAt,
	}
	for d, a := range s.Arms {
		c.Arms[d] = a
	}
	if s.LastWeights != nil {
		w := *s.LastWeights
		c.LastWeights = &w
	}
	return c
}

// ArmStore persists per-user bandit state
type ArmStore interface {
	// Get returns nil, nil when the user has no state
	Get(ctx context.Context, userID string) (*UserState, error)
	Put(ctx context.Context, userID string, state *UserState) error
	Delete(ctx context.Context, userID string) error
}

// MemoryArmStore keeps bandit state for the life of the process
type MemoryArmStore struct {
	mu    sync.RWMutex
	users map[string]*UserState
}

// NewMemoryArmStore creates an empty in-memory store
func NewMemoryArmStore() *MemoryArmStore {
	return &MemoryArmStore{users: make(map[string]*UserState)}
}

func (m *MemoryArmStore) Get(_ context.Context, userID string) (*UserState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[userID].Clone(), nil
}

func (m *MemoryArmStore) Put(_ context.Context, userID string, state *UserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = state.Clone()
	return nil
}

func (m *MemoryArmStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

// Len returns the number of users with state
func (m *MemoryArmStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
