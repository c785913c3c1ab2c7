package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// InteractionType is the kind of a recorded user interaction
type InteractionType string

const (
	InteractionViewed    InteractionType = "content_viewed"
	InteractionSkipped   InteractionType = "content_skipped"
	InteractionLiked     InteractionType = "content_liked"
	InteractionSaved     InteractionType = "content_saved"
	InteractionShared    InteractionType = "content_shared"
	InteractionReplayed  InteractionType = "content_replayed"
	InteractionLookup    InteractionType = "word_lookup"
	InteractionExercise  InteractionType = "exercise_completed"
	InteractionRated     InteractionType = "content_rated"
	InteractionLevelMove InteractionType = "level_changed"
)

// Interaction is a durable record of a user action
type Interaction struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	Type        InteractionType    `json:"type"`
	ContentID   string             `json:"content_id,omitempty"`
	ContentType ContentType        `json:"content_type,omitempty"`
	Level       Level              `json:"level,omitempty"` // Difficulty of the content
	Topics      []string           `json:"topics,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	Payload     InteractionPayload `json:"-"`
}

// InteractionPayload is the type-specific part of an interaction
type InteractionPayload interface {
	Kind() string
	Validate() error
}

// ViewPayload describes time spent on a content item
type ViewPayload struct {
	TimeSpent      float64 `json:"time_spent"` // Seconds
	Duration       float64 `json:"duration"`   // Seconds
	CompletionRate float64 `json:"completion_rate"`
	Completed      bool    `json:"completed"`
}

func (ViewPayload) Kind() string { return "view" }

func (p ViewPayload) Validate() error {
	if p.TimeSpent < 0 || p.Duration < 0 {
		return errors.New("time spent and duration must not be negative")
	}
	return nil
}

// SkipPayload describes where a user skipped a content item
type SkipPayload struct {
	SkipPosition   float64 `json:"skip_position"`
	TotalDuration  float64 `json:"total_duration"`
	SkipPercentage float64 `json:"skip_percentage"`
}

func (SkipPayload) Kind() string { return "skip" }

func (p SkipPayload) Validate() error {
	if p.SkipPosition < 0 || p.TotalDuration < 0 {
		return errors.New("skip position and duration must not be negative")
	}
	return nil
}

// EngagementPayload records a like, save or share
type EngagementPayload struct {
	Action string `json:"action"`
}

func (EngagementPayload) Kind() string { return "engagement" }

func (p EngagementPayload) Validate() error {
	switch p.Action {
	case "like", "save", "share":
		return nil
	}
	return fmt.Errorf("unknown engagement action %q", p.Action)
}

// ReplayPayload records a replay of part of a content item
type ReplayPayload struct {
	Position float64 `json:"position"`
}

func (ReplayPayload) Kind() string { return "replay" }

func (p ReplayPayload) Validate() error {
	if p.Position < 0 {
		return errors.New("replay position must not be negative")
	}
	return nil
}

// WordLookupPayload records a dictionary lookup during consumption
type WordLookupPayload struct {
	Word    string `json:"word"`
	Context string `json:"context,omitempty"`
}

func (WordLookupPayload) Kind() string { return "word_lookup" }

func (p WordLookupPayload) Validate() error {
	if p.Word == "" {
		return errors.New("word is required")
	}
	return nil
}

// PerformancePayload records the result of an exercise
type PerformancePayload struct {
	ExerciseType string  `json:"exercise_type"`
	Correct      int     `json:"correct"`
	Total        int     `json:"total"`
	Accuracy     float64 `json:"accuracy"` // 0-100
}

func (PerformancePayload) Kind() string { return "performance" }

func (p PerformancePayload) Validate() error {
	if p.Total <= 0 || p.Correct < 0 || p.Correct > p.Total {
		return fmt.Errorf("invalid exercise result %d/%d", p.Correct, p.Total)
	}
	return nil
}

// Difficulty feedback values for RatingPayload
const (
	DifficultyTooEasy   = "too_easy"
	DifficultyJustRight = "just_right"
	DifficultyTooHard   = "too_hard"
)

// RatingPayload records an explicit content rating
type RatingPayload struct {
	Rating     int    `json:"rating"` // 1-5
	Difficulty string `json:"difficulty,omitempty"`
}

func (RatingPayload) Kind() string { return "rating" }

func (p RatingPayload) Validate() error {
	if p.Rating < 1 || p.Rating > 5 {
		return fmt.Errorf("rating %d out of range 1-5", p.Rating)
	}
	switch p.Difficulty {
	case "", DifficultyTooEasy, DifficultyJustRight, DifficultyTooHard:
		return nil
	}
	return fmt.Errorf("unknown difficulty feedback %q", p.Difficulty)
}

// LevelChangePayload documents a level adaptation
type LevelChangePayload struct {
	From          Level   `json:"from"`
	To            Level   `json:"to"`
	Reason        string  `json:"reason"`
	SuccessRate   float64 `json:"success_rate"`
	Comprehension float64 `json:"comprehension"`
}

func (LevelChangePayload) Kind() string { return "level_change" }

func (p LevelChangePayload) Validate() error {
	if !p.From.Valid() || !p.To.Valid() {
		return fmt.Errorf("invalid level change %s -> %s", p.From, p.To)
	}
	return nil
}

// Validate checks the interaction envelope and its payload
func (i *Interaction) Validate() error {
	if i.UserID == "" {
		return errors.New("user id is required")
	}
	if i.Type == "" {
		return errors.New("interaction type is required")
	}
	if i.Payload == nil {
		return nil
	}
	return i.Payload.Validate()
}

// Completed reports whether the interaction is a completed view
func (i *Interaction) Completed() bool {
	p, ok := i.Payload.(ViewPayload)
	return ok && p.Completed
}

// View returns the view payload if the interaction carries one
func (i *Interaction) View() (ViewPayload, bool) {
	p, ok := i.Payload.(ViewPayload)
	return p, ok
}

type payloadEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalPayload encodes a payload with its kind discriminator
func MarshalPayload(p InteractionPayload) ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", p.Kind(), err)
	}
	return json.Marshal(payloadEnvelope{Kind: p.Kind(), Data: data})
}

// UnmarshalPayload decodes a payload produced by MarshalPayload
func UnmarshalPayload(raw []byte) (InteractionPayload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode payload envelope: %w", err)
	}

	var (
		p   InteractionPayload
		err error
	)
	switch env.Kind {
	case "view":
		var v ViewPayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	case "skip":
		var v SkipPayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	case "engagement":
		var v EngagementPayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	case "replay":
		var v ReplayPayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	case "word_lookup":
		var v WordLookupPayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	case "performance":
		var v PerformancePayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	case "rating":
		var v RatingPayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	case "level_change":
		var v LevelChangePayload
		err = json.Unmarshal(env.Data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown payload kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
	}
	return p, nil
}
