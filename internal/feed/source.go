package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/example/lingofeed/internal/metrics"
	"github.com/example/lingofeed/pkg/models"
)

// ContentSource returns candidate content of one type
type ContentSource interface {
	FetchContent(ctx context.Context, t models.ContentType, limit int) ([]models.ContentItem, error)
}

// ResilientSource guards a ContentSource with a circuit breaker so a failing
// source is skipped quickly instead of delaying every feed
type ResilientSource struct {
	source      ContentSource
	contentType models.ContentType
	cb          *gobreaker.CircuitBreaker[[]models.ContentItem]
}

// NewResilientSource wraps source for one content type
func NewResilientSource(t models.ContentType, source ContentSource, cfg BreakerConfig, logger zerolog.Logger) *ResilientSource {
	name := string(t)
	metrics.SourceBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]models.ContentItem](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).Msg("content source breaker state changed")
			metrics.SourceBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return &ResilientSource{source: source, contentType: t, cb: cb}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// Fetch returns up to limit items through the breaker
func (r *ResilientSource) Fetch(ctx context.Context, limit int) ([]models.ContentItem, error) {
	items, err := r.cb.Execute(func() ([]models.ContentItem, error) {
		return r.source.FetchContent(ctx, r.contentType, limit)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("source %s rejected by circuit breaker: %w", r.contentType, err)
		}
		return nil, err
	}
	return items, nil
}

// State returns the breaker state
func (r *ResilientSource) State() gobreaker.State {
	return r.cb.State()
}
