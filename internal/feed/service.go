// Package feed assembles personalized feeds: it fetches candidates from the
// content sources, scores them with bandit-learned weights, paces and
// diversifies the ranking, splices in due review cards and records the
// feedback that trains the weights.
package feed

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/example/lingofeed/internal/apperr"
	"github.com/example/lingofeed/internal/bandit"
	"github.com/example/lingofeed/internal/learning"
	"github.com/example/lingofeed/internal/metrics"
	"github.com/example/lingofeed/internal/ranking"
	"github.com/example/lingofeed/internal/scoring"
	"github.com/example/lingofeed/internal/signals"
	"github.com/example/lingofeed/internal/srs"
	"github.com/example/lingofeed/pkg/models"
)

// UserStore loads and stores learner profiles
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.UserProfile, error)
	UpsertUser(ctx context.Context, p *models.UserProfile) error
}

// Deps are the collaborators of a Service. Tracker and Injector are optional.
type Deps struct {
	Content  ContentSource
	Users    UserStore
	Graph    *learning.Graph
	Bandit   *bandit.Optimizer
	Scorer   *scoring.Scorer
	Injector *srs.Injector
	Tracker  *signals.Tracker
}

// Service generates feeds and records feedback
type Service struct {
	deps    Deps
	sources map[models.ContentType]*ResilientSource
	config  Config
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a Service with one resilient source per content type
func NewService(deps Deps, cfg Config, logger zerolog.Logger) *Service {
	def := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = def.CandidateMultiplier
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = def.SourceTimeout
	}
	if cfg.MaxConsecutive <= 0 {
		cfg.MaxConsecutive = def.MaxConsecutive
	}

	sources := make(map[models.ContentType]*ResilientSource, len(models.FeedContentTypes))
	for _, t := range models.FeedContentTypes {
		sources[t] = NewResilientSource(t, deps.Content, cfg.Breaker, logger)
	}
	return &Service{deps: deps, sources: sources, config: cfg, logger: logger, now: time.Now}
}

// WithClock replaces the service clock
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GenerateFeed builds a ranked feed for the request. Content source failures
// and review store failures degrade the feed and are reported as warnings;
// only an invalid request is an error.
func (s *Service) GenerateFeed(ctx context.Context, req models.FeedRequest) (*models.FeedResponse, error) {
	start := s.now()
	if req.SortMode == "" {
		req.SortMode = models.SortRecommended
	}
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.config.DefaultLimit
	}
	logger := s.logger.With().Str("user_id", req.UserID).Logger()

	resp := &models.FeedResponse{UserID: req.UserID, GeneratedAt: start}

	profile := s.loadProfile(ctx, req.UserID, resp)
	if len(profile.RecentHistory) == 0 {
		profile.RecentHistory = s.deps.Graph.RecentHistory(ctx, req.UserID)
	}

	candidates := s.fetchCandidates(ctx, req.ContentTypes, limit*s.config.CandidateMultiplier, resp)
	candidates = filterCandidates(candidates, &req)

	patterns := s.deps.Graph.GetInteractionPatterns(ctx, req.UserID)
	weights := s.deps.Bandit.GetContextualWeights(ctx, req.UserID, bandit.Context{
		Hour:          start.Hour(),
		SessionLength: req.SessionPosition,
		RecentSkips:   s.recentSkips(req.UserID),
	})
	resp.Weights = weights.ToMap()

	scorePatterns := scoring.Patterns{ByContentType: patterns.ByContentType, Total: patterns.Total}
	items := make([]models.FeedItem, 0, len(candidates))
	for i := range candidates {
		score, breakdown := s.deps.Scorer.Score(&candidates[i], profile, scorePatterns, scoring.Weights(weights))
		b := breakdown
		items = append(items, models.FeedItem{ContentItem: candidates[i], Score: score, Breakdown: &b})
	}

	sortItems(items, req.SortMode)
	if req.SortMode == models.SortRecommended {
		items = ranking.Pace(items, req.SessionPosition, s.config.Pacing)
	}
	items = ranking.EnforceDiversity(items, s.config.MaxConsecutive, limit)

	if req.IncludeSRS && s.deps.Injector != nil {
		injected, err := s.deps.Injector.Inject(ctx, req.UserID, items)
		if err != nil {
			resp.Warnings = append(resp.Warnings, "review cards unavailable")
		}
		items = injected
	}

	for i := range items {
		if i < s.config.HighPriorityCount {
			items[i].Priority = models.PriorityHigh
		} else {
			items[i].Priority = models.PriorityNormal
		}
	}
	resp.Items = items

	metrics.FeedsGenerated.WithLabelValues(string(req.SortMode), strconv.FormatBool(resp.Partial)).Inc()
	metrics.FeedDuration.Observe(s.now().Sub(start).Seconds())
	logger.Debug().
		Int("items", len(items)).
		Int("candidates", len(candidates)).
		Bool("partial", resp.Partial).
		Msg("feed generated")

	return resp, nil
}

// loadProfile returns the stored profile, bootstrapping a default profile
// for unknown users. Store failures fall back to the in-memory default.
func (s *Service) loadProfile(ctx context.Context, userID string, resp *models.FeedResponse) *models.UserProfile {
	profile, err := s.deps.Users.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(apperr.NewPersistence("get_user", err)).Str("user_id", userID).Msg("using default profile")
		resp.Warnings = append(resp.Warnings, "profile unavailable, using defaults")
		return models.NewBootstrapProfile(userID, s.now())
	}
	if profile != nil {
		return profile
	}

	profile = models.NewBootstrapProfile(userID, s.now())
	if err := s.deps.Users.UpsertUser(ctx, profile); err != nil {
		berr := &apperr.BootstrapError{UserID: userID, Err: err}
		s.logger.Warn().Err(berr).Msg("continuing with unsaved default profile")
		resp.Warnings = append(resp.Warnings, "profile could not be saved")
	} else {
		s.logger.Info().Str("user_id", userID).Str("level", string(profile.Level)).Msg("bootstrapped new user profile")
	}
	return profile
}

// fetchCandidates queries the sources concurrently. A failing source is
// left out and reported on resp.
func (s *Service) fetchCandidates(ctx context.Context, types []models.ContentType, perSource int, resp *models.FeedResponse) []models.ContentItem {
	if len(types) == 0 {
		types = models.FeedContentTypes
	}

	var (
		mu      sync.Mutex
		results = make(map[models.ContentType][]models.ContentItem, len(types))
		failed  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range types {
		src, ok := s.sources[t]
		if !ok {
			continue
		}
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, s.config.SourceTimeout)
			defer cancel()

			items, err := src.Fetch(fetchCtx, perSource)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.SourceFetchFailures.WithLabelValues(string(t)).Inc()
				failed = append(failed, &apperr.PartialContentFetchError{Source: string(t), Err: err})
				return nil
			}
			results[t] = items
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range failed {
		s.logger.Warn().Err(err).Msg("content source omitted")
		resp.Warnings = append(resp.Warnings, err.Error())
	}
	resp.Partial = len(failed) > 0

	// Merge in a fixed type order so ties rank deterministically
	seen := make(map[string]struct{})
	var out []models.ContentItem
	for _, t := range types {
		for _, it := range results[t] {
			if _, dup := seen[it.ID]; dup {
				continue
			}
			seen[it.ID] = struct{}{}
			out = append(out, it)
		}
	}
	return out
}

func (s *Service) recentSkips(userID string) int {
	if s.deps.Tracker == nil {
		return 0
	}
	return s.deps.Tracker.RecentSkipCount(userID)
}

// filterCandidates applies the request's level, topic and search filters
func filterCandidates(items []models.ContentItem, req *models.FeedRequest) []models.ContentItem {
	levels := make(map[models.Level]struct{}, len(req.Levels))
	for _, l := range req.Levels {
		levels[l] = struct{}{}
	}
	topics := make(map[string]struct{}, len(req.Topics))
	for _, t := range req.Topics {
		topics[strings.ToLower(t)] = struct{}{}
	}
	query := strings.ToLower(strings.TrimSpace(req.SearchQuery))

	out := items[:0:0]
	for i := range items {
		it := &items[i]
		if len(levels) > 0 {
			if _, ok := levels[it.Level]; !ok {
				continue
			}
		}
		if len(topics) > 0 && !hasTopic(it.Topics, topics) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(it.Title), query) &&
			!strings.Contains(strings.ToLower(it.Text), query) {
			continue
		}
		out = append(out, *it)
	}
	return out
}

func hasTopic(itemTopics []string, wanted map[string]struct{}) bool {
	for _, t := range itemTopics {
		if _, ok := wanted[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

// sortItems orders items for the sort mode; ties keep their input order
func sortItems(items []models.FeedItem, mode models.SortMode) {
	var less func(a, b *models.FeedItem) bool
	switch mode {
	case models.SortRecent:
		less = func(a, b *models.FeedItem) bool { return a.CreatedAt.After(b.CreatedAt) }
	case models.SortPopular:
		less = func(a, b *models.FeedItem) bool { return a.Popularity > b.Popularity }
	default:
		less = func(a, b *models.FeedItem) bool { return a.Score > b.Score }
	}
	sort.SliceStable(items, func(i, j int) bool { return less(&items[i], &items[j]) })
}
