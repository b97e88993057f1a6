package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orneryd/feedgraph/pkg/profile"
	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// CandidateFactor is how many candidates are generated per item served.
const CandidateFactor = 10

// Service runs recommendation passes for users and keeps the most recent
// recommendations of each user, newest first.
//
// Thread Safety:
//
//	The recommendation cache is guarded by a mutex. Generation reads the
//	graph and draws from the random source, so it follows the single-writer
//	model of the graph: do not generate while the graph is being mutated or
//	from several goroutines sharing one unsynchronised Rand.
type Service struct {
	graph    *storage.MemoryEngine
	content  ContentProvider
	profiles ProfileSource
	similar  SimilarUserProvider
	rng      sampling.Rand
	logger   *zap.Logger
	metrics  *Metrics

	mu    sync.Mutex
	cache map[storage.NodeID][]ScoredRecommendation
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records service activity on m.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithRand sets the random source. Tests pass a seeded sampling.NewRand.
func WithRand(r sampling.Rand) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.rng = r
		}
	}
}

// NewService creates a recommender over a graph and its collaborators.
// similar may be nil to disable the similar-user strategy.
//
// Example:
//
//	index := profile.NewIndex()
//	svc := recommend.NewService(graph, store, index, index,
//		recommend.WithLogger(logger),
//		recommend.WithMetrics(recommend.NewMetrics("feedgraph", prometheus.NewRegistry())),
//	)
//	recs, err := svc.GetRecommendations(ctx, "user:alice", 10, opts)
func NewService(graph *storage.MemoryEngine, content ContentProvider, profiles ProfileSource, similar SimilarUserProvider, opts ...ServiceOption) *Service {
	s := &Service{
		graph:    graph,
		content:  content,
		profiles: profiles,
		similar:  similar,
		rng:      sampling.NewTimeSeededRand(),
		logger:   zap.NewNop(),
		cache:    make(map[storage.NodeID][]ScoredRecommendation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateNewRecommendations runs a full pass for a user: count times
// CandidateFactor candidates are generated and scored, count of them are
// selected per opts.Selection and prepended to the user's cache.
//
// Returns the served items, ErrMissingProfile if the user has no profile,
// or ErrInvalidOptions.
func (s *Service) GenerateNewRecommendations(ctx context.Context, userID storage.NodeID, count int, opts RecommendationOptions) ([]ScoredRecommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidOptions, count)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p, ok := s.profiles.UserProfile(userID)
	if !ok || p == nil {
		return nil, fmt.Errorf("recommend for %s: %w", userID, ErrMissingProfile)
	}

	start := time.Now()
	candidates := GenerateCandidates(s.graph, s.content, s.similar, p, count*CandidateFactor, opts.CandidateOptions, s.rng)
	if s.metrics != nil {
		s.metrics.ObserveGeneration(start)
		s.metrics.RecordCandidates(candidates)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	scored, err := ScoreCandidates(s.graph, s.content, userID, candidates, p, opts.ScoringOptions, s.rng)
	if err != nil {
		return nil, fmt.Errorf("score candidates for %s: %w", userID, err)
	}
	if s.metrics != nil {
		s.metrics.ObserveScoring(start)
	}

	policy := opts.Selection
	if policy == "" {
		policy = SelectionDistribution
	}
	subset := Select(scored, count, policy, s.rng)
	if s.metrics != nil {
		s.metrics.RecordServed(policy, len(subset))
	}

	s.prepend(userID, subset)

	s.logger.Debug("generated recommendations",
		zap.String("user", string(userID)),
		zap.Int("candidates", len(candidates)),
		zap.Int("served", len(subset)),
		zap.String("selection", string(policy)),
		zap.Duration("elapsed", time.Since(start)))

	out := make([]ScoredRecommendation, len(subset))
	copy(out, subset)
	return out, nil
}

// GetRecommendations returns the user's count most recent recommendations,
// generating new ones first when the cache holds fewer than count.
func (s *Service) GetRecommendations(ctx context.Context, userID storage.NodeID, count int, opts RecommendationOptions) ([]ScoredRecommendation, error) {
	if cached, ok := s.cached(userID, count); ok {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return cached, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	if _, err := s.GenerateNewRecommendations(ctx, userID, count, opts); err != nil {
		return nil, err
	}
	cached, _ := s.cached(userID, count)
	return cached, nil
}

// cached returns a copy of up to count cached items and whether the cache
// held at least count.
func (s *Service) cached(userID storage.NodeID, count int) ([]ScoredRecommendation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.cache[userID]
	n := min(count, len(recs))
	out := make([]ScoredRecommendation, n)
	copy(out, recs[:n])
	return out, len(recs) >= count
}

func (s *Service) prepend(userID storage.NodeID, recs []ScoredRecommendation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cache[userID]
	merged := make([]ScoredRecommendation, 0, len(recs)+len(old))
	merged = append(merged, recs...)
	merged = append(merged, old...)
	s.cache[userID] = merged
}

// AppendRecommendations puts externally produced recommendations in front
// of the user's cache.
func (s *Service) AppendRecommendations(userID storage.NodeID, recs []ScoredRecommendation) {
	s.prepend(userID, recs)
}

// RemoveRecommendations clears the user's cache.
func (s *Service) RemoveRecommendations(userID storage.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, userID)
}

// TrimRecommendations keeps at most limit recent recommendations per user.
func (s *Service) TrimRecommendations(limit int) {
	limit = max(limit, 0)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, recs := range s.cache {
		if len(recs) > limit {
			s.cache[id] = recs[:limit:limit]
		}
	}
}

// CandidateProbability estimates the probability that a content item is
// generated as a candidate for p. See CandidateProbability.
func (s *Service) CandidateProbability(p *profile.UserProfile, count int, opts CandidateOptions, id storage.NodeID) float64 {
	return CandidateProbability(s.graph, s.content, s.similar, p, count, opts, id)
}

// ScoringProbabilities estimates the probability that each candidate is
// served. See ScoringProbability.
func (s *Service) ScoringProbabilities(userID storage.NodeID, candidates []Recommendation, p *profile.UserProfile, count int, opts ScoringOptions) ([]ScoredRecommendation, error) {
	return ScoringProbability(s.graph, s.content, userID, candidates, p, count, opts)
}
