package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"fedlearn/internal/ratelimit/metrics"
	"fedlearn/internal/ratelimit/models"
	"fedlearn/internal/ratelimit/store/bucket"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
	"fedlearn/pkg/platform/circuit"
	"fedlearn/pkg/requestcontext"
)

// BucketStore records requests in a sliding window per key.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}

// Service checks per-user budgets. When the primary store keeps failing the
// breaker opens and checks run against an in-memory fallback until the
// primary recovers.
type Service struct {
	buckets  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFallback replaces the in-memory store used while the breaker is open.
func WithFallback(store BucketStore) Option {
	return func(s *Service) {
		s.fallback = store
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

func New(buckets BucketStore, limits map[models.EndpointClass]models.Limit, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}
	for class, limit := range limits {
		if !class.IsValid() || limit.Requests <= 0 || limit.Window <= 0 {
			return nil, errors.New("invalid rate limit for class " + string(class))
		}
	}

	svc := &Service{
		buckets:  buckets,
		fallback: bucket.NewInMemoryBucketStore(),
		breaker:  circuit.New("ratelimit", circuit.WithSuccessThreshold(3)),
		limits:   limits,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckUser records one request for the user in the class budget. The second
// return value is true when the answer came from the fallback store.
func (s *Service) CheckUser(ctx context.Context, userID id.UserID, class models.EndpointClass) (*models.RateLimitResult, bool, error) {
	if userID <= 0 {
		return nil, false, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	limit, ok := s.limits[class]
	if !ok {
		// Unconfigured classes are denied rather than left unlimited.
		s.logger.ErrorContext(ctx, "rate limit config missing",
			"endpoint_class", class,
			"user_id", int64(userID),
		)
		return &models.RateLimitResult{
			Allowed:    false,
			ResetAt:    requestcontext.Now(ctx).Add(time.Minute),
			RetryAfter: 60,
		}, false, nil
	}

	key := models.UserKey(class, userID)
	degraded := false
	var result *models.RateLimitResult
	var err error
	if !s.breaker.IsOpen() {
		result, err = s.buckets.Allow(ctx, key, limit.Requests, limit.Window)
		if err == nil {
			if _, change := s.breaker.RecordSuccess(); change.Closed {
				s.logger.InfoContext(ctx, "rate limit store recovered")
				s.metrics.SetFallbackActive(false)
			}
		} else {
			s.metrics.IncrementStoreErrors()
			s.logger.WarnContext(ctx, "rate limit store error", "error", err)
			if _, change := s.breaker.RecordFailure(); change.Opened {
				s.logger.ErrorContext(ctx, "rate limit store unavailable, using in-memory fallback")
				s.metrics.SetFallbackActive(true)
			}
		}
	}
	if result == nil {
		degraded = true
		result, err = s.fallback.Allow(ctx, key, limit.Requests, limit.Window)
		if err != nil {
			return nil, true, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
		}
		s.tryPrimary(ctx, key, limit)
	}

	if !result.Allowed {
		result.RetryAfter = retryAfter(requestcontext.Now(ctx), result.ResetAt)
		s.metrics.IncrementRejected(string(class))
		s.logger.InfoContext(ctx, "user rate limit exceeded",
			"endpoint_class", class,
			"user_id", int64(userID),
			"limit", result.Limit,
		)
	}
	return result, degraded, nil
}

// tryPrimary lets an open breaker observe primary recovery. The trial result
// is not used for the decision.
func (s *Service) tryPrimary(ctx context.Context, key string, limit models.Limit) {
	if !s.breaker.IsOpen() {
		return
	}
	if _, err := s.buckets.Allow(ctx, key, limit.Requests, limit.Window); err != nil {
		s.breaker.RecordFailure()
		return
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "rate limit store recovered")
		s.metrics.SetFallbackActive(false)
	}
}

// ResetUser clears a user's budget for a class in both stores.
func (s *Service) ResetUser(ctx context.Context, userID id.UserID, class models.EndpointClass) error {
	key := models.UserKey(class, userID)
	if err := s.fallback.Reset(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate limit")
	}
	if err := s.buckets.Reset(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate limit")
	}
	return nil
}

func retryAfter(now, resetAt time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
