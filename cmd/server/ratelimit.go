package main

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fedlearn/internal/platform/config"
	rlmetrics "fedlearn/internal/ratelimit/metrics"
	rlmiddleware "fedlearn/internal/ratelimit/middleware"
	"fedlearn/internal/ratelimit/models"
	rlservice "fedlearn/internal/ratelimit/service"
	"fedlearn/internal/ratelimit/store/bucket"
)

func buildRateLimiter(cfg config.Config, infra *infra, log *slog.Logger) (*rlmiddleware.Middleware, error) {
	var buckets rlservice.BucketStore = bucket.NewInMemoryBucketStore()
	if infra.redis != nil {
		buckets = bucket.NewRedisBucketStore(infra.redis.Client)
	}
	limiter, err := rlservice.New(buckets, map[models.EndpointClass]models.Limit{
		models.ClassUpload:   {Requests: cfg.RateLimit.UploadsPerHour, Window: time.Hour},
		models.ClassTraining: {Requests: cfg.RateLimit.TrainingPerHour, Window: time.Hour},
		models.ClassRead:     {Requests: cfg.RateLimit.ReadsPerMinute, Window: time.Minute},
	},
		rlservice.WithLogger(log),
		rlservice.WithMetrics(rlmetrics.New()),
	)
	if err != nil && !cfg.RateLimit.Disabled {
		return nil, err
	}
	return rlmiddleware.New(limiter, log, rlmiddleware.WithDisabled(cfg.RateLimit.Disabled)), nil
}

// classifyRequest maps routes onto budgets: dataset uploads, then every other
// write (pipeline, runs, dispatch), then reads.
func classifyRequest(r *http.Request) models.EndpointClass {
	switch {
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		return models.ClassRead
	case strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/datasets"):
		return models.ClassUpload
	default:
		return models.ClassTraining
	}
}
