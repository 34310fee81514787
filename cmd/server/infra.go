package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"fedlearn/internal/dataset/blob"
	"fedlearn/internal/platform/config"
	"fedlearn/internal/platform/kafka"
	"fedlearn/internal/platform/postgres"
	"fedlearn/internal/platform/redis"
	"fedlearn/pkg/platform/httputil"
)

// infra holds the optional backends. Nil fields mean the in-memory adapter
// is used instead.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
	blobs *blob.MinIOStore
}

// connect opens every configured backend. Unconfigured ones stay nil.
func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	out := &infra{}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		out.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			out.close(log)
			return nil, err
		}
		log.Info("postgres connected")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		out.close(log)
		return nil, err
	}
	out.redis = rc
	if rc == nil {
		log.Warn("REDIS_URL not set, dispatch guard is process-local")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.NewProducer(ctx, cfg.Kafka)
		if err != nil {
			out.close(log)
			return nil, err
		}
		out.kafka = client
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka); err != nil {
			out.close(log)
			return nil, err
		}
	}

	blobs, err := blob.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		out.close(log)
		return nil, fmt.Errorf("minio: %w", err)
	}
	out.blobs = blobs
	if blobs == nil {
		log.Warn("MINIO_ENDPOINT not set, dataset payloads are kept in memory")
	}
	return out, nil
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("failed to close postgres", "error", err)
		}
	}
}

// healthHandler reports the state of each configured backend.
func healthHandler(i *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		record := func(name string, err error) {
			if err != nil {
				checks[name] = err.Error()
				healthy = false
				return
			}
			checks[name] = "ok"
		}
		if i.db != nil {
			record("postgres", i.db.PingContext(ctx))
		}
		if i.redis != nil {
			record("redis", i.redis.Health(ctx))
		}
		if i.kafka != nil {
			record("kafka", i.kafka.Ping(ctx))
		}
		if i.blobs != nil {
			record("minio", i.blobs.Health(ctx))
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": checks})
	}
}
