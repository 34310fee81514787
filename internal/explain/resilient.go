package explain

import (
	"context"
	"log/slog"

	"fedlearn/pkg/platform/circuit"
)

// Resilient calls a primary explainer and falls back to a deterministic one
// when the primary errors or its breaker is open. Its output is never an
// error unless the fallback itself fails.
type Resilient struct {
	primary  Explainer
	fallback Explainer
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewResilient(primary Explainer, logger *slog.Logger, opts ...circuit.Option) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resilient{
		primary:  primary,
		fallback: Fallback{},
		breaker:  circuit.New("explainer", opts...),
		logger:   logger,
	}
}

func (r *Resilient) Explain(ctx context.Context, s Summary) (string, error) {
	if r.primary == nil {
		return r.fallback.Explain(ctx, s)
	}

	text, err := r.primary.Explain(ctx, s)
	if err != nil {
		useFallback, change := r.breaker.RecordFailure()
		if change.Opened {
			r.logger.WarnContext(ctx, "explainer circuit opened", "breaker", r.breaker.Name())
		}
		r.logger.WarnContext(ctx, "explainer failed, using fallback narrative",
			"error", err,
			"degraded", useFallback,
		)
		return r.fallback.Explain(ctx, s)
	}

	usePrimary, change := r.breaker.RecordSuccess()
	if change.Closed {
		r.logger.InfoContext(ctx, "explainer circuit closed", "breaker", r.breaker.Name())
	}
	if !usePrimary {
		return r.fallback.Explain(ctx, s)
	}
	return text, nil
}
