package lookup

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first
	MaxAttempts int

	// InitialBackoff is the delay before the first retry
	InitialBackoff time.Duration

	// MaxBackoff caps any single delay
	MaxBackoff time.Duration

	// Multiplier scales the delay after each attempt
	Multiplier float64
}

// DefaultRetryConfig returns 3 attempts, 1s base, 10s cap
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

// retryWaitFunc sleeps between attempts (injectable for tests)
var retryWaitFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	d := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = d.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = d.MaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = d.Multiplier
	}
	return cfg
}

// backoff returns the delay after the given zero-based attempt
func backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	return time.Duration(delay)
}

type retryService struct {
	next Service
	cfg  RetryConfig
}

// WithRetry retries transient failures of next with exponential backoff.
// The returned service never reports an error: exhausted retries, permanent
// failures and cancellation all come back as NotFound
func WithRetry(next Service, cfg RetryConfig) Service {
	return &retryService{next: next, cfg: applyDefaults(cfg)}
}

func (r *retryService) System() string {
	return r.next.System()
}

func (r *retryService) Lookup(ctx context.Context, term string) (string, bool, error) {
	log := zap.L().With(zap.String("system", r.next.System()), zap.String("term", term))

	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		code, found, err := r.next.Lookup(ctx, term)
		if err == nil {
			return code, found, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			log.Debug("lookup abandoned", zap.Error(ctx.Err()))
			return "", false, nil
		}

		if !IsTransient(err) {
			log.Warn("lookup failed, treating as not found", zap.Error(err))
			return "", false, nil
		}

		if attempt >= r.cfg.MaxAttempts-1 {
			break
		}

		delay := backoff(attempt, r.cfg)
		log.Warn("retrying lookup",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := retryWaitFunc(ctx, delay); err != nil {
			log.Debug("lookup abandoned during backoff", zap.Error(err))
			return "", false, nil
		}
	}

	log.Warn("lookup unavailable after retries, treating as not found",
		zap.Int("attempts", r.cfg.MaxAttempts),
		zap.Error(lastErr),
	)
	return "", false, nil
}
