package lookup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/chartcode/internal/cache"
	"github.com/ppiankov/chartcode/internal/worker"
)

type rateLimitedService struct {
	next    Service
	limiter *worker.Limiter
}

// WithRateLimit makes next wait on limiter, keyed by code system
func WithRateLimit(next Service, limiter *worker.Limiter) Service {
	return &rateLimitedService{next: next, limiter: limiter}
}

func (s *rateLimitedService) System() string {
	return s.next.System()
}

func (s *rateLimitedService) Lookup(ctx context.Context, term string) (string, bool, error) {
	if err := s.limiter.Wait(ctx, s.next.System()); err != nil {
		return "", false, err
	}
	return s.next.Lookup(ctx, term)
}

type cachedService struct {
	next  Service
	cache cache.Cache
	ttl   time.Duration
}

// WithCache remembers answers from next, including NotFound. Errors are
// never cached
func WithCache(next Service, c cache.Cache, ttl time.Duration) Service {
	return &cachedService{next: next, cache: c, ttl: ttl}
}

func (s *cachedService) System() string {
	return s.next.System()
}

func (s *cachedService) Lookup(ctx context.Context, term string) (string, bool, error) {
	key := cache.Key(s.next.System(), term)
	if val, ok := s.cache.Get(key); ok {
		// an empty value records NotFound
		return string(val), len(val) > 0, nil
	}

	code, found, err := s.next.Lookup(ctx, term)
	if err != nil {
		return "", false, err
	}

	var val []byte
	if found {
		val = []byte(code)
	}
	if err := s.cache.Set(key, val, s.ttl); err != nil {
		zap.L().Debug("lookup cache write failed", zap.String("system", s.next.System()), zap.Error(err))
	}
	return code, found, nil
}
