package lookup

import (
	"net/http"
	"time"

	"github.com/ppiankov/chartcode/internal/cache"
	"github.com/ppiankov/chartcode/internal/model"
	"github.com/ppiankov/chartcode/internal/worker"
)

// New builds the decorated RxNorm and ICD-10 services from configuration.
// Each client is wrapped, innermost first, in rate limiting, the answer
// cache (when enabled) and retry
func New(cfg model.LookupConfig, httpClient *http.Client) Set {
	limiter := worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)

	var answers cache.Cache
	if cfg.Cache.Enabled {
		memoryTTL := time.Duration(cfg.Cache.MemoryTTL) * time.Minute
		if cfg.Cache.DiskDir != "" {
			answers = cache.NewLayeredCache(memoryTTL, cfg.Cache.DiskDir, time.Duration(cfg.Cache.DiskTTL)*time.Hour)
		} else {
			answers = cache.NewMemoryCache(memoryTTL, 10*time.Minute)
		}
	}

	retry := RetryConfig{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff(),
		MaxBackoff:     cfg.MaxBackoff(),
		Multiplier:     2.0,
	}

	wrap := func(svc Service) Service {
		svc = WithRateLimit(svc, limiter)
		if answers != nil {
			svc = WithCache(svc, answers, 0)
		}
		return WithRetry(svc, retry)
	}

	return Set{
		Condition:  wrap(NewICD10Client(cfg.ICD10BaseURL, httpClient)),
		Medication: wrap(NewRxNormClient(cfg.RxNormBaseURL, httpClient)),
	}
}
