package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/bioeq-design-server/internal/domain"
)

// ResilienceConfig represents retry and circuit breaker configuration
type ResilienceConfig struct {
	RetryAttempts       int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	CacheTTL            time.Duration
}

func (c *ResilienceConfig) setDefaults() {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 5 * time.Second
	}
	if c.BreakerMaxRequests == 0 {
		c.BreakerMaxRequests = 3
	}
	if c.BreakerInterval <= 0 {
		c.BreakerInterval = 30 * time.Second
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 60 * time.Second
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 3
	}
	if c.BreakerFailureRatio <= 0 {
		c.BreakerFailureRatio = 0.6
	}
}

// guard runs calls through a circuit breaker with bounded exponential retry of
// transient failures.
type guard struct {
	config  ResilienceConfig
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

func newGuard(name string, config ResilienceConfig, logger *logrus.Logger) *guard {
	config.setDefaults()
	if logger == nil {
		logger = logrus.New()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.BreakerMaxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= config.BreakerMinRequests && failureRatio >= config.BreakerFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		// Only connectivity failures count against the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})

	return &guard{config: config, breaker: breaker, logger: logger}
}

// call executes fn, retrying transient failures up to RetryAttempts in total. Exhausted
// retries and an open breaker are reported as domain.ErrNetworkFailure.
func call[T any](ctx context.Context, g *guard, op string, fn func() (T, error)) (T, error) {
	var result T
	attempt := 0

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.config.InitialInterval
	policy.MaxInterval = g.config.MaxInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.config.RetryAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		attempt++
		out, err := g.breaker.Execute(func() (interface{}, error) {
			return fn()
		})
		if err != nil {
			if IsTransient(err) {
				g.logger.WithFields(logrus.Fields{
					"operation": op,
					"attempt":   attempt,
					"error":     err,
				}).Debug("Transient failure, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		result = out.(T)
		return nil
	}, retry)

	if err == nil {
		return result, nil
	}
	if IsTransient(err) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.logger.WithFields(logrus.Fields{
			"operation": op,
			"attempts":  attempt,
			"error":     err,
		}).Warn("Upstream unavailable")
		return result, fmt.Errorf("%s: %w: %w", op, domain.ErrNetworkFailure, err)
	}
	return result, fmt.Errorf("%s: %w", op, err)
}

// ResilientLiteratureSource wraps a LiteratureSource with retry, circuit breaking and
// per-article caching of fetched abstracts.
type ResilientLiteratureSource struct {
	source domain.LiteratureSource
	guard  *guard
	cache  Cache
}

// NewResilientLiteratureSource creates a resilient literature source. cache may be nil.
func NewResilientLiteratureSource(source domain.LiteratureSource, config ResilienceConfig, cache Cache, logger *logrus.Logger) *ResilientLiteratureSource {
	return &ResilientLiteratureSource{
		source: source,
		guard:  newGuard("PubMed", config, logger),
		cache:  cache,
	}
}

// Search implements domain.LiteratureSource
func (r *ResilientLiteratureSource) Search(ctx context.Context, query domain.SearchQuery) ([]string, error) {
	return call(ctx, r.guard, "literature search", func() ([]string, error) {
		return r.source.Search(ctx, query)
	})
}

// FetchAbstracts implements domain.LiteratureSource. Cached articles are served
// without a request; the rest are fetched in one call and cached.
func (r *ResilientLiteratureSource) FetchAbstracts(ctx context.Context, ids []string) ([]domain.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cached := make(map[string]domain.Article)
	var missing []string
	for _, id := range ids {
		var article domain.Article
		if r.cache != nil {
			if ok, err := r.cache.Get(ctx, CacheKey("abstract", id), &article); err == nil && ok {
				cached[id] = article
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		fetched, err := call(ctx, r.guard, "abstract fetch", func() ([]domain.Article, error) {
			return r.source.FetchAbstracts(ctx, missing)
		})
		if err != nil {
			return nil, err
		}
		for _, article := range fetched {
			cached[article.ID] = article
			if r.cache != nil {
				if err := r.cache.Set(ctx, CacheKey("abstract", article.ID), article, r.guard.config.CacheTTL); err != nil {
					r.guard.logger.WithError(err).Debug("Failed to cache abstract")
				}
			}
		}
	}

	articles := make([]domain.Article, 0, len(cached))
	for _, id := range ids {
		if article, ok := cached[id]; ok {
			articles = append(articles, article)
		}
	}
	return articles, nil
}

// ResilientExtractor wraps an Extractor with retry, circuit breaking and result caching
type ResilientExtractor struct {
	extractor domain.Extractor
	guard     *guard
	cache     Cache
}

// NewResilientExtractor creates a resilient extractor. cache may be nil.
func NewResilientExtractor(extractor domain.Extractor, config ResilienceConfig, cache Cache, logger *logrus.Logger) *ResilientExtractor {
	return &ResilientExtractor{
		extractor: extractor,
		guard:     newGuard("Extraction", config, logger),
		cache:     cache,
	}
}

// Extract implements domain.Extractor
func (r *ResilientExtractor) Extract(ctx context.Context, text, substance string, mode domain.ExtractionMode) (map[string]*domain.RawCandidate, error) {
	key := CacheKey("extraction", string(mode), substance, text)
	if r.cache != nil {
		var candidates map[string]*domain.RawCandidate
		if ok, err := r.cache.Get(ctx, key, &candidates); err == nil && ok {
			return candidates, nil
		}
	}

	candidates, err := call(ctx, r.guard, "extraction", func() (map[string]*domain.RawCandidate, error) {
		return r.extractor.Extract(ctx, text, substance, mode)
	})
	if err != nil {
		return nil, err
	}

	if r.cache != nil && len(candidates) > 0 {
		if err := r.cache.Set(ctx, key, candidates, r.guard.config.CacheTTL); err != nil {
			r.guard.logger.WithError(err).Debug("Failed to cache extraction result")
		}
	}
	return candidates, nil
}
