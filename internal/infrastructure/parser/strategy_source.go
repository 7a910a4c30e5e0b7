package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"FeedDigest/internal/config"
	"FeedDigest/internal/domain"
	"FeedDigest/internal/ports"
	"FeedDigest/internal/scanner"
)

// StrategySource implements ports.FeedSource via registered scanner strategies.
// Every failure is folded into a ParseFailed result so that one broken source
// never aborts the others.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	cache    ports.FeedCache
	cacheTTL time.Duration
	timeout  time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
	logger   *slog.Logger
}

var _ ports.FeedSource = (*StrategySource)(nil)

// SourceOptions tunes fetching behaviour shared by all sources.
type SourceOptions struct {
	Timeout     time.Duration
	MinInterval time.Duration
	Cache       ports.FeedCache
	CacheTTL    time.Duration
	Now         func() time.Time
}

// NewStrategySource wires scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, opts SourceOptions, log *slog.Logger) *StrategySource {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var limiter *rate.Limiter
	if opts.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}

	return &StrategySource{
		registry: reg,
		sources:  sources,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		timeout:  opts.Timeout,
		limiter:  limiter,
		now:      opts.Now,
		logger:   log,
	}
}

// FetchAll fetches every configured source in configured order.
func (s *StrategySource) FetchAll(ctx context.Context) []domain.FetchResult {
	s.debug("fetch all", "sources", len(s.sources))

	results := make([]domain.FetchResult, 0, len(s.sources))
	for _, src := range s.sources {
		results = append(results, s.fetch(ctx, src, true))
	}
	return results
}

// Fetch fetches a single source by name, honouring the cache.
func (s *StrategySource) Fetch(ctx context.Context, name string) domain.FetchResult {
	src, ok := s.lookup(name)
	if !ok {
		return domain.ParseFailed(name, domain.ErrSourceNotAllowed)
	}
	return s.fetch(ctx, src, true)
}

// Check performs network reads only, bypassing the cache. An empty name list
// checks every configured source.
func (s *StrategySource) Check(ctx context.Context, names []string) []domain.FetchResult {
	if len(names) == 0 {
		names = make([]string, 0, len(s.sources))
		for _, src := range s.sources {
			names = append(names, src.Name)
		}
	}

	results := make([]domain.FetchResult, 0, len(names))
	for _, name := range names {
		src, ok := s.lookup(name)
		if !ok {
			results = append(results, domain.ParseFailed(name, domain.ErrSourceNotAllowed))
			continue
		}
		results = append(results, s.fetch(ctx, src, false))
	}
	return results
}

func (s *StrategySource) fetch(ctx context.Context, src config.SourceConfig, useCache bool) domain.FetchResult {
	started := s.now()

	if useCache {
		if items, ok := s.cached(src.Name, started); ok {
			s.debug("source served from cache", "source", src.Name, "count", len(items))
			res := domain.Parsed(src.Name, items)
			res.FromCache = true
			return res
		}
	}

	res := s.scan(ctx, src)
	res.Elapsed = s.now().Sub(started)

	if res.Failed() {
		s.warn("source fetch failed", "source", src.Name, "error", res.Err)
		return res
	}

	s.debug("source produced items", "source", src.Name, "count", len(res.Items))
	if useCache && s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Put(src.Name, res.Items, started); err != nil {
			s.warn("cache write failed", "source", src.Name, "error", err)
		}
	}
	return res
}

func (s *StrategySource) scan(ctx context.Context, src config.SourceConfig) domain.FetchResult {
	if s.registry == nil {
		return domain.ParseFailed(src.Name, fmt.Errorf("scanner registry is not configured"))
	}
	strategy, err := s.registry.Resolve(src.Scanner)
	if err != nil {
		return domain.ParseFailed(src.Name, err)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return domain.ParseFailed(src.Name, fmt.Errorf("wait for fetch slot: %w", err))
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := strategy.Scan(fetchCtx, scanner.Request{
		Source:   src.Name,
		URL:      src.URL,
		MaxItems: src.MaxItems,
		Options:  src.Options,
	})
	if err != nil {
		return domain.ParseFailed(src.Name, err)
	}
	return domain.Parsed(src.Name, items)
}

func (s *StrategySource) cached(source string, now time.Time) ([]domain.FeedItem, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	items, ok, err := s.cache.Get(source, s.cacheTTL, now)
	if err != nil {
		s.warn("cache read failed", "source", source, "error", err)
		return nil, false
	}
	return items, ok
}

func (s *StrategySource) lookup(name string) (config.SourceConfig, bool) {
	for _, src := range s.sources {
		if src.Name == name {
			return src, true
		}
	}
	return config.SourceConfig{}, false
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
