package parser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FeedDigest/internal/config"
	"FeedDigest/internal/domain"
	"FeedDigest/internal/logging"
	"FeedDigest/internal/scanner"
)

type stubScanner struct {
	mu      sync.Mutex
	results map[string][]domain.FeedItem
	errs    map[string]error
	calls   map[string]int
	block   bool
}

func (s *stubScanner) Name() string { return "reddit" }

func (s *stubScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FeedItem, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[req.Source]++
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := s.errs[req.Source]; err != nil {
		return nil, err
	}
	return s.results[req.Source], nil
}

type memoryCache struct {
	entries map[string][]domain.FeedItem
	at      map[string]time.Time
}

func (m *memoryCache) Get(source string, maxAge time.Duration, now time.Time) ([]domain.FeedItem, bool, error) {
	at, ok := m.at[source]
	if !ok || now.Sub(at) >= maxAge {
		return nil, false, nil
	}
	return m.entries[source], true, nil
}

func (m *memoryCache) Put(source string, items []domain.FeedItem, fetchedAt time.Time) error {
	m.entries[source] = items
	m.at[source] = fetchedAt
	return nil
}

func newTestSource(sc *stubScanner, opts SourceOptions, names ...string) *StrategySource {
	reg := scanner.NewRegistry()
	reg.Register(sc)

	sources := make([]config.SourceConfig, 0, len(names))
	for _, name := range names {
		sources = append(sources, config.SourceConfig{Name: name, Scanner: "reddit", MaxItems: 10})
	}
	return NewStrategySource(reg, sources, opts, logging.Discard())
}

func TestStrategySourceIsolatesFailures(t *testing.T) {
	t.Parallel()

	sc := &stubScanner{
		results: map[string][]domain.FeedItem{
			"a": {{ID: "a1", Source: "a"}, {ID: "a2", Source: "a"}},
			"c": {{ID: "c1", Source: "c"}},
		},
		errs: map[string]error{"b": errors.New("connection refused")},
	}
	src := newTestSource(sc, SourceOptions{}, "a", "b", "c")

	results := src.FetchAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Failed() || len(results[0].Items) != 2 {
		t.Fatalf("unexpected result for a: %+v", results[0])
	}
	if !results[1].Failed() || len(results[1].Items) != 0 {
		t.Fatalf("expected b to fail with zero items: %+v", results[1])
	}
	var fetchErr *domain.SourceFetchError
	if !errors.As(results[1].Err, &fetchErr) || fetchErr.Source != "b" {
		t.Fatalf("expected SourceFetchError for b, got %v", results[1].Err)
	}
	if results[2].Failed() || len(results[2].Items) != 1 {
		t.Fatalf("unexpected result for c: %+v", results[2])
	}
}

func TestStrategySourceTimeout(t *testing.T) {
	t.Parallel()

	sc := &stubScanner{block: true}
	src := newTestSource(sc, SourceOptions{Timeout: 20 * time.Millisecond}, "slow")

	res := src.Fetch(context.Background(), "slow")
	if !res.Failed() {
		t.Fatalf("expected timeout to be reported as failure")
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", res.Err)
	}
}

func TestStrategySourceAllowList(t *testing.T) {
	t.Parallel()

	src := newTestSource(&stubScanner{}, SourceOptions{}, "a")

	res := src.Fetch(context.Background(), "unknown")
	if !errors.Is(res.Err, domain.ErrSourceNotAllowed) {
		t.Fatalf("expected ErrSourceNotAllowed, got %v", res.Err)
	}

	checks := src.Check(context.Background(), []string{"a", "nope"})
	if len(checks) != 2 || checks[0].Failed() || !checks[1].Failed() {
		t.Fatalf("unexpected check results: %+v", checks)
	}
}

func TestStrategySourceCache(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache := &memoryCache{entries: map[string][]domain.FeedItem{}, at: map[string]time.Time{}}
	sc := &stubScanner{results: map[string][]domain.FeedItem{"a": {{ID: "a1", Source: "a"}}}}

	src := newTestSource(sc, SourceOptions{Cache: cache, CacheTTL: time.Hour, Now: clock}, "a")

	first := src.Fetch(context.Background(), "a")
	if first.Failed() || first.FromCache {
		t.Fatalf("first fetch should hit the network: %+v", first)
	}

	second := src.Fetch(context.Background(), "a")
	if !second.FromCache || len(second.Items) != 1 {
		t.Fatalf("second fetch should be served from cache: %+v", second)
	}
	if sc.calls["a"] != 1 {
		t.Fatalf("expected 1 network call, got %d", sc.calls["a"])
	}

	checked := src.Check(context.Background(), nil)
	if checked[0].FromCache || sc.calls["a"] != 2 {
		t.Fatalf("check must bypass the cache")
	}

	now = now.Add(2 * time.Hour)
	third := src.Fetch(context.Background(), "a")
	if third.FromCache {
		t.Fatalf("expired cache entry must not be used")
	}
}
