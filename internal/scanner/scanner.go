package scanner

import (
	"context"
	"fmt"
	"strings"

	"FeedDigest/internal/domain"
)

// Request carries all parameters required to scan one source.
type Request struct {
	Source   string
	URL      string
	MaxItems int
	Options  map[string]string
}

// Option returns a trimmed option value or the fallback when unset.
func (r Request) Option(key, fallback string) string {
	if v := strings.TrimSpace(r.Options[key]); v != "" {
		return v
	}
	return fallback
}

// Scanner captures a single strategy implementation (reddit, rss/atom, html listing).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.FeedItem, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
