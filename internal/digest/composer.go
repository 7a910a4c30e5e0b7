// Package digest renders selected items and run statistics into a Payload.
// Composition is pure: no I/O, no clock reads, no randomness.
package digest

import (
	"fmt"
	"strings"
	"time"

	"FeedDigest/internal/domain"
)

const dateLayout = "2006-01-02"

// Options control the rendered digest.
type Options struct {
	Title    string
	TotalCap int
	Location *time.Location
}

// Compose builds the digest for one run. Stats keep the order of counts,
// entries keep the order of items and are cut at TotalCap.
func Compose(items []domain.ScoredItem, runAt time.Time, counts []domain.SourceCount, opts Options) domain.Payload {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Daily Feed Digest"
	}

	limit := len(items)
	if opts.TotalCap < limit {
		limit = max(opts.TotalCap, 0)
	}

	entries := make([]domain.DigestEntry, 0, limit)
	for i, item := range items[:limit] {
		entries = append(entries, domain.DigestEntry{
			Index:  i + 1,
			Source: item.Source,
			Title:  item.Title,
			Link:   item.Link,
			Score:  item.Score,
		})
	}

	stats := make([]domain.SourceCount, len(counts))
	copy(stats, counts)

	payload := domain.Payload{
		Title:       fmt.Sprintf("%s - %s", title, runAt.In(loc).Format(dateLayout)),
		GeneratedAt: runAt.In(loc),
		Stats:       stats,
		Entries:     entries,
	}
	payload.Summary = summarize(payload)
	return payload
}

func summarize(p domain.Payload) string {
	parts := make([]string, 0, len(p.Stats))
	total := 0
	for _, s := range p.Stats {
		parts = append(parts, fmt.Sprintf("%s: %d", s.Source, s.Count))
		total += s.Count
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fetched %d items from %d sources", total, len(p.Stats))
	if len(parts) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, " | "))
		b.WriteString(")")
	}
	b.WriteString(". ")
	if p.Empty() {
		b.WriteString("No new items.")
	} else {
		fmt.Fprintf(&b, "Selected %d new items.", len(p.Entries))
	}
	return b.String()
}
