// Package ranking scores feed items by title keywords and selects the top
// items per source and overall.
package ranking

import (
	"slices"
	"strings"

	"github.com/samber/lo"

	"FeedDigest/internal/domain"
)

// Rules is an immutable keyword rule set. Matching is a case-insensitive
// substring test against the title; it is not token-boundary aware, so
// "go" also matches "google".
type Rules struct {
	positive       []string
	negative       []string
	base           float64
	positiveWeight float64
	negativeWeight float64
}

// NewRules normalizes the keyword lists (trim, lower case, drop empties and
// repeats) and copies them so later changes to the inputs have no effect.
func NewRules(positive, negative []string, base, positiveWeight, negativeWeight float64) Rules {
	return Rules{
		positive:       normalize(positive),
		negative:       normalize(negative),
		base:           base,
		positiveWeight: positiveWeight,
		negativeWeight: negativeWeight,
	}
}

// Score returns base + positiveWeight per matched positive keyword
// - negativeWeight per matched negative keyword.
func (r Rules) Score(title string) float64 {
	lower := strings.ToLower(title)
	score := r.base
	for _, kw := range r.positive {
		if strings.Contains(lower, kw) {
			score += r.positiveWeight
		}
	}
	for _, kw := range r.negative {
		if strings.Contains(lower, kw) {
			score -= r.negativeWeight
		}
	}
	return score
}

// RankAndSelect scores items, keeps the best perSourceCap of every source and
// then the best totalCap overall. Low scores never exclude an item on their
// own; only the caps do.
func RankAndSelect(items []domain.FeedItem, rules Rules, perSourceCap, totalCap int) []domain.ScoredItem {
	if totalCap <= 0 || perSourceCap <= 0 || len(items) == 0 {
		return []domain.ScoredItem{}
	}

	scored := lo.Map(items, func(item domain.FeedItem, _ int) domain.ScoredItem {
		return domain.ScoredItem{FeedItem: item, Score: rules.Score(item.Title)}
	})

	groups := lo.GroupBy(scored, func(item domain.ScoredItem) string { return item.Source })
	order := lo.Uniq(lo.Map(scored, func(item domain.ScoredItem, _ int) string { return item.Source }))

	survivors := make([]domain.ScoredItem, 0, min(len(scored), perSourceCap*len(order)))
	for _, source := range order {
		group := groups[source]
		slices.SortStableFunc(group, compare)
		for i := range group {
			group[i].RankWithinSource = i + 1
		}
		survivors = append(survivors, group[:min(len(group), perSourceCap)]...)
	}

	slices.SortStableFunc(survivors, compare)
	return survivors[:min(len(survivors), totalCap)]
}

// compare orders by score descending, then older items first, then id.
func compare(a, b domain.ScoredItem) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	if c := a.PublishedAt.Compare(b.PublishedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		out = append(out, kw)
	}
	return lo.Uniq(out)
}
