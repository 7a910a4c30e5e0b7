package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// FeedItem is a normalized entry fetched from one source.
type FeedItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// ScoredItem is a FeedItem after keyword scoring and per-source ranking.
type ScoredItem struct {
	FeedItem
	Score            float64 `json:"score"`
	RankWithinSource int     `json:"rank_within_source"`
}

// SourceCount reports how many raw items a source produced before dedup.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// ItemID derives the stable identity of an item from its source and link.
// Two fetches of unchanged content always produce the same id.
func ItemID(source, link string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(source)) + "\n" + CanonicalLink(link)))
	return hex.EncodeToString(sum[:16])
}

// CanonicalLink normalizes a link so that cosmetic differences (case of the
// host, fragments, tracking parameters, trailing slashes) do not change ids.
func CanonicalLink(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	// RawPath keeps escapes such as %2F distinct from a literal slash.
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = strings.TrimRight(u.RawPath, "/")
	}
	if u.Path == "/" {
		u.Path = ""
		u.RawPath = ""
	}

	return u.String()
}
