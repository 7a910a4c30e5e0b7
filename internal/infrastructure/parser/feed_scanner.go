package parser

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/scanner"
)

const redditFeedURL = "https://www.reddit.com/r/%s/.rss"

// FeedScanner reads RSS and Atom documents.
type FeedScanner struct {
	fetcher fetcher
	now     func() time.Time
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires an HTTP client used for every request.
func NewFeedScanner(client *http.Client, userAgent string) *FeedScanner {
	return &FeedScanner{fetcher: newFetcher(client, userAgent), now: time.Now}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return "feed"
}

// Scan fetches the feed document once and parses up to MaxItems entries.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FeedItem, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("no url configured for source %s", req.Source)
	}
	body, err := f.fetcher.get(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	return parseFeed(body, req.Source, req.MaxItems, f.now())
}

// RedditScanner reads the public Atom feed of a subreddit.
type RedditScanner struct {
	feed *FeedScanner
}

var _ scanner.Scanner = (*RedditScanner)(nil)

// NewRedditScanner wires an HTTP client used for every request.
func NewRedditScanner(client *http.Client, userAgent string) *RedditScanner {
	return &RedditScanner{feed: NewFeedScanner(client, userAgent)}
}

// Name identifies the strategy inside the registry.
func (r *RedditScanner) Name() string {
	return "reddit"
}

// Scan resolves the subreddit feed URL unless one is configured explicitly.
func (r *RedditScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FeedItem, error) {
	if req.URL == "" {
		req.URL = fmt.Sprintf(redditFeedURL, url.PathEscape(req.Source))
	}
	return r.feed.Scan(ctx, req)
}

func parseFeed(body []byte, source string, limit int, fetchedAt time.Time) ([]domain.FeedItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.FeedItem, 0, min(len(feed.Items), max(limit, 0)))
	for _, entry := range feed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		if entry == nil {
			continue
		}
		item, ok := newItem(source, entry.Title, entryLink(entry), entry.GUID, entryTime(entry, fetchedAt))
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func entryLink(entry *gofeed.Item) string {
	if entry.Link != "" {
		return entry.Link
	}
	for _, link := range entry.Links {
		if link != "" {
			return link
		}
	}
	if strings.HasPrefix(entry.GUID, "http://") || strings.HasPrefix(entry.GUID, "https://") {
		return entry.GUID
	}
	return ""
}

func entryTime(entry *gofeed.Item, fallback time.Time) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return fallback
}
