package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/scanner"
)

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>programming</title>
  <entry>
    <id>t3_aaa</id>
    <title>Go 1.25 release notes</title>
    <link href="https://www.reddit.com/r/programming/comments/aaa/go_release/"/>
    <published>2025-11-08T09:00:00+00:00</published>
  </entry>
  <entry>
    <id>t3_bbb</id>
    <title>A guide to &lt;b&gt;profiling&lt;/b&gt;</title>
    <link href="https://www.reddit.com/r/programming/comments/bbb/profiling/"/>
    <updated>2025-11-08T08:00:00+00:00</updated>
  </entry>
  <entry>
    <id>t3_ccc</id>
    <title>Third entry</title>
    <link href="https://www.reddit.com/r/programming/comments/ccc/third/"/>
  </entry>
</feed>`

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>news</title>
  <item><title>Plain RSS item</title><link>https://example.org/a</link>
    <pubDate>Sat, 08 Nov 2025 07:00:00 GMT</pubDate></item>
  <item><title>No link</title><guid isPermaLink="false">abc</guid></item>
</channel></rss>`

func TestParseFeedAtom(t *testing.T) {
	t.Parallel()

	fetchedAt := time.Date(2025, time.November, 9, 0, 0, 0, 0, time.UTC)
	items, err := parseFeed([]byte(atomFeed), "programming", 10, fetchedAt)
	if err != nil {
		t.Fatalf("parseFeed error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	if items[0].Title != "Go 1.25 release notes" {
		t.Fatalf("unexpected title: %s", items[0].Title)
	}
	if items[0].Link != "https://www.reddit.com/r/programming/comments/aaa/go_release/" {
		t.Fatalf("unexpected link: %s", items[0].Link)
	}
	if !items[0].PublishedAt.Equal(time.Date(2025, time.November, 8, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published: %v", items[0].PublishedAt)
	}
	if items[1].Title != "A guide to profiling" {
		t.Fatalf("expected markup stripped, got %q", items[1].Title)
	}
	if !items[1].PublishedAt.Equal(time.Date(2025, time.November, 8, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected updated time fallback, got %v", items[1].PublishedAt)
	}
	if !items[2].PublishedAt.Equal(fetchedAt) {
		t.Fatalf("expected fetch time fallback, got %v", items[2].PublishedAt)
	}
}

func TestParseFeedStableIDs(t *testing.T) {
	t.Parallel()

	first, err := parseFeed([]byte(atomFeed), "programming", 10, time.Now())
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	second, err := parseFeed([]byte(atomFeed), "programming", 10, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("id changed between fetches: %s vs %s", first[i].ID, second[i].ID)
		}
	}
}

func TestParseFeedLimitAndRSS(t *testing.T) {
	t.Parallel()

	items, err := parseFeed([]byte(atomFeed), "programming", 2, time.Now())
	if err != nil {
		t.Fatalf("parseFeed error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(items))
	}

	rss, err := parseFeed([]byte(rssFeed), "news", 10, time.Now())
	if err != nil {
		t.Fatalf("parse rss: %v", err)
	}
	if len(rss) != 2 || rss[0].Link != "https://example.org/a" {
		t.Fatalf("unexpected rss items: %+v", rss)
	}
	if rss[1].Link != "" || rss[1].ID != domain.ItemID("news", "abc") {
		t.Fatalf("expected guid identity for linkless item, got %+v", rss[1])
	}
}

func TestParseFeedOpaqueGUID(t *testing.T) {
	t.Parallel()

	const body = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>tags</title>
  <item><title>Tagged post</title><guid isPermaLink="false">tag:example.com,2025:post-42</guid></item>
  <item><title>Nothing to identify</title></item>
</channel></rss>`

	first, err := parseFeed([]byte(body), "tags", 10, time.Now())
	if err != nil {
		t.Fatalf("parseFeed error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 item, got %d", len(first))
	}
	if first[0].Title != "Tagged post" {
		t.Fatalf("unexpected title: %s", first[0].Title)
	}
	if first[0].ID != domain.ItemID("tags", "tag:example.com,2025:post-42") {
		t.Fatalf("unexpected id: %s", first[0].ID)
	}

	second, err := parseFeed([]byte(body), "tags", 10, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if second[0].ID != first[0].ID {
		t.Fatalf("guid id changed between fetches")
	}
}

func TestParseFeedRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := parseFeed([]byte("this is not a feed"), "x", 10, time.Now()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRedditScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atomFeed))
	}))
	defer server.Close()

	sc := NewRedditScanner(server.Client(), "")
	items, err := sc.Scan(context.Background(), scanner.Request{
		Source:   "programming",
		URL:      server.URL + "/r/programming/.rss",
		MaxItems: 3,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for _, item := range items {
		if item.Source != "programming" {
			t.Fatalf("unexpected source: %s", item.Source)
		}
	}
}

func TestFeedScannerNonSuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusTooManyRequests)
	}))
	defer server.Close()

	sc := NewFeedScanner(server.Client(), "")
	if _, err := sc.Scan(context.Background(), scanner.Request{Source: "x", URL: server.URL}); err == nil {
		t.Fatalf("expected error for 429 response")
	}
}
