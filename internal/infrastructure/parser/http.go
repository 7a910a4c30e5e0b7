package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FeedDigest/internal/domain"
)

const maxDocumentBytes = 5 << 20

const untitled = "(untitled)"

// NewHTTPClient builds the client shared by all scanners. An empty proxyURL
// falls back to the environment proxy settings.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

type fetcher struct {
	client    *http.Client
	userAgent string
}

func newFetcher(client *http.Client, userAgent string) fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if userAgent == "" {
		userAgent = "FeedDigest/1.0"
	}
	return fetcher{client: client, userAgent: userAgent}
}

// get issues a single GET and returns the (size limited) body.
func (f fetcher) get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s returned %s", req.URL.Host, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return body, nil
}

// newItem normalizes one parsed entry. The link is the identity; entries
// without one fall back to guid and keep an empty Link. It returns false
// when neither is present.
func newItem(source, title, link, guid string, publishedAt time.Time) (domain.FeedItem, bool) {
	link = strings.TrimSpace(link)
	identity := link
	if identity == "" {
		identity = strings.TrimSpace(guid)
	}
	if identity == "" {
		return domain.FeedItem{}, false
	}

	title = cleanTitle(title)
	if title == "" {
		title = untitled
	}

	return domain.FeedItem{
		ID:          domain.ItemID(source, identity),
		Title:       title,
		Link:        link,
		Source:      source,
		PublishedAt: publishedAt.UTC(),
	}, true
}

// cleanTitle strips markup and entities and collapses whitespace.
func cleanTitle(raw string) string {
	if strings.ContainsAny(raw, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
			raw = doc.Text()
		}
	}
	return strings.Join(strings.Fields(raw), " ")
}
