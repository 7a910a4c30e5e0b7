package parser

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/scanner"
)

// HTMLScanner extracts items from a listing page using CSS selectors taken
// from the source options:
//
//	item       selector of one entry (required)
//	title      selector of the title inside the entry (default: the link text)
//	link       selector of the anchor inside the entry (default "a")
//	link_attr  attribute holding the URL (default "href")
//	time       selector of the timestamp inside the entry (optional)
//	time_attr  attribute holding an RFC 3339 timestamp (default "datetime")
type HTMLScanner struct {
	fetcher fetcher
	now     func() time.Time
}

var _ scanner.Scanner = (*HTMLScanner)(nil)

// NewHTMLScanner wires an HTTP client used for every request.
func NewHTMLScanner(client *http.Client, userAgent string) *HTMLScanner {
	return &HTMLScanner{fetcher: newFetcher(client, userAgent), now: time.Now}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan fetches the listing page once and extracts up to MaxItems entries.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FeedItem, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("no url configured for source %s", req.Source)
	}
	if req.Option("item", "") == "" {
		return nil, fmt.Errorf("source %s: html scanner requires an item selector", req.Source)
	}
	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %s: %w", req.URL, err)
	}

	body, err := h.fetcher.get(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return h.extractItems(doc, base, req), nil
}

func (h *HTMLScanner) extractItems(doc *goquery.Document, base *url.URL, req scanner.Request) []domain.FeedItem {
	var (
		collected []domain.FeedItem
		fetchedAt = h.now()
	)

	doc.Find(req.Option("item", "")).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if req.MaxItems > 0 && len(collected) >= req.MaxItems {
			return false
		}

		item, ok := parseEntry(sel, base, req, fetchedAt)
		if ok {
			collected = append(collected, item)
		}
		return true
	})

	return collected
}

func parseEntry(sel *goquery.Selection, base *url.URL, req scanner.Request, fetchedAt time.Time) (domain.FeedItem, bool) {
	anchor := sel.Find(req.Option("link", "a")).First()
	if anchor.Length() == 0 && sel.Is("a") {
		anchor = sel
	}
	href, exists := anchor.Attr(req.Option("link_attr", "href"))
	if !exists || strings.TrimSpace(href) == "" {
		return domain.FeedItem{}, false
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return domain.FeedItem{}, false
	}
	link := base.ResolveReference(ref).String()

	title := anchor.Text()
	if titleSel := req.Option("title", ""); titleSel != "" {
		if t := sel.Find(titleSel).First(); t.Length() > 0 {
			title = t.Text()
		}
	}

	publishedAt := fetchedAt
	if timeSel := req.Option("time", ""); timeSel != "" {
		node := sel.Find(timeSel).First()
		raw, ok := node.Attr(req.Option("time_attr", "datetime"))
		if !ok {
			raw = node.Text()
		}
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(raw)); err == nil {
			publishedAt = parsed
		}
	}

	return newItem(req.Source, title, link, "", publishedAt)
}
