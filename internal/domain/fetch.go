package domain

import "time"

// FetchResult is the outcome of fetching one source. A failed fetch is a
// regular value (ParseFailed) rather than an error unwound through the run.
type FetchResult struct {
	Source    string
	Items     []FeedItem
	Err       error
	FromCache bool
	Elapsed   time.Duration
}

// Parsed builds a successful result.
func Parsed(source string, items []FeedItem) FetchResult {
	return FetchResult{Source: source, Items: items}
}

// ParseFailed builds a failed result; the source contributes zero items.
func ParseFailed(source string, err error) FetchResult {
	return FetchResult{Source: source, Err: &SourceFetchError{Source: source, Err: err}}
}

// Failed reports whether the source could not be fetched or parsed.
func (r FetchResult) Failed() bool {
	return r.Err != nil
}
