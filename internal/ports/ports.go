package ports

import (
	"context"
	"time"

	"FeedDigest/internal/domain"
)

// FeedSource fetches configured sources into normalized items.
type FeedSource interface {
	FetchAll(ctx context.Context) []domain.FetchResult
}

// Ledger records item identities that were already delivered.
type Ledger interface {
	FilterUnseen(ctx context.Context, items []domain.FeedItem) ([]domain.FeedItem, error)
	Commit(ctx context.Context, items []domain.FeedItem, at time.Time) error
	Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error)
}

// SourceHealth tracks consecutive empty fetches per source.
type SourceHealth interface {
	RecordFetch(ctx context.Context, source string, count int, at time.Time) (int, error)
}

// Deliverer hands a composed digest to the outside world.
type Deliverer interface {
	Deliver(ctx context.Context, payload domain.Payload) (domain.DeliveryResult, error)
}

// WebhookSender posts an encoded message to the chat webhook.
type WebhookSender interface {
	Send(ctx context.Context, body []byte) error
}

// FallbackStore persists an encoded message locally when delivery fails.
type FallbackStore interface {
	WritePayload(ctx context.Context, at time.Time, body []byte) (string, error)
}

// RunRecorder appends one RunRecord per run.
type RunRecorder interface {
	WriteRecord(ctx context.Context, record domain.RunRecord) (string, error)
}

// Trigger yields the next scheduled run strictly after the given time.
type Trigger interface {
	Next(after time.Time) time.Time
}

// FeedCache stores the last successful parse of each source.
type FeedCache interface {
	Get(source string, maxAge time.Duration, now time.Time) ([]domain.FeedItem, bool, error)
	Put(source string, items []domain.FeedItem, fetchedAt time.Time) error
}
