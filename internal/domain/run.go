package domain

import "time"

// DeliveryOutcome enumerates how a run's digest left the process.
type DeliveryOutcome string

const (
	OutcomeDelivered       DeliveryOutcome = "delivered"
	OutcomeFallbackWritten DeliveryOutcome = "fallback_written"
	OutcomeFailed          DeliveryOutcome = "failed"
)

// RunRecord is the append-only audit entry written once per run.
type RunRecord struct {
	RunID           string            `json:"run_id"`
	RunTimestamp    time.Time         `json:"run_timestamp"`
	SourcesFetched  map[string]int    `json:"sources_fetched"`
	SourceErrors    map[string]string `json:"source_errors,omitempty"`
	ItemsSelected   []ScoredItem      `json:"items_selected"`
	DeliveryOutcome DeliveryOutcome   `json:"delivery_outcome"`
	FallbackPath    string            `json:"fallback_path,omitempty"`
	DeliveryError   string            `json:"delivery_error,omitempty"`
	LedgerCommitted bool              `json:"ledger_committed"`
	Pruned          int64             `json:"pruned"`
	Error           string            `json:"error,omitempty"`
}

// DeliveryResult is what the delivery sink reports for one attempt.
type DeliveryResult struct {
	Outcome      DeliveryOutcome
	FallbackPath string
	// Err is the webhook failure that caused a fallback, if any.
	Err error
}
