package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/fsutil"
	"FeedDigest/internal/ports"
)

const stampLayout = "20060102_150405.000"

// FallbackStore keeps digests that could not be delivered, in the exact
// shape that would have been sent, so they can be replayed by hand.
type FallbackStore struct {
	dir string
}

var _ ports.FallbackStore = (*FallbackStore)(nil)

// NewFallbackStore writes into dir.
func NewFallbackStore(dir string) *FallbackStore {
	return &FallbackStore{dir: dir}
}

// WritePayload stores body under a name derived from at.
func (s *FallbackStore) WritePayload(ctx context.Context, at time.Time, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return writeUnique(s.dir, "digest", at, body)
}

// RecordStore appends one JSON RunRecord per run.
type RecordStore struct {
	dir string
}

var _ ports.RunRecorder = (*RecordStore)(nil)

// NewRecordStore writes into dir.
func NewRecordStore(dir string) *RecordStore {
	return &RecordStore{dir: dir}
}

// WriteRecord stores the record named by its run timestamp.
func (s *RecordStore) WriteRecord(_ context.Context, record domain.RunRecord) (string, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run record: %w", err)
	}
	return writeUnique(s.dir, "run", record.RunTimestamp, data)
}

// writeUnique never overwrites: a clash on the timestamp gets a numeric suffix.
func writeUnique(dir, prefix string, at time.Time, data []byte) (string, error) {
	stamp := at.UTC().Format(stampLayout)
	content := append(append([]byte(nil), data...), '\n')
	for attempt := 0; attempt < 100; attempt++ {
		name := fmt.Sprintf("%s_%s.json", prefix, stamp)
		if attempt > 0 {
			name = fmt.Sprintf("%s_%s-%d.json", prefix, stamp, attempt)
		}
		path := filepath.Join(dir, name)

		err := fsutil.CreateExclusive(path, content, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return path, err
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s_%s in %s", prefix, stamp, dir)
}
