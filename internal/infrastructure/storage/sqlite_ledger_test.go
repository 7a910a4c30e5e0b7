package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedDigest/internal/domain"
)

func openTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()

	ledger, err := OpenSQLiteLedger(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func makeItems(source string, n int) []domain.FeedItem {
	items := make([]domain.FeedItem, 0, n)
	for i := 0; i < n; i++ {
		link := fmt.Sprintf("https://example.org/%s/%d", source, i)
		items = append(items, domain.FeedItem{ID: domain.ItemID(source, link), Title: link, Link: link, Source: source})
	}
	return items
}

func ids(items []domain.FeedItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestFilterUnseenAfterCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := openTestLedger(t)
	items := makeItems("golang", 6)

	first, err := ledger.FilterUnseen(ctx, items)
	require.NoError(t, err)
	require.Len(t, first, 6)

	require.NoError(t, ledger.Commit(ctx, first[:4], time.Now()))

	second, err := ledger.FilterUnseen(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, ids(items[4:]), ids(second))
	for _, id := range ids(first[:4]) {
		assert.NotContains(t, ids(second), id)
	}
}

func TestFilterUnseenPreservesOrderAndDropsDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := openTestLedger(t)
	items := makeItems("rust", 5)
	require.NoError(t, ledger.Commit(ctx, []domain.FeedItem{items[1], items[3]}, time.Now()))

	input := []domain.FeedItem{items[4], items[0], items[1], items[2], items[4], items[3]}
	got, err := ledger.FilterUnseen(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, ids([]domain.FeedItem{items[4], items[0], items[2]}), ids(got))
}

func TestFilterUnseenIsReadOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := openTestLedger(t)
	items := makeItems("python", 3)

	_, err := ledger.FilterUnseen(ctx, items)
	require.NoError(t, err)
	again, err := ledger.FilterUnseen(ctx, items)
	require.NoError(t, err)
	assert.Len(t, again, 3)
}

func TestCommitIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := openTestLedger(t)
	items := makeItems("linux", 2)

	require.NoError(t, ledger.Commit(ctx, items, time.Now()))
	require.NoError(t, ledger.Commit(ctx, items, time.Now()))
	require.NoError(t, ledger.Commit(ctx, nil, time.Now()))

	got, err := ledger.FilterUnseen(ctx, items)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCommitLargeBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := openTestLedger(t)
	items := makeItems("big", 1200)

	require.NoError(t, ledger.Commit(ctx, items, time.Now()))
	got, err := ledger.FilterUnseen(ctx, items)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPruneRespectsRetention(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := openTestLedger(t)
	now := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	retention := 90 * 24 * time.Hour

	old := makeItems("old", 3)
	edge := makeItems("edge", 1)
	fresh := makeItems("fresh", 2)
	require.NoError(t, ledger.Commit(ctx, old, now.Add(-retention-time.Hour)))
	require.NoError(t, ledger.Commit(ctx, edge, now.Add(-retention)))
	require.NoError(t, ledger.Commit(ctx, fresh, now.Add(-time.Hour)))

	removed, err := ledger.Prune(ctx, retention, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	all := append(append(append([]domain.FeedItem{}, old...), edge...), fresh...)
	got, err := ledger.FilterUnseen(ctx, all)
	require.NoError(t, err)
	assert.Equal(t, ids(old), ids(got), "only entries older than the window are pruned")

	_, err = ledger.Prune(ctx, 0, now)
	assert.Error(t, err)
}

func TestPruneConcurrentWithLookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := openTestLedger(t)
	now := time.Now()
	kept := makeItems("kept", 50)
	require.NoError(t, ledger.Commit(ctx, kept, now))
	require.NoError(t, ledger.Commit(ctx, makeItems("stale", 50), now.Add(-200*24*time.Hour)))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			got, err := ledger.FilterUnseen(ctx, kept)
			if err != nil {
				errs <- err
				return
			}
			if len(got) != 0 {
				errs <- fmt.Errorf("kept items reported unseen: %d", len(got))
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := ledger.Prune(ctx, 90*24*time.Hour, now); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestLedgerSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	items := makeItems("persist", 2)

	ledger, err := OpenSQLiteLedger(ctx, path)
	require.NoError(t, err)
	require.NoError(t, ledger.Commit(ctx, items, time.Now()))
	require.NoError(t, ledger.Close())

	reopened, err := OpenSQLiteLedger(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.FilterUnseen(ctx, items)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordFetchStreak(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := openTestLedger(t)
	now := time.Now()

	for want := 1; want <= 3; want++ {
		streak, err := ledger.RecordFetch(ctx, "quiet", 0, now)
		require.NoError(t, err)
		assert.Equal(t, want, streak)
	}

	streak, err := ledger.RecordFetch(ctx, "quiet", 4, now)
	require.NoError(t, err)
	assert.Equal(t, 0, streak)
}
