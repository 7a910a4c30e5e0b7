package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedDigest/internal/config"
	"FeedDigest/internal/domain"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitOK, exitCode(context.Canceled))
	assert.Equal(t, exitConfigError, exitCode(&config.ConfigError{Field: "schedule.push_time", Reason: "bad"}))
	assert.Equal(t, exitConfigError, exitCode(fmt.Errorf("load: %w", &config.ConfigError{Field: "x"})))
	assert.Equal(t, exitRunFailure, exitCode(&domain.FallbackWriteError{Err: errors.New("disk full")}))
}

func TestRenderRunSummary(t *testing.T) {
	t.Parallel()

	record := domain.RunRecord{
		RunID:          "abc",
		RunTimestamp:   time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC),
		SourcesFetched: map[string]int{"golang": 5, "rust": 0},
		SourceErrors:   map[string]string{"rust": "source rust: timeout"},
		ItemsSelected: []domain.ScoredItem{
			{FeedItem: domain.FeedItem{Source: "golang"}},
			{FeedItem: domain.FeedItem{Source: "golang"}},
		},
		DeliveryOutcome: domain.OutcomeFallbackWritten,
		FallbackPath:    "data/fallback/digest.json",
	}

	out := renderRunSummary(record)
	assert.Contains(t, out, "golang")
	assert.Contains(t, out, "source rust: timeout")
	assert.Contains(t, out, "Selected 2 items, delivery fallback_written (data/fallback/digest.json)")
	assert.Less(t, strings.Index(out, "golang"), strings.Index(out, "rust"))
}

func TestRenderCheckResults(t *testing.T) {
	t.Parallel()

	out := renderCheckResults([]domain.FetchResult{
		domain.Parsed("golang", []domain.FeedItem{{ID: "1"}}),
		domain.ParseFailed("nope", domain.ErrSourceNotAllowed),
	})
	assert.Contains(t, out, "golang")
	assert.Contains(t, out, domain.ErrSourceNotAllowed.Error())
}

func TestConfigErrorSurfacesFromCommand(t *testing.T) {
	t.Setenv("FEED_DIGEST_CONFIG", "")
	t.Setenv("FEISHU_WEBHOOK_URL", "")
	t.Setenv("FEED_DIGEST_DATA_DIR", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  push_time: \"noon\"\n"), 0o644))

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", path, "crontab"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, exitConfigError, exitCode(err))
}

func TestCrontabCommand(t *testing.T) {
	t.Setenv("FEED_DIGEST_CONFIG", "")
	t.Setenv("FEISHU_WEBHOOK_URL", "")
	dir := t.TempDir()
	t.Setenv("FEED_DIGEST_DATA_DIR", filepath.Join(dir, "data"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  push_time: \"07:30\"\n  timezone: UTC\n"), 0o644))

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "crontab"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "CRON_TZ=UTC", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "30 7 * * * "), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], "once --config "+path), lines[1])
}
