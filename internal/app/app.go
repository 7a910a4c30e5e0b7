package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gofrs/flock"

	"FeedDigest/internal/config"
	"FeedDigest/internal/delivery"
	"FeedDigest/internal/digest"
	"FeedDigest/internal/domain"
	"FeedDigest/internal/infrastructure/cache"
	"FeedDigest/internal/infrastructure/feishu"
	"FeedDigest/internal/infrastructure/filestore"
	"FeedDigest/internal/infrastructure/parser"
	"FeedDigest/internal/infrastructure/scheduler"
	"FeedDigest/internal/infrastructure/storage"
	"FeedDigest/internal/logging"
	"FeedDigest/internal/ports"
	"FeedDigest/internal/ranking"
	"FeedDigest/internal/scanner"
	"FeedDigest/internal/usecase"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("another run is in progress")

const lockRetry = 500 * time.Millisecond

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	ledger   *storage.SQLiteLedger
	source   *parser.StrategySource
	pipeline *usecase.Pipeline
	trigger  *scheduler.DailyTrigger
	lock     *flock.Flock
	now      func() time.Time
}

// Options override collaborators, mostly for tests.
type Options struct {
	Webhook ports.WebhookSender
	Now     func() time.Time
}

// New builds the runnable application. The caller must Close it.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	client, err := parser.NewHTTPClient(cfg.Fetch.ProxyURL, cfg.Fetch.Timeout)
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewRedditScanner(client, cfg.Fetch.UserAgent))
	registry.Register(parser.NewFeedScanner(client, cfg.Fetch.UserAgent))
	registry.Register(parser.NewHTMLScanner(client, cfg.Fetch.UserAgent))

	var feedCache ports.FeedCache
	if cfg.Fetch.CacheTTL > 0 {
		feedCache = cache.NewFileCache(cfg.Storage.CacheDir())
	}

	source := parser.NewStrategySource(registry, cfg.Sources, parser.SourceOptions{
		Timeout:     cfg.Fetch.Timeout,
		MinInterval: cfg.Fetch.MinInterval,
		Cache:       feedCache,
		CacheTTL:    cfg.Fetch.CacheTTL,
		Now:         now,
	}, baseLogger.With("component", "source"))

	hour, minute := cfg.Schedule.Clock()
	trigger, err := scheduler.NewDailyTrigger(hour, minute, cfg.Schedule.Location())
	if err != nil {
		return nil, fmt.Errorf("build trigger: %w", err)
	}

	ledger, err := storage.OpenSQLiteLedger(ctx, cfg.Storage.LedgerPath())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	webhook := opts.Webhook
	if webhook == nil && cfg.Delivery.WebhookURL != "" {
		webhook = feishu.NewClient(cfg.Delivery.WebhookURL, cfg.Delivery.Timeout)
	}
	sink := delivery.NewSink(
		feishu.Encode,
		webhook,
		filestore.NewFallbackStore(cfg.Storage.FallbackDir()),
		baseLogger.With("component", "delivery"),
	)

	base, positive, negative := cfg.Selection.Weights()
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:       source,
		Ledger:       ledger,
		Health:       ledger,
		Deliverer:    sink,
		Recorder:     filestore.NewRecordStore(cfg.Storage.RecordsDir()),
		Rules:        ranking.NewRules(cfg.Keywords.Positive, cfg.Keywords.Negative, base, positive, negative),
		PerSourceCap: cfg.Selection.PerSourceCapValue(),
		TotalCap:     cfg.Selection.TotalCapValue(),
		Digest: digest.Options{
			Title:    cfg.Delivery.Title,
			TotalCap: cfg.Selection.TotalCapValue(),
			Location: cfg.Schedule.Location(),
		},
		Retention: cfg.Ledger.Retention,
		Logger:    baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		ledger:   ledger,
		source:   source,
		pipeline: pipeline,
		trigger:  trigger,
		lock:     flock.New(cfg.Storage.LockPath()),
		now:      now,
	}, nil
}

// RunOnce executes a single pass. It fails fast with ErrRunInProgress when
// another process is mid-run.
func (a *Application) RunOnce(ctx context.Context) (domain.RunRecord, error) {
	locked, err := a.lock.TryLock()
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return domain.RunRecord{}, ErrRunInProgress
	}
	defer a.unlock()

	return a.pipeline.RunOnce(ctx, a.now())
}

// RunDaemon blocks running the pipeline on schedule until ctx is cancelled.
func (a *Application) RunDaemon(ctx context.Context) error {
	s := usecase.NewScheduler(lockedRunner{app: a}, a.trigger, usecase.SchedulerOptions{
		RunOnStart: a.cfg.Schedule.RunOnStart,
		Logger:     a.logger.With("component", "scheduler"),
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.logger.Warn("sd_notify ready failed", "error", err)
	} else if ok {
		a.logger.Debug("notified systemd")
	}
	defer func() {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	}()

	return s.Run(ctx)
}

// Check fetches the named sources (all when empty) without touching the
// ledger, the cache or the webhook.
func (a *Application) Check(ctx context.Context, names []string) []domain.FetchResult {
	return a.source.Check(ctx, names)
}

// CrontabEntry renders a crontab fragment that invokes the binary once per
// day at the configured push time. The zone goes on its own CRON_TZ line
// because cron treats any NAME= line as an environment assignment.
func (a *Application) CrontabEntry(binary, configPath string) string {
	cmd := binary + " once"
	if configPath != "" {
		cmd += " --config " + configPath
	}
	return fmt.Sprintf("CRON_TZ=%s\n%s %s", a.trigger.Zone(), a.trigger.Spec(), cmd)
}

// Close releases the ledger and the lock file handle.
func (a *Application) Close() error {
	var errs []error
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Close())
	}
	return errors.Join(errs...)
}

func (a *Application) unlock() {
	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn("release run lock", "error", err)
	}
}

// lockedRunner holds the run lock for each scheduled pass, waiting for a
// concurrent run-once to finish instead of failing.
type lockedRunner struct {
	app *Application
}

func (r lockedRunner) RunOnce(ctx context.Context, now time.Time) (domain.RunRecord, error) {
	locked, err := r.app.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return domain.RunRecord{}, ErrRunInProgress
	}
	defer r.app.unlock()

	return r.app.pipeline.RunOnce(ctx, now)
}
