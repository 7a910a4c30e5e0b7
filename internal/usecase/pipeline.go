package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"FeedDigest/internal/digest"
	"FeedDigest/internal/domain"
	"FeedDigest/internal/logging"
	"FeedDigest/internal/ports"
	"FeedDigest/internal/ranking"
)

// emptyStreakWarn is the number of consecutive empty fetches after which a
// source is reported as probably broken.
const emptyStreakWarn = 3

// Stage names the step a run is currently in.
type Stage int

const (
	StageIdle Stage = iota
	StageFetching
	StageDeduping
	StageRanking
	StageComposing
	StageDelivering
	StageRecording
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageFetching:
		return "fetching"
	case StageDeduping:
		return "deduping"
	case StageRanking:
		return "ranking"
	case StageComposing:
		return "composing"
	case StageDelivering:
		return "delivering"
	case StageRecording:
		return "recording"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source       ports.FeedSource
	Ledger       ports.Ledger
	Health       ports.SourceHealth
	Deliverer    ports.Deliverer
	Recorder     ports.RunRecorder
	Rules        ranking.Rules
	PerSourceCap int
	TotalCap     int
	Digest       digest.Options
	Retention    time.Duration
	Logger       *slog.Logger
	NewID        func() string
}

// Pipeline runs fetch, dedup, rank, compose, deliver and record in order.
type Pipeline struct {
	source       ports.FeedSource
	ledger       ports.Ledger
	health       ports.SourceHealth
	deliverer    ports.Deliverer
	recorder     ports.RunRecorder
	rules        ranking.Rules
	perSourceCap int
	totalCap     int
	digest       digest.Options
	retention    time.Duration
	logger       *slog.Logger
	newID        func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Pipeline{
		source:       deps.Source,
		ledger:       deps.Ledger,
		health:       deps.Health,
		deliverer:    deps.Deliverer,
		recorder:     deps.Recorder,
		rules:        deps.Rules,
		perSourceCap: deps.PerSourceCap,
		totalCap:     deps.TotalCap,
		digest:       deps.Digest,
		retention:    deps.Retention,
		logger:       logger,
		newID:        newID,
	}
}

// RunOnce executes one full pass stamped with now. Source and webhook
// failures are captured in the returned record. The error is non-nil only
// when the digest reached neither delivery channel (*domain.FallbackWriteError)
// or the ledger could not be read (*domain.LedgerError).
func (p *Pipeline) RunOnce(ctx context.Context, now time.Time) (domain.RunRecord, error) {
	record := domain.RunRecord{
		RunID:          p.newID(),
		RunTimestamp:   now,
		SourcesFetched: map[string]int{},
		ItemsSelected:  []domain.ScoredItem{},
	}
	log := p.logger.With("run_id", record.RunID)

	p.enter(log, StageFetching)
	items, counts := p.fetch(ctx, log, now, &record)

	p.enter(log, StageDeduping)
	unseen, err := p.filterUnseen(ctx, items)
	if err != nil {
		log.Error("ledger lookup failed, skipping delivery", "error", err)
		record.DeliveryOutcome = domain.OutcomeFailed
		record.Error = err.Error()
		return p.finish(ctx, log, record, err)
	}
	log.Info("dedup complete", "fetched", len(items), "unseen", len(unseen))

	p.enter(log, StageRanking)
	selected := ranking.RankAndSelect(unseen, p.rules, p.perSourceCap, p.totalCap)
	record.ItemsSelected = selected

	p.enter(log, StageComposing)
	payload := digest.Compose(selected, now, counts, p.digest)

	p.enter(log, StageDelivering)
	result, err := p.deliverer.Deliver(ctx, payload)
	record.DeliveryOutcome = result.Outcome
	record.FallbackPath = result.FallbackPath
	if result.Err != nil {
		record.DeliveryError = result.Err.Error()
	}
	if err != nil {
		record.DeliveryOutcome = domain.OutcomeFailed
		record.Error = err.Error()
		return p.finish(ctx, log, record, err)
	}

	p.commit(ctx, log, selected, now, &record)
	return p.finish(ctx, log, record, nil)
}

func (p *Pipeline) fetch(ctx context.Context, log *slog.Logger, now time.Time, record *domain.RunRecord) ([]domain.FeedItem, []domain.SourceCount) {
	results := p.source.FetchAll(ctx)

	var items []domain.FeedItem
	counts := make([]domain.SourceCount, 0, len(results))
	for _, res := range results {
		counts = append(counts, domain.SourceCount{Source: res.Source, Count: len(res.Items)})
		record.SourcesFetched[res.Source] = len(res.Items)
		if res.Failed() {
			if record.SourceErrors == nil {
				record.SourceErrors = map[string]string{}
			}
			record.SourceErrors[res.Source] = res.Err.Error()
			log.Warn("source fetch failed", "source", res.Source, "error", res.Err)
		}
		items = append(items, res.Items...)
		p.trackHealth(ctx, log, res.Source, len(res.Items), now)
	}
	return items, counts
}

func (p *Pipeline) trackHealth(ctx context.Context, log *slog.Logger, source string, count int, now time.Time) {
	if p.health == nil {
		return
	}
	streak, err := p.health.RecordFetch(ctx, source, count, now)
	if err != nil {
		log.Warn("record source health", "source", source, "error", err)
		return
	}
	if streak >= emptyStreakWarn {
		log.Warn("source returned no items repeatedly", "source", source, "empty_runs", streak)
	}
}

func (p *Pipeline) filterUnseen(ctx context.Context, items []domain.FeedItem) ([]domain.FeedItem, error) {
	if p.ledger == nil {
		return items, nil
	}
	unseen, err := p.ledger.FilterUnseen(ctx, items)
	if err != nil {
		return nil, ledgerError("filter", err)
	}
	return unseen, nil
}

// commit records the selection and prunes old ids. Failures here leave the
// digest delivered but may re-notify the same items next run.
func (p *Pipeline) commit(ctx context.Context, log *slog.Logger, selected []domain.ScoredItem, now time.Time, record *domain.RunRecord) {
	if p.ledger == nil {
		return
	}
	items := lo.Map(selected, func(s domain.ScoredItem, _ int) domain.FeedItem { return s.FeedItem })
	if err := p.ledger.Commit(ctx, items, now); err != nil {
		log.Error("ledger commit failed", "error", ledgerError("commit", err))
		return
	}
	record.LedgerCommitted = true
	log.Info("ledger committed", "items", len(items))

	if p.retention <= 0 {
		return
	}
	pruned, err := p.ledger.Prune(ctx, p.retention, now)
	if err != nil {
		log.Warn("ledger prune failed", "error", ledgerError("prune", err))
		return
	}
	record.Pruned = pruned
	if pruned > 0 {
		log.Info("ledger pruned", "removed", pruned)
	}
}

func (p *Pipeline) finish(ctx context.Context, log *slog.Logger, record domain.RunRecord, runErr error) (domain.RunRecord, error) {
	p.enter(log, StageRecording)
	if p.recorder != nil {
		path, err := p.recorder.WriteRecord(context.WithoutCancel(ctx), record)
		if err != nil {
			log.Error("write run record", "error", err)
		} else {
			log.Debug("run record written", "path", path)
		}
	}

	log.Info("run finished",
		"outcome", record.DeliveryOutcome,
		"selected", len(record.ItemsSelected),
		"source_errors", len(record.SourceErrors),
	)
	p.enter(log, StageIdle)
	return record, runErr
}

func (p *Pipeline) enter(log *slog.Logger, stage Stage) {
	log.Debug("stage", "stage", stage.String())
}

func ledgerError(op string, err error) error {
	var lerr *domain.LedgerError
	if errors.As(err, &lerr) {
		return err
	}
	return &domain.LedgerError{Op: op, Err: err}
}
