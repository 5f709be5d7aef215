// Package navsync runs the AMFI NAV ingestion pipeline: fetch, parse,
// reconcile against holdings, persist.
package navsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/navsync/internal/clients/amfi"
	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
	"github.com/bobmcallan/navsync/internal/metrics"
	"github.com/bobmcallan/navsync/internal/models"
)

const (
	// LockName is the run lock shared by the manual and scheduled triggers.
	LockName = "nav_update"

	DefaultLockTTL = 10 * time.Minute

	lockReleaseTimeout = 10 * time.Second
)

// Service implements NavService
type Service struct {
	feed    interfaces.FeedClient
	storage interfaces.StorageManager
	lock    interfaces.RunLock
	lockTTL time.Duration
	writer  *Writer
	logger  *common.Logger
	now     func() time.Time // injectable clock for testing
}

// Option configures the service
type Option func(*Service)

// WithRunLock serialises runs across triggers and processes.
func WithRunLock(lock interfaces.RunLock, ttl time.Duration) Option {
	return func(s *Service) {
		s.lock = lock
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new NAV ingestion service.
func NewService(feed interfaces.FeedClient, storage interfaces.StorageManager, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		feed:    feed,
		storage: storage,
		lockTTL: DefaultLockTTL,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.writer = NewWriter(storage.HoldingStore(), storage.NavDataStore(), logger)
	s.writer.now = s.now
	return s
}

// Run executes one pipeline pass. The returned result is always non-nil; on
// failure Success is false and the error says which stage failed.
func (s *Service) Run(ctx context.Context, trigger string) (*models.RunResult, error) {
	start := s.now()
	runID := uuid.New().String()[:8]
	log := s.logger.With().Str("run_id", runID).Str("trigger", trigger).Logger()

	result := &models.RunResult{
		RunID:                runID,
		Trigger:              trigger,
		UnmatchedSchemeCodes: []string{},
		Timestamp:            start,
	}

	finish := func(outcome string) {
		elapsed := s.now().Sub(start)
		result.DurationMS = elapsed.Milliseconds()
		metrics.RunsTotal.WithLabelValues(trigger, outcome).Inc()
		metrics.RunDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
	}
	fail := func(err error) (*models.RunResult, error) {
		result.Success = false
		result.Message = err.Error()
		finish(metrics.OutcomeFailure)
		log.Error().Err(err).Str("stage", StageOf(err)).Int64("duration_ms", result.DurationMS).Msg("NAV update failed")
		return result, err
	}

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, LockName, runID, s.lockTTL)
		if err != nil {
			return fail(&StageError{Stage: StageLock, Err: err})
		}
		if !acquired {
			result.Message = ErrRunInProgress.Error()
			finish(metrics.OutcomeSkipped)
			log.Info().Msg("NAV update skipped: another run holds the lock")
			return result, ErrRunInProgress
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
			defer cancel()
			if err := s.lock.Release(rctx, LockName, runID); err != nil {
				log.Warn().Err(err).Msg("Failed to release run lock")
			}
		}()
	}

	log.Info().Msg("NAV update started")

	body, err := s.feed.FetchNAVAll(ctx)
	if err != nil {
		return fail(&StageError{Stage: StageFetch, Err: err})
	}

	parsed := amfi.Parse(body)
	recordParseMetrics(parsed.Stats, len(parsed.Records))
	result.TotalSchemesFetched = len(parsed.Records)
	if len(parsed.Records) == 0 {
		log.Error().Int("lines", parsed.Stats.Lines).Int("data_rows", parsed.Stats.DataRows).Msg("Feed parsed zero schemes; the feed layout may have changed")
		return fail(&StageError{Stage: StageParse, Err: ErrNoSchemesParsed})
	}
	log.Info().Int("schemes", len(parsed.Records)).Int("dropped", parsed.Stats.Dropped()).Msg("Feed parsed")

	holdings, err := s.storage.HoldingStore().ListHoldingRefs(ctx)
	if err != nil {
		return fail(&StageError{Stage: StageLoadHoldings, Err: err})
	}

	ws := Reconcile(parsed.Records, holdings)
	result.MatchedSchemes = len(ws.Updates)
	result.UnmatchedSchemeCodes = ws.Unmatched
	if len(ws.Unmatched) > 0 {
		log.Warn().Strs("scheme_codes", ws.Unmatched).Msg("Holdings reference scheme codes absent from the feed")
	}

	report, err := s.writer.Apply(ctx, ws)
	if report != nil {
		result.SkippedSchemeCodes = report.SkippedSchemes
		result.SnapshotsWritten = report.SnapshotsWritten
		result.SnapshotFailures = report.SnapshotFailures
		result.HistoryWritten = report.HistoryWritten
		result.HistoryFailures = report.HistoryFailures
	}
	if err != nil {
		return fail(err)
	}

	result.Success = true
	result.UpdatedCount = report.HoldingsUpdated
	result.Message = fmt.Sprintf("Updated %d investments across %d schemes", report.HoldingsUpdated, result.MatchedSchemes-len(report.SkippedSchemes))
	finish(metrics.OutcomeSuccess)

	log.Info().
		Int("updated", result.UpdatedCount).
		Int("matched", result.MatchedSchemes).
		Int("unmatched", len(result.UnmatchedSchemeCodes)).
		Int("history_failures", len(result.HistoryFailures)).
		Int64("duration_ms", result.DurationMS).
		Msg("NAV update completed")

	return result, nil
}

func recordParseMetrics(stats amfi.ParseStats, schemes int) {
	metrics.SchemesParsed.Set(float64(schemes))
	metrics.FeedRowsDropped.WithLabelValues(amfi.DropMalformed).Add(float64(stats.DroppedMalformed))
	metrics.FeedRowsDropped.WithLabelValues(amfi.DropNAV).Add(float64(stats.DroppedNAV))
	metrics.FeedRowsDropped.WithLabelValues(amfi.DropDate).Add(float64(stats.DroppedDate))
}

// Ensure Service implements NavService
var _ interfaces.NavService = (*Service)(nil)
