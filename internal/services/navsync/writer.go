package navsync

import (
	"context"
	"time"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
	"github.com/bobmcallan/navsync/internal/metrics"
	"github.com/bobmcallan/navsync/internal/models"
)

// Writer persists a reconciled write set.
type Writer struct {
	holdings interfaces.HoldingStore
	navData  interfaces.NavDataStore
	logger   *common.Logger
	now      func() time.Time
}

// NewWriter creates a writer over the given stores.
func NewWriter(holdings interfaces.HoldingStore, navData interfaces.NavDataStore, logger *common.Logger) *Writer {
	return &Writer{
		holdings: holdings,
		navData:  navData,
		logger:   logger,
		now:      time.Now,
	}
}

// Apply writes ws in three steps:
//
//  1. one atomic batch refreshing the cached NAV on every matched holding
//  2. a snapshot merge per scheme
//  3. a history merge per scheme
//
// A failed batch aborts the run with a StageError. Snapshot and history
// failures are logged per scheme and the loop moves on; they never undo the
// batch. Schemes whose date cannot be normalized are skipped everywhere.
func (w *Writer) Apply(ctx context.Context, ws *models.WriteSet) (*models.WriteReport, error) {
	report := &models.WriteReport{
		SkippedSchemes:   []string{},
		SnapshotFailures: []string{},
		HistoryFailures:  []string{},
	}
	if ws == nil || len(ws.Updates) == 0 {
		return report, nil
	}

	now := w.now()

	ready := make([]models.NavUpdate, 0, len(ws.Updates))
	for _, u := range ws.Updates {
		date, ok := common.NormalizeDate(u.Date)
		if !ok {
			w.logger.Warn().Str("scheme_code", u.SchemeCode).Str("raw_date", u.Date).Msg("Skipping scheme: NAV date could not be normalized")
			report.SkippedSchemes = append(report.SkippedSchemes, u.SchemeCode)
			continue
		}
		u.Date = date
		ready = append(ready, u)
	}

	batch := make([]models.HoldingNAVUpdate, 0, ws.HoldingCount())
	for _, u := range ready {
		for _, h := range ws.Holdings[u.SchemeCode] {
			batch = append(batch, models.HoldingNAVUpdate{
				HoldingID:      h.ID,
				HoldingKey:     h.Key,
				SchemeCode:     u.SchemeCode,
				CurrentNAV:     u.NAV,
				CurrentNAVDate: u.Date,
				UpdatedAt:      now,
			})
		}
	}

	if len(batch) > 0 {
		updated, err := w.holdings.ApplyNAVUpdates(ctx, batch)
		if err != nil {
			w.logger.Error().Err(err).Int("holdings", len(batch)).Msg("Holding NAV batch failed")
			return report, &StageError{Stage: StageHoldings, Err: err}
		}
		if updated < len(batch) {
			w.logger.Warn().Int("holdings", len(batch)).Int("updated", updated).Msg("Some holdings vanished before the NAV batch")
		}
		report.HoldingsUpdated = updated
		metrics.HoldingsUpdated.Add(float64(updated))
	}

	for _, u := range ready {
		snap := &models.NavSnapshot{
			SchemeCode:  u.SchemeCode,
			SchemeName:  u.SchemeName,
			CurrentNAV:  u.NAV,
			NavDate:     u.Date,
			LastUpdated: now,
		}
		if err := w.navData.MergeSnapshot(ctx, snap); err != nil {
			w.logger.Warn().Err(err).Str("scheme_code", u.SchemeCode).Msg("NAV snapshot write failed")
			report.SnapshotFailures = append(report.SnapshotFailures, u.SchemeCode)
			metrics.WriteFailures.WithLabelValues("nav_data").Inc()
			continue
		}
		report.SnapshotsWritten++
	}

	for _, u := range ready {
		entry, err := models.NewNavHistoryEntry(u.SchemeCode, u.SchemeName, u.NAV, u.Date)
		if err == nil {
			entry.CreatedAt = now
			err = w.navData.MergeHistory(ctx, entry)
		}
		if err != nil {
			w.logger.Warn().Err(err).Str("scheme_code", u.SchemeCode).Str("date", u.Date).Msg("NAV history write failed")
			report.HistoryFailures = append(report.HistoryFailures, u.SchemeCode)
			metrics.WriteFailures.WithLabelValues("nav_history").Inc()
			continue
		}
		report.HistoryWritten++
	}

	return report, nil
}
