package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
	"github.com/bobmcallan/navsync/internal/models"
)

const historySelectFields = "schemeCode, schemeName, nav, date, year, month, yearMonth, createdAt"

// NavStore holds nav_data snapshots and the nav_history ledger.
//
// nav_data ID format: nav_data:<schemeCode>
// nav_history ID format: nav_history:<schemeCode>_<YYYY-MM-DD>
type NavStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewNavStore(db *surrealdb.DB, logger *common.Logger) *NavStore {
	return &NavStore{
		db:     db,
		logger: logger,
	}
}

// MergeSnapshot upserts the snapshot fields, leaving any other fields intact.
func (s *NavStore) MergeSnapshot(ctx context.Context, snap *models.NavSnapshot) error {
	sql := "UPSERT type::record('nav_data', $id) MERGE $data"
	vars := map[string]any{
		"id": snap.SchemeCode,
		"data": map[string]any{
			"schemeCode":  snap.SchemeCode,
			"schemeName":  snap.SchemeName,
			"currentNAV":  snap.CurrentNAV,
			"navDate":     snap.NavDate,
			"lastUpdated": snap.LastUpdated,
		},
	}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[any](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save NAV snapshot after retries: %w", err)
		}
	}
	return nil
}

func (s *NavStore) GetSnapshot(ctx context.Context, schemeCode string) (*models.NavSnapshot, error) {
	sql := "SELECT schemeCode, schemeName, currentNAV, navDate, lastUpdated FROM $rid"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(tableNavData, schemeCode),
	}

	results, err := surrealdb.Query[[]models.NavSnapshot](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get NAV snapshot: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// MergeHistory upserts one history entry. createdAt is kept from the first
// write, so rewriting an identical entry leaves the record unchanged and a
// different NAV overwrites in place.
func (s *NavStore) MergeHistory(ctx context.Context, entry *models.NavHistoryEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	sql := `UPSERT type::record('nav_history', $id) SET
		schemeCode = $schemeCode, schemeName = $schemeName, nav = $nav,
		date = $date, year = $year, month = $month, yearMonth = $yearMonth,
		createdAt = createdAt ?? $createdAt`
	vars := map[string]any{
		"id":         models.HistoryKey(entry.SchemeCode, entry.Date),
		"schemeCode": entry.SchemeCode,
		"schemeName": entry.SchemeName,
		"nav":        entry.NAV,
		"date":       entry.Date,
		"year":       entry.Year,
		"month":      entry.Month,
		"yearMonth":  entry.YearMonth,
		"createdAt":  createdAt,
	}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[any](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save NAV history after retries: %w", err)
		}
	}
	return nil
}

func (s *NavStore) GetHistoryEntry(ctx context.Context, schemeCode, date string) (*models.NavHistoryEntry, error) {
	sql := "SELECT " + historySelectFields + " FROM $rid"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(tableNavHistory, models.HistoryKey(schemeCode, date)),
	}

	results, err := surrealdb.Query[[]models.NavHistoryEntry](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get NAV history entry: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// QueryHistory returns entries within the inclusive date range for the given
// schemes, newest first.
func (s *NavStore) QueryHistory(ctx context.Context, q models.HistoryQuery) ([]models.NavHistoryEntry, error) {
	where := ""
	vars := map[string]any{}

	if q.From != "" {
		where += " AND date >= $from"
		vars["from"] = q.From
	}
	if q.To != "" {
		where += " AND date <= $to"
		vars["to"] = q.To
	}
	if len(q.SchemeCodes) > 0 {
		where += " AND schemeCode IN $codes"
		vars["codes"] = q.SchemeCodes
	}

	// Strip leading " AND "
	whereClause := ""
	if where != "" {
		whereClause = " WHERE " + where[5:]
	}

	sql := "SELECT " + historySelectFields + " FROM nav_history" + whereClause + " ORDER BY date DESC, schemeCode ASC"

	results, err := surrealdb.Query[[]models.NavHistoryEntry](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query NAV history: %w", err)
	}

	entries := make([]models.NavHistoryEntry, 0)
	if results != nil && len(*results) > 0 {
		entries = append(entries, (*results)[0].Result...)
	}
	return entries, nil
}

var _ interfaces.NavDataStore = (*NavStore)(nil)
