package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
	"github.com/bobmcallan/navsync/internal/models"
)

// HoldingStore reads investments and refreshes their cached NAV fields.
type HoldingStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewHoldingStore(db *surrealdb.DB, logger *common.Logger) *HoldingStore {
	return &HoldingStore{
		db:     db,
		logger: logger,
	}
}

type holdingRefRow struct {
	ID         *surrealmodels.RecordID `json:"id"`
	SchemeCode string                  `json:"schemeCode"`
}

// ListHoldingRefs returns the ID and scheme code of every investment that has one.
func (s *HoldingStore) ListHoldingRefs(ctx context.Context) ([]models.HoldingRef, error) {
	sql := "SELECT id, schemeCode FROM investments WHERE schemeCode"

	results, err := surrealdb.Query[[]holdingRefRow](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	refs := make([]models.HoldingRef, 0)
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			if row.ID == nil || strings.TrimSpace(row.SchemeCode) == "" {
				continue
			}
			refs = append(refs, models.HoldingRef{
				ID:         fmt.Sprint(row.ID.ID),
				SchemeCode: row.SchemeCode,
				Key:        row.ID,
			})
		}
	}
	return refs, nil
}

// ApplyNAVUpdates merges the cached NAV fields into every listed investment
// inside one transaction. Only currentNAV, currentNAVDate and navLastUpdated
// are written; investments deleted since listing are left absent and are not
// counted.
func (s *HoldingStore) ApplyNAVUpdates(ctx context.Context, updates []models.HoldingNAVUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	vars := make(map[string]any, len(updates)*2)

	sb.WriteString("BEGIN TRANSACTION;\n")
	for i, u := range updates {
		fmt.Fprintf(&sb, "UPDATE $h%d MERGE $p%d RETURN id;\n", i, i)
		vars[fmt.Sprintf("h%d", i)] = holdingRecordID(u)
		vars[fmt.Sprintf("p%d", i)] = map[string]any{
			"currentNAV":     u.CurrentNAV,
			"currentNAVDate": u.CurrentNAVDate,
			"navLastUpdated": u.UpdatedAt,
		}
	}
	sb.WriteString("COMMIT TRANSACTION;")

	results, err := surrealdb.Query[[]map[string]any](ctx, s.db, sb.String(), vars)
	if err != nil {
		return 0, fmt.Errorf("failed to apply holding NAV batch: %w", err)
	}
	if err := checkResults(results); err != nil {
		return 0, fmt.Errorf("holding NAV batch rolled back: %w", err)
	}

	updated := 0
	if results != nil {
		for _, r := range *results {
			updated += len(r.Result)
		}
	}

	s.logger.Debug().Int("holdings", len(updates)).Int("updated", updated).Msg("Holding NAV batch committed")
	return updated, nil
}

// holdingRecordID prefers the record ID read from the store, which keeps
// numeric and string keys distinct.
func holdingRecordID(u models.HoldingNAVUpdate) surrealmodels.RecordID {
	switch k := u.HoldingKey.(type) {
	case *surrealmodels.RecordID:
		if k != nil {
			return *k
		}
	case surrealmodels.RecordID:
		return k
	}
	return surrealmodels.NewRecordID(tableInvestments, u.HoldingID)
}

var _ interfaces.HoldingStore = (*HoldingStore)(nil)
