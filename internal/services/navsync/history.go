package navsync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/models"
)

// GetSnapshot returns the latest stored NAV for a scheme.
func (s *Service) GetSnapshot(ctx context.Context, schemeCode string) (*models.NavSnapshot, error) {
	return s.storage.NavDataStore().GetSnapshot(ctx, strings.TrimSpace(schemeCode))
}

// GetHistory returns stored history entries matching q, newest first.
func (s *Service) GetHistory(ctx context.Context, q models.HistoryQuery) ([]models.NavHistoryEntry, error) {
	nq, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	return s.storage.NavDataStore().QueryHistory(ctx, nq)
}

// PortfolioChanges returns day-over-day changes for every scheme any holding
// references, within [from, to].
func (s *Service) PortfolioChanges(ctx context.Context, from, to string) ([]models.DailyChange, error) {
	holdings, err := s.storage.HoldingStore().ListHoldingRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	seen := make(map[string]struct{})
	var codes []string
	for _, h := range holdings {
		code := strings.TrimSpace(h.SchemeCode)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return []models.DailyChange{}, nil
	}
	sort.Strings(codes)

	entries, err := s.GetHistory(ctx, models.HistoryQuery{From: from, To: to, SchemeCodes: codes})
	if err != nil {
		return nil, err
	}
	return DailyChanges(entries), nil
}

func normalizeQuery(q models.HistoryQuery) (models.HistoryQuery, error) {
	out := models.HistoryQuery{}
	if strings.TrimSpace(q.From) != "" {
		d, ok := common.NormalizeDate(q.From)
		if !ok {
			return out, fmt.Errorf("%w: from %q is not a date", ErrInvalidQuery, q.From)
		}
		out.From = d
	}
	if strings.TrimSpace(q.To) != "" {
		d, ok := common.NormalizeDate(q.To)
		if !ok {
			return out, fmt.Errorf("%w: to %q is not a date", ErrInvalidQuery, q.To)
		}
		out.To = d
	}
	if out.From != "" && out.To != "" && out.From > out.To {
		return out, fmt.Errorf("%w: from %s is after to %s", ErrInvalidQuery, out.From, out.To)
	}
	for _, c := range q.SchemeCodes {
		if c = strings.TrimSpace(c); c != "" {
			out.SchemeCodes = append(out.SchemeCodes, c)
		}
	}
	return out, nil
}

var hundred = decimal.NewFromInt(100)

// DailyChanges computes the change between consecutive entries of each scheme.
// Entries are grouped by scheme and ordered by date; a pair whose previous NAV
// is zero is skipped. Amounts and percentages are rounded to 2 places and the
// result is ordered newest first, then by scheme code.
func DailyChanges(entries []models.NavHistoryEntry) []models.DailyChange {
	byScheme := make(map[string][]models.NavHistoryEntry)
	for _, e := range entries {
		byScheme[e.SchemeCode] = append(byScheme[e.SchemeCode], e)
	}

	changes := []models.DailyChange{}
	for _, series := range byScheme {
		sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })

		for i := 1; i < len(series); i++ {
			prev, cur := series[i-1], series[i]
			if prev.NAV == 0 {
				continue
			}
			prevNav := decimal.NewFromFloat(prev.NAV)
			curNav := decimal.NewFromFloat(cur.NAV)
			diff := curNav.Sub(prevNav)

			changes = append(changes, models.DailyChange{
				SchemeCode:    cur.SchemeCode,
				SchemeName:    cur.SchemeName,
				Date:          cur.Date,
				Year:          cur.Year,
				Month:         cur.Month,
				YearMonth:     cur.YearMonth,
				CurrentNav:    cur.NAV,
				PreviousNav:   prev.NAV,
				ChangeAmount:  diff.Round(2).InexactFloat64(),
				ChangePercent: diff.Div(prevNav).Mul(hundred).Round(2).InexactFloat64(),
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Date != changes[j].Date {
			return changes[i].Date > changes[j].Date
		}
		return changes[i].SchemeCode < changes[j].SchemeCode
	})
	return changes
}
