package navsync

import (
	"sort"
	"strings"

	"github.com/bobmcallan/navsync/internal/models"
)

// Reconcile matches holdings to feed records by exact scheme code.
//
// Each matched code yields one NavUpdate no matter how many holdings share it;
// Holdings keeps every holding so each document still gets its cache
// refreshed. Holdings with no feed match are reported in Unmatched and left
// alone. There is no name or ISIN fallback.
func Reconcile(records map[string]models.FeedRecord, holdings []models.HoldingRef) *models.WriteSet {
	ws := &models.WriteSet{
		Updates:   []models.NavUpdate{},
		Holdings:  make(map[string][]models.HoldingRef),
		Unmatched: []string{},
	}

	unmatched := make(map[string]struct{})
	for _, h := range holdings {
		code := strings.TrimSpace(h.SchemeCode)
		if code == "" {
			continue
		}
		ws.HoldingsConsidered++

		if _, ok := records[code]; !ok {
			unmatched[code] = struct{}{}
			continue
		}
		ws.Holdings[code] = append(ws.Holdings[code], h)
	}

	for code := range ws.Holdings {
		rec := records[code]
		ws.Updates = append(ws.Updates, models.NavUpdate{
			SchemeCode: code,
			SchemeName: rec.SchemeName,
			NAV:        rec.NAV.InexactFloat64(),
			Date:       rec.Date,
		})
	}
	sort.Slice(ws.Updates, func(i, j int) bool {
		return ws.Updates[i].SchemeCode < ws.Updates[j].SchemeCode
	})

	for code := range unmatched {
		ws.Unmatched = append(ws.Unmatched, code)
	}
	sort.Strings(ws.Unmatched)

	return ws
}
