package interfaces

import (
	"context"

	"github.com/bobmcallan/navsync/internal/models"
)

// NavService runs the NAV ingestion pipeline and serves NAV reads.
type NavService interface {
	// Run fetches the feed, reconciles it with holdings and persists the result.
	Run(ctx context.Context, trigger string) (*models.RunResult, error)

	// LookupSchemes returns the live feed records for the given scheme codes.
	LookupSchemes(ctx context.Context, codes []string) (*models.SchemeLookup, error)

	GetSnapshot(ctx context.Context, schemeCode string) (*models.NavSnapshot, error)
	GetHistory(ctx context.Context, q models.HistoryQuery) ([]models.NavHistoryEntry, error)

	// PortfolioChanges returns day-over-day changes for every scheme held.
	PortfolioChanges(ctx context.Context, from, to string) ([]models.DailyChange, error)
}
