// Package interfaces defines service contracts for navsync
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/navsync/internal/models"
)

// ErrNotFound is returned by stores when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// StorageManager exposes the document collections the pipeline reads and writes.
type StorageManager interface {
	HoldingStore() HoldingStore
	NavDataStore() NavDataStore
	Close() error
}

// HoldingStore reads holdings and refreshes their cached NAV fields.
// Holdings are created and edited elsewhere; this store never touches
// transactional fields.
type HoldingStore interface {
	// ListHoldingRefs returns every holding that carries a scheme code.
	ListHoldingRefs(ctx context.Context) ([]models.HoldingRef, error)

	// ApplyNAVUpdates commits all updates as one atomic batch: either every
	// holding is updated or none is and an error is returned. The count is the
	// number of holdings that still existed and were written.
	ApplyNAVUpdates(ctx context.Context, updates []models.HoldingNAVUpdate) (int, error)
}

// NavDataStore holds the per-scheme NAV snapshot and the daily history ledger.
// Every write is a merge-upsert touching only the fields it names.
type NavDataStore interface {
	MergeSnapshot(ctx context.Context, snap *models.NavSnapshot) error
	GetSnapshot(ctx context.Context, schemeCode string) (*models.NavSnapshot, error)

	// MergeHistory upserts the entry keyed by HistoryKey(SchemeCode, Date).
	// CreatedAt is set on first write only.
	MergeHistory(ctx context.Context, entry *models.NavHistoryEntry) error
	GetHistoryEntry(ctx context.Context, schemeCode, date string) (*models.NavHistoryEntry, error)

	// QueryHistory returns entries ordered by date desc, then scheme code.
	QueryHistory(ctx context.Context, q models.HistoryQuery) ([]models.NavHistoryEntry, error)
}

// RunLock is a best-effort distributed mutex with a TTL.
type RunLock interface {
	// Acquire takes the named lock for owner. It returns false without error
	// when another owner holds an unexpired lock.
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	// Release drops the lock only if owner still holds it.
	Release(ctx context.Context, name, owner string) error
}
