package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
)

// LockStore is a TTL run lock kept as a sentinel record in run_lock.
//
// run_lock ID format: run_lock:<name>
type LockStore struct {
	db     *surrealdb.DB
	logger *common.Logger
	now    func() time.Time
}

func NewLockStore(db *surrealdb.DB, logger *common.Logger) *LockStore {
	return &LockStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

type lockRecord struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Acquire creates the sentinel, or takes it over when it has expired or is
// already held by owner.
func (s *LockStore) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := s.now()
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID(tableRunLock, name),
		"owner":   owner,
		"now":     now,
		"expires": now.Add(ttl),
	}

	created, err := surrealdb.Query[[]lockRecord](ctx, s.db,
		"CREATE $rid SET owner = $owner, acquiredAt = $now, expiresAt = $expires", vars)
	if err == nil && checkResults(created) == nil && created != nil && len(*created) > 0 && len((*created)[0].Result) > 0 {
		return true, nil
	}

	// Record exists: take it over only if expired or already ours
	taken, err := surrealdb.Query[[]lockRecord](ctx, s.db,
		"UPDATE $rid SET owner = $owner, acquiredAt = $now, expiresAt = $expires WHERE expiresAt < $now OR owner = $owner", vars)
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock %s: %w", name, err)
	}
	if err := checkResults(taken); err != nil {
		return false, fmt.Errorf("failed to acquire run lock %s: %w", name, err)
	}
	if taken != nil && len(*taken) > 0 && len((*taken)[0].Result) > 0 {
		s.logger.Debug().Str("lock", name).Str("owner", owner).Msg("Run lock taken over")
		return true, nil
	}
	return false, nil
}

// Release deletes the sentinel if owner still holds it.
func (s *LockStore) Release(ctx context.Context, name, owner string) error {
	vars := map[string]any{
		"rid":   surrealmodels.NewRecordID(tableRunLock, name),
		"owner": owner,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, "DELETE $rid WHERE owner = $owner", vars); err != nil {
		return fmt.Errorf("failed to release run lock %s: %w", name, err)
	}
	return nil
}

var _ interfaces.RunLock = (*LockStore)(nil)
