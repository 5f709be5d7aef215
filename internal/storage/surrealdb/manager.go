package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
)

// Table names
const (
	tableInvestments = "investments"
	tableNavData     = "nav_data"
	tableNavHistory  = "nav_history"
	tableRunLock     = "run_lock"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	holdingStore *HoldingStore
	navStore     *NavStore
	lockStore    *LockStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	// Connect to SurrealDB
	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	// Sign in
	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	// Select namespace and database
	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineSchema(ctx, db); err != nil {
		db.Close(ctx)
		return nil, err
	}

	m := &Manager{
		db:           db,
		logger:       logger,
		holdingStore: NewHoldingStore(db, logger),
		navStore:     NewNavStore(db, logger),
		lockStore:    NewLockStore(db, logger),
	}

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

// defineSchema ensures tables exist (SurrealDB v3 errors on querying
// non-existent tables) and indexes the history ledger for range reads.
func defineSchema(ctx context.Context, db *surrealdb.DB) error {
	tables := []string{tableInvestments, tableNavData, tableNavHistory, tableRunLock}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	indexes := []string{
		"DEFINE INDEX IF NOT EXISTS nav_history_date ON nav_history FIELDS date",
		"DEFINE INDEX IF NOT EXISTS nav_history_scheme_date ON nav_history FIELDS schemeCode, date",
		"DEFINE INDEX IF NOT EXISTS investments_scheme ON investments FIELDS schemeCode",
	}
	for _, sql := range indexes {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define index: %w", err)
		}
	}
	return nil
}

func (m *Manager) HoldingStore() interfaces.HoldingStore {
	return m.holdingStore
}

func (m *Manager) NavDataStore() interfaces.NavDataStore {
	return m.navStore
}

// RunLock returns the sentinel-record run lock backed by the same database.
func (m *Manager) RunLock() interfaces.RunLock {
	return m.lockStore
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// isNotFoundError reports whether a SurrealDB error means the record is absent.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// checkResults returns the first failed statement in a multi-statement query.
func checkResults[T any](results *[]surrealdb.QueryResult[T]) error {
	if results == nil {
		return nil
	}
	for i, r := range *results {
		if r.Status != "" && r.Status != "OK" {
			return fmt.Errorf("statement %d failed: %v", i, r.Result)
		}
	}
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
