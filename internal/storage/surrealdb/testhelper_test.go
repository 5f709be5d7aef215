package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	surreal "github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/models"
	tcommon "github.com/bobmcallan/navsync/tests/common"
)

// testDB starts the shared SurrealDB container and returns a connected *surreal.DB
// using a unique database name per test to ensure isolation.
func testDB(t *testing.T) *surreal.DB {
	t.Helper()

	sc := tcommon.StartSurrealDB(t)
	ctx := context.Background()

	db, err := surreal.New(sc.Address())
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": "root",
		"pass": "root",
	}); err != nil {
		t.Fatalf("sign in to SurrealDB: %v", err)
	}

	// Sanitize t.Name() because subtests produce names like "Test/subtest"
	// and SurrealDB rejects "/" in database names.
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbName := fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)
	if err := db.Use(ctx, "navsync_test", dbName); err != nil {
		t.Fatalf("select namespace/database: %v", err)
	}

	if err := defineSchema(ctx, db); err != nil {
		t.Fatalf("define schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close(context.Background())
	})

	return db
}

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}

// seedHolding writes an investment document the way the CRUD layer would.
func seedHolding(t *testing.T, db *surreal.DB, id string, h models.Holding) {
	t.Helper()
	sql := "UPSERT type::record('investments', $id) CONTENT $h"
	if _, err := surreal.Query[any](context.Background(), db, sql, map[string]any{"id": id, "h": h}); err != nil {
		t.Fatalf("seed holding %s: %v", id, err)
	}
}

// loadHolding reads an investment back without its record ID.
func loadHolding(t *testing.T, db *surreal.DB, id string) *models.Holding {
	t.Helper()
	sql := "SELECT userId, fundName, schemeCode, buyDate, buyNAV, quantity, currentNAV, currentNAVDate, navLastUpdated FROM type::record('investments', $id)"
	results, err := surreal.Query[[]models.Holding](context.Background(), db, sql, map[string]any{"id": id})
	if err != nil {
		t.Fatalf("load holding %s: %v", id, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil
	}
	return &(*results)[0].Result[0]
}
