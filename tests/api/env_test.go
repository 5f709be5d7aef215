package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	surreal "github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/navsync/internal/app"
	"github.com/bobmcallan/navsync/internal/models"
	"github.com/bobmcallan/navsync/internal/server"
	tcommon "github.com/bobmcallan/navsync/tests/common"
)

// Env is a full navsync stack for API tests: the app wired to a SurrealDB
// container, a fake AMFI feed, and the HTTP handler behind httptest.
type Env struct {
	t      *testing.T
	App    *app.App
	DB     *surreal.DB
	server *httptest.Server
	feed   *httptest.Server

	mu         sync.Mutex
	feedBody   string
	feedStatus int
	feedHits   int
}

// NewEnv builds the stack. Each Env uses its own database.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	sc := tcommon.StartSurrealDB(t)

	env := &Env{t: t, feedStatus: http.StatusOK}
	env.feed = httptest.NewServer(http.HandlerFunc(env.serveFeed))

	dbName := fmt.Sprintf("api_%s_%d", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()), time.Now().UnixNano()%100000)
	configPath := env.writeConfig(sc.Address(), dbName)

	a, err := app.NewApp(configPath)
	if err != nil {
		env.feed.Close()
		t.Fatalf("NewApp failed: %v", err)
	}
	env.App = a
	env.server = httptest.NewServer(server.NewServer(a).Handler())

	ctx := context.Background()
	db, err := surreal.New(sc.Address())
	if err != nil {
		env.Cleanup()
		t.Fatalf("connect to SurrealDB: %v", err)
	}
	if _, err := db.SignIn(ctx, map[string]interface{}{"user": "root", "pass": "root"}); err != nil {
		env.Cleanup()
		t.Fatalf("sign in to SurrealDB: %v", err)
	}
	if err := db.Use(ctx, "navsync_api", dbName); err != nil {
		env.Cleanup()
		t.Fatalf("select namespace/database: %v", err)
	}
	env.DB = db

	return env
}

func (e *Env) writeConfig(address, dbName string) string {
	dir := e.t.TempDir()
	config := `
environment = "test"

[storage]
address = "` + address + `"
namespace = "navsync_api"
database = "` + dbName + `"

[feed]
url = "` + e.feed.URL + `/NAVAll.txt"
timeout = "5s"
rate_limit = 100
max_attempts = 1

[schedule]
enabled = false

[lock]
enabled = true
backend = "surrealdb"
ttl = "1m"

[logging]
level = "error"
outputs = ["console"]
file_path = "` + filepath.Join(dir, "navsync.log") + `"
`
	path := filepath.Join(dir, "navsync.toml")
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		e.t.Fatalf("write test config: %v", err)
	}
	return path
}

func (e *Env) serveFeed(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feedHits++
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(e.feedStatus)
	w.Write([]byte(e.feedBody))
}

// SetFeed sets the status and body the fake feed answers with.
func (e *Env) SetFeed(status int, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feedStatus = status
	e.feedBody = body
}

// FeedHits returns how many times the fake feed was requested.
func (e *Env) FeedHits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feedHits
}

// HTTPGet issues a GET against the server.
func (e *Env) HTTPGet(path string) (*http.Response, error) {
	return http.Get(e.server.URL + path)
}

// HTTPPost issues a POST with a JSON body against the server.
func (e *Env) HTTPPost(path, body string) (*http.Response, error) {
	return http.Post(e.server.URL+path, "application/json", strings.NewReader(body))
}

// SeedHolding writes an investment the way the CRUD layer would.
func (e *Env) SeedHolding(id string, h models.Holding) {
	e.t.Helper()
	sql := "UPSERT type::record('investments', $id) CONTENT $h"
	if _, err := surreal.Query[any](context.Background(), e.DB, sql, map[string]any{"id": id, "h": h}); err != nil {
		e.t.Fatalf("seed holding %s: %v", id, err)
	}
}

// LoadHolding reads an investment back, or nil if absent.
func (e *Env) LoadHolding(id string) *models.Holding {
	e.t.Helper()
	sql := "SELECT userId, fundName, schemeCode, buyDate, buyNAV, quantity, currentNAV, currentNAVDate, navLastUpdated FROM type::record('investments', $id)"
	results, err := surreal.Query[[]models.Holding](context.Background(), e.DB, sql, map[string]any{"id": id})
	if err != nil {
		e.t.Fatalf("load holding %s: %v", id, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil
	}
	return &(*results)[0].Result[0]
}

// Cleanup stops the servers and closes the app.
func (e *Env) Cleanup() {
	if e.server != nil {
		e.server.Close()
	}
	if e.feed != nil {
		e.feed.Close()
	}
	if e.DB != nil {
		e.DB.Close(context.Background())
	}
	if e.App != nil {
		e.App.Close()
	}
}
