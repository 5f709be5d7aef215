package navsync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/navsync/internal/interfaces"
	"github.com/bobmcallan/navsync/internal/models"
)

// --- Mocks ---

type mockFeed struct {
	body  string
	err   error
	calls int
}

func (m *mockFeed) FetchNAVAll(_ context.Context) (string, error) {
	m.calls++
	return m.body, m.err
}

type mockHoldingStore struct {
	mu       sync.Mutex
	refs     []models.HoldingRef
	listErr  error
	batchErr error
	batches  [][]models.HoldingNAVUpdate
	byID     map[string]models.HoldingNAVUpdate
	deleted  map[string]bool // holdings removed after listing
}

func (m *mockHoldingStore) ListHoldingRefs(_ context.Context) ([]models.HoldingRef, error) {
	return m.refs, m.listErr
}

func (m *mockHoldingStore) ApplyNAVUpdates(_ context.Context, updates []models.HoldingNAVUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, updates)
	if m.batchErr != nil {
		return 0, m.batchErr
	}
	if m.byID == nil {
		m.byID = make(map[string]models.HoldingNAVUpdate)
	}
	n := 0
	for _, u := range updates {
		if m.deleted[u.HoldingID] {
			continue
		}
		m.byID[u.HoldingID] = u
		n++
	}
	return n, nil
}

type mockNavStore struct {
	mu          sync.Mutex
	snapshots   map[string]models.NavSnapshot
	history     map[string]models.NavHistoryEntry
	historyErr  map[string]error // by scheme code
	snapshotErr map[string]error
	queryErr    error
	lastQuery   models.HistoryQuery
}

func newMockNavStore() *mockNavStore {
	return &mockNavStore{
		snapshots:   make(map[string]models.NavSnapshot),
		history:     make(map[string]models.NavHistoryEntry),
		historyErr:  make(map[string]error),
		snapshotErr: make(map[string]error),
	}
}

func (m *mockNavStore) MergeSnapshot(_ context.Context, snap *models.NavSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.snapshotErr[snap.SchemeCode]; err != nil {
		return err
	}
	m.snapshots[snap.SchemeCode] = *snap
	return nil
}

func (m *mockNavStore) GetSnapshot(_ context.Context, code string) (*models.NavSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[code]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &s, nil
}

func (m *mockNavStore) MergeHistory(_ context.Context, e *models.NavHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.historyErr[e.SchemeCode]; err != nil {
		return err
	}
	key := models.HistoryKey(e.SchemeCode, e.Date)
	merged := *e
	if existing, ok := m.history[key]; ok && !existing.CreatedAt.IsZero() {
		merged.CreatedAt = existing.CreatedAt
	}
	m.history[key] = merged
	return nil
}

func (m *mockNavStore) GetHistoryEntry(_ context.Context, code, date string) (*models.NavHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.history[models.HistoryKey(code, date)]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &e, nil
}

func (m *mockNavStore) QueryHistory(_ context.Context, q models.HistoryQuery) ([]models.NavHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	codes := make(map[string]bool)
	for _, c := range q.SchemeCodes {
		codes[c] = true
	}
	var out []models.NavHistoryEntry
	for _, e := range m.history {
		if q.From != "" && e.Date < q.From {
			continue
		}
		if q.To != "" && e.Date > q.To {
			continue
		}
		if len(codes) > 0 && !codes[e.SchemeCode] {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].SchemeCode < out[j].SchemeCode
	})
	return out, nil
}

type mockStorage struct {
	holdings *mockHoldingStore
	navData  *mockNavStore
}

func newMockStorage(refs ...models.HoldingRef) *mockStorage {
	return &mockStorage{
		holdings: &mockHoldingStore{refs: refs},
		navData:  newMockNavStore(),
	}
}

func (m *mockStorage) HoldingStore() interfaces.HoldingStore { return m.holdings }
func (m *mockStorage) NavDataStore() interfaces.NavDataStore { return m.navData }
func (m *mockStorage) Close() error                          { return nil }

type mockLock struct {
	mu       sync.Mutex
	holder   string
	err      error
	released []string
}

func (m *mockLock) Acquire(_ context.Context, _ string, owner string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.holder != "" && m.holder != owner {
		return false, nil
	}
	m.holder = owner
	return true, nil
}

func (m *mockLock) Release(_ context.Context, _ string, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder != owner {
		return errors.New("not owner")
	}
	m.holder = ""
	m.released = append(m.released, owner)
	return nil
}
