package models

import "time"

// Trigger names for pipeline runs.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// NavUpdate is one write-set entry: the feed's NAV for a scheme that at least
// one holding references.
type NavUpdate struct {
	SchemeCode string  `json:"schemeCode"`
	SchemeName string  `json:"schemeName"`
	NAV        float64 `json:"nav"`
	Date       string  `json:"date"`
}

// WriteSet is the reconciliation output handed to the persistence writer.
type WriteSet struct {
	// Updates holds one entry per matched scheme code, sorted by code.
	Updates []NavUpdate
	// Holdings maps each matched scheme code to every holding that references it.
	Holdings map[string][]HoldingRef
	// Unmatched lists distinct holding scheme codes absent from the feed.
	Unmatched []string
	// HoldingsConsidered counts holdings that carried a scheme code.
	HoldingsConsidered int
}

// HoldingCount returns the number of holding documents the write set touches.
func (ws *WriteSet) HoldingCount() int {
	if ws == nil {
		return 0
	}
	n := 0
	for _, refs := range ws.Holdings {
		n += len(refs)
	}
	return n
}

// WriteReport summarizes what the persistence writer committed.
type WriteReport struct {
	HoldingsUpdated  int
	SkippedSchemes   []string
	SnapshotsWritten int
	SnapshotFailures []string
	HistoryWritten   int
	HistoryFailures  []string
}

// RunResult is the outcome of one pipeline run, returned to on-demand callers.
type RunResult struct {
	Success              bool      `json:"success"`
	Message              string    `json:"message"`
	RunID                string    `json:"runId"`
	Trigger              string    `json:"trigger"`
	UpdatedCount         int       `json:"updatedCount"`
	TotalSchemesFetched  int       `json:"totalSchemesFetched"`
	MatchedSchemes       int       `json:"matchedSchemes"`
	UnmatchedSchemeCodes []string  `json:"unmatchedSchemeCodes"`
	SkippedSchemeCodes   []string  `json:"skippedSchemeCodes,omitempty"`
	SnapshotsWritten     int       `json:"snapshotsWritten"`
	SnapshotFailures     []string  `json:"snapshotFailures,omitempty"`
	HistoryWritten       int       `json:"historyWritten"`
	HistoryFailures      []string  `json:"historyFailures,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
	DurationMS           int64     `json:"durationMs"`
}

// SchemeLookup is the result of looking up scheme codes in the live feed.
type SchemeLookup struct {
	Found     map[string]FeedRecord `json:"found"`
	NotFound  []string              `json:"notFound"`
	FetchedAt time.Time             `json:"fetchedAt"`
}
