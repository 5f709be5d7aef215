// Package models defines the data structures navsync reads and writes.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FeedRecord is one scheme row from a single feed fetch. It is never persisted.
type FeedRecord struct {
	SchemeCode string          `json:"schemeCode"`
	SchemeName string          `json:"schemeName"`
	NAV        decimal.Decimal `json:"nav"`
	Date       string          `json:"date"` // YYYY-MM-DD
}

// MarshalJSON writes NAV as a JSON number, like every other NAV field the
// API returns. The decimal digits are kept exactly as parsed.
func (r FeedRecord) MarshalJSON() ([]byte, error) {
	type plain FeedRecord
	return json.Marshal(struct {
		plain
		NAV json.Number `json:"nav"`
	}{plain(r), json.Number(r.NAV.String())})
}

// HoldingRef is the slice of a stored investment the ingestion pipeline needs:
// its document ID and the scheme code it references.
type HoldingRef struct {
	ID         string `json:"id"`
	SchemeCode string `json:"schemeCode"`
	// Key is the store's native record ID. Writes address the holding by
	// Key when set, since ID is only its printed form.
	Key any `json:"-"`
}

// Holding is a user investment transaction as stored by the CRUD layer.
// Only the cached NAV fields are written by the ingestion pipeline.
type Holding struct {
	ID         string  `json:"id,omitempty"`
	UserID     string  `json:"userId"`
	FundName   string  `json:"fundName"`
	SchemeCode string  `json:"schemeCode"`
	BuyDate    string  `json:"buyDate"`
	BuyNAV     float64 `json:"buyNAV"`
	Quantity   float64 `json:"quantity"`
	SellDate   string  `json:"sellDate,omitempty"`
	SellNAV    float64 `json:"sellNAV,omitempty"`
	SellQty    float64 `json:"sellQuantity,omitempty"`

	CurrentNAV     float64   `json:"currentNAV,omitempty"`
	CurrentNAVDate string    `json:"currentNAVDate,omitempty"`
	NavLastUpdated time.Time `json:"navLastUpdated,omitempty"`
}

// HoldingNAVUpdate sets the cached NAV fields on one holding document.
type HoldingNAVUpdate struct {
	HoldingID      string
	HoldingKey     any
	SchemeCode     string
	CurrentNAV     float64
	CurrentNAVDate string
	UpdatedAt      time.Time
}

// NavSnapshot is the latest known NAV for a scheme, keyed by scheme code.
type NavSnapshot struct {
	SchemeCode  string    `json:"schemeCode"`
	SchemeName  string    `json:"schemeName"`
	CurrentNAV  float64   `json:"currentNAV"`
	NavDate     string    `json:"navDate"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// NavHistoryEntry is one NAV per scheme per calendar date. HistoryKey(SchemeCode, Date)
// is its identity, so rewriting the same scheme/date merges in place.
type NavHistoryEntry struct {
	SchemeCode string    `json:"schemeCode"`
	SchemeName string    `json:"schemeName"`
	NAV        float64   `json:"nav"`
	Date       string    `json:"date"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	YearMonth  string    `json:"yearMonth"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HistoryKey returns the composite record key for a scheme's NAV on a date.
func HistoryKey(schemeCode, date string) string {
	return schemeCode + "_" + date
}

// NewNavHistoryEntry builds a history entry for a canonical YYYY-MM-DD date,
// deriving the year/month grouping fields.
func NewNavHistoryEntry(schemeCode, schemeName string, nav float64, date string) (*NavHistoryEntry, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid history date %q: %w", date, err)
	}
	return &NavHistoryEntry{
		SchemeCode: schemeCode,
		SchemeName: schemeName,
		NAV:        nav,
		Date:       date,
		Year:       d.Year(),
		Month:      int(d.Month()),
		YearMonth:  fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month())),
	}, nil
}

// HistoryQuery filters NAV history reads. Empty fields are unbounded.
type HistoryQuery struct {
	From        string   `json:"from,omitempty"`
	To          string   `json:"to,omitempty"`
	SchemeCodes []string `json:"schemeCodes,omitempty"`
}

// DailyChange is the day-over-day NAV movement between two consecutive
// history entries of one scheme.
type DailyChange struct {
	SchemeCode    string  `json:"schemeCode"`
	SchemeName    string  `json:"schemeName"`
	Date          string  `json:"date"`
	Year          int     `json:"year"`
	Month         int     `json:"month"`
	YearMonth     string  `json:"yearMonth"`
	CurrentNav    float64 `json:"currentNav"`
	PreviousNav   float64 `json:"previousNav"`
	ChangePercent float64 `json:"changePercent"`
	ChangeAmount  float64 `json:"changeAmount"`
}
