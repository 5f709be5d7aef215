package amfi

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/models"
)

// NAVAll row layout:
//
//	Scheme Code;ISIN Div Payout/ISIN Growth;ISIN Div Reinvestment;Scheme Name;Net Asset Value;Date
const (
	fieldSeparator = ";"
	minFields      = 5

	colCode = 0
	colName = 3
	colNAV  = 4
	colDate = 5
)

// Drop reasons reported in ParseStats and the rows-dropped metric.
const (
	DropMalformed = "malformed"
	DropNAV       = "nav"
	DropDate      = "date"
)

// ParseStats summarises a single parse of the feed
type ParseStats struct {
	Lines            int `json:"lines"`
	SectionDates     int `json:"sectionDates"`
	DataRows         int `json:"dataRows"`
	Accepted         int `json:"accepted"`
	DroppedMalformed int `json:"droppedMalformed"`
	DroppedNAV       int `json:"droppedNav"`
	DroppedDate      int `json:"droppedDate"`
	Duplicates       int `json:"duplicates"`
}

// Dropped returns the total number of data rows that were not accepted.
func (s ParseStats) Dropped() int {
	return s.DroppedMalformed + s.DroppedNAV + s.DroppedDate
}

// ParseResult holds parsed records keyed by scheme code
type ParseResult struct {
	Records map[string]models.FeedRecord
	Stats   ParseStats
}

// Parse turns the raw NAVAll text into one record per scheme code.
//
// A line that is exactly a DD-MMM-YYYY date sets the section date for the
// rows below it. A section line whose date cannot be resolved clears the
// section date, so rows after it need their own date column. Lines without
// the separator (fund house and category headings) are ignored. Bad rows are
// dropped and counted; they never abort the parse. A later row for the same
// code replaces an earlier one.
func Parse(body string) *ParseResult {
	res := &ParseResult{Records: make(map[string]models.FeedRecord)}

	sectionDate := ""
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		res.Stats.Lines++

		if common.IsFeedDate(line) {
			res.Stats.SectionDates++
			if d, ok := common.NormalizeDate(line); ok {
				sectionDate = d
			} else {
				sectionDate = ""
			}
			continue
		}

		if !strings.Contains(line, fieldSeparator) {
			continue
		}
		if strings.HasPrefix(line, "Scheme Code") {
			continue
		}
		res.Stats.DataRows++

		rec, reason := parseRow(line, sectionDate)
		switch reason {
		case "":
		case DropMalformed:
			res.Stats.DroppedMalformed++
			continue
		case DropNAV:
			res.Stats.DroppedNAV++
			continue
		case DropDate:
			res.Stats.DroppedDate++
			continue
		}

		if _, dup := res.Records[rec.SchemeCode]; dup {
			res.Stats.Duplicates++
		} else {
			res.Stats.Accepted++
		}
		res.Records[rec.SchemeCode] = rec
	}

	return res
}

// parseRow returns the record or the reason the row was dropped.
func parseRow(line, sectionDate string) (models.FeedRecord, string) {
	parts := strings.Split(line, fieldSeparator)
	if len(parts) < minFields {
		return models.FeedRecord{}, DropMalformed
	}

	code := strings.TrimSpace(parts[colCode])
	name := strings.TrimSpace(parts[colName])
	navText := strings.TrimSpace(parts[colNAV])
	if code == "" || name == "" || navText == "" {
		return models.FeedRecord{}, DropMalformed
	}

	nav, err := decimal.NewFromString(navText)
	if err != nil || !nav.IsPositive() {
		return models.FeedRecord{}, DropNAV
	}

	date := ""
	if len(parts) > colDate {
		if d, ok := common.NormalizeDate(parts[colDate]); ok {
			date = d
		}
	}
	if date == "" {
		date = sectionDate
	}
	if date == "" {
		return models.FeedRecord{}, DropDate
	}

	return models.FeedRecord{
		SchemeCode: code,
		SchemeName: name,
		NAV:        nav,
		Date:       date,
	}, ""
}
