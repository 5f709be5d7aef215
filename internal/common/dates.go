package common

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the canonical calendar-date key used by every stored NAV record.
const DateLayout = "2006-01-02"

var (
	isoDatePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	feedDatePattern = regexp.MustCompile(`^(\d{2})-([A-Za-z]{3})-(\d{4})$`)
	dateTokenRegex  = regexp.MustCompile(`[A-Za-z]+|\d+`)
)

var monthAbbrev = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// IsFeedDate reports whether s has the feed's DD-MMM-YYYY shape. It checks
// the shape only; use NormalizeDate to resolve it.
func IsFeedDate(s string) bool {
	return feedDatePattern.MatchString(strings.TrimSpace(s))
}

// NormalizeDate canonicalizes raw into YYYY-MM-DD.
//
// Accepted inputs, in order: canonical YYYY-MM-DD (returned unchanged),
// the feed's DD-MMM-YYYY, then anything dateparse understands that has a
// day, month and year (date part only, in whatever zone the parser yields). Returns false when nothing
// resolves; callers must skip the record rather than substitute today.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if isoDatePattern.MatchString(s) {
		if _, err := time.Parse(DateLayout, s); err != nil {
			return "", false
		}
		return s, true
	}

	if m := feedDatePattern.FindStringSubmatch(s); m != nil {
		month, ok := monthAbbrev[strings.ToLower(m[2])]
		if !ok {
			return "", false
		}
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		// time.Date rolls 31-Feb over into March
		if t.Day() != day || t.Month() != month {
			return "", false
		}
		return t.Format(DateLayout), true
	}

	if !hasDateShape(s) {
		return "", false
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", false
	}
	return t.Format(DateLayout), true
}

// hasDateShape reports whether s has separate day, month and year parts:
// at least three word or number tokens, two of them numeric. A bare year or
// epoch number fails.
func hasDateShape(s string) bool {
	tokens := dateTokenRegex.FindAllString(s, -1)
	if len(tokens) < 3 {
		return false
	}
	numeric := 0
	for _, tok := range tokens {
		if tok[0] >= '0' && tok[0] <= '9' {
			numeric++
		}
	}
	return numeric >= 2
}
