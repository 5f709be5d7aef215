package navsync

import (
	"errors"
	"fmt"
)

// Pipeline stages reported in StageError.
const (
	StageLock         = "lock"
	StageFetch        = "fetch"
	StageParse        = "parse"
	StageLoadHoldings = "load_holdings"
	StageHoldings     = "holdings"
)

var (
	// ErrNoSchemesParsed means the feed was fetched but yielded no usable rows,
	// which usually means its layout changed.
	ErrNoSchemesParsed = errors.New("feed parsed zero schemes")

	// ErrRunInProgress is returned when another run holds the run lock.
	ErrRunInProgress = errors.New("NAV update already in progress")

	// ErrInvalidQuery is returned for history queries with unresolvable dates.
	ErrInvalidQuery = errors.New("invalid history query")
)

// StageError identifies the pipeline stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failing stage of err, or "" if err carries none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
