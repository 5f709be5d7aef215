package navsync

import (
	"context"
	"sort"
	"strings"

	"github.com/bobmcallan/navsync/internal/clients/amfi"
	"github.com/bobmcallan/navsync/internal/models"
)

// LookupSchemes fetches the live feed and returns the records for codes.
// Nothing is persisted.
func (s *Service) LookupSchemes(ctx context.Context, codes []string) (*models.SchemeLookup, error) {
	want := make(map[string]struct{})
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			want[c] = struct{}{}
		}
	}

	body, err := s.feed.FetchNAVAll(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: err}
	}
	parsed := amfi.Parse(body)
	if len(parsed.Records) == 0 {
		return nil, &StageError{Stage: StageParse, Err: ErrNoSchemesParsed}
	}

	out := &models.SchemeLookup{
		Found:     make(map[string]models.FeedRecord),
		NotFound:  []string{},
		FetchedAt: s.now(),
	}
	for code := range want {
		if rec, ok := parsed.Records[code]; ok {
			out.Found[code] = rec
		} else {
			out.NotFound = append(out.NotFound, code)
		}
	}
	sort.Strings(out.NotFound)

	s.logger.Debug().Int("requested", len(want)).Int("found", len(out.Found)).Msg("Scheme lookup")
	return out, nil
}
