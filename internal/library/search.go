package library

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a word to match
// a query term that is not a substring.
const fuzzyThreshold = 0.88

type scored struct {
	track Track
	score float64
}

// Search returns tracks whose title, artist or album match every term of
// query, best matches first. Matching ignores case, punctuation and
// diacritics and tolerates small typos. A non-positive limit returns all
// matches.
func (l *Library) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	terms := strings.Fields(Normalize(query))
	if len(terms) == 0 {
		return nil, nil
	}

	tracks, err := l.AllTracks(ctx)
	if err != nil {
		return nil, err
	}

	jw := metrics.NewJaroWinkler()
	jw.CaseSensitive = false

	var results []scored
	for _, t := range tracks {
		title := Normalize(t.Title)
		fields := title + " " + Normalize(t.Artist) + " " + Normalize(t.Album)
		words := strings.Fields(fields)

		total := 0.0
		matched := true
		for _, term := range terms {
			s := termScore(term, fields, words, jw)
			if s == 0 {
				matched = false
				break
			}
			total += s
		}
		if !matched {
			continue
		}
		if strings.Contains(title, strings.Join(terms, " ")) {
			total += 1
		}
		results = append(results, scored{track: t, score: total})
	}

	slices.SortStableFunc(results, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]Track, len(results))
	for i, r := range results {
		out[i] = r.track
	}
	return out, nil
}

// termScore rates how well a single query term matches. Zero means no match.
func termScore(term, fields string, words []string, jw *metrics.JaroWinkler) float64 {
	if slices.Contains(words, term) {
		return 1
	}
	if strings.Contains(fields, term) {
		return 0.9
	}
	best := 0.0
	for _, w := range words {
		if sim := strutil.Similarity(term, w, jw); sim > best {
			best = sim
		}
	}
	if best < fuzzyThreshold {
		return 0
	}
	return best * 0.8
}
