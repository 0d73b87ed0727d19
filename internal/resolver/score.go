package resolver

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"tagfetch/internal/source"
)

// Field weights for the combined score. The title carries more identity
// than the artist: one artist has many tracks.
const (
	titleWeight  = 0.65
	artistWeight = 0.35

	// A title-only comparison can never beat the same title confirmed by
	// a matching artist.
	titleOnlyDiscount = 0.9
)

// Scored pairs a candidate with its match score against the local guess.
type Scored struct {
	Candidate source.Candidate
	Score     float64
}

var diacriticsStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize folds a string for comparison: diacritics stripped, lowercase,
// punctuation removed, whitespace collapsed.
func normalize(s string) string {
	folded, _, err := transform.String(diacriticsStripper, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// Apostrophes join words rather than separating them.
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// similarity returns an edit-distance ratio in [0,1] over normalized forms.
func similarity(a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	dist := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	return 1 - float64(dist)/float64(longest)
}

// scoreAgainst rates one candidate against one artist/title reading.
func scoreAgainst(q source.Query, cand source.Candidate) float64 {
	titleSim := similarity(q.Title, cand.Title)
	if q.Artist == "" {
		return titleOnlyDiscount * titleSim
	}
	return titleWeight*titleSim + artistWeight*similarity(q.Artist, cand.Artist)
}

// scoreCandidate rates a candidate against every plausible reading of the
// filename. A "B - A" file where the halves are really title-artist scores
// under the swapped reading, and the better reading counts.
func scoreCandidate(readings []source.Query, cand source.Candidate) float64 {
	best := 0.0
	for _, q := range readings {
		if s := scoreAgainst(q, cand); s > best {
			best = s
		}
	}
	return best
}

// rank scores and orders candidates best first. Ties keep the catalog's
// relevance order.
func rank(readings []source.Query, cands []source.Candidate) []Scored {
	scored := make([]Scored, 0, len(cands))
	for _, c := range cands {
		scored = append(scored, Scored{Candidate: c, Score: scoreCandidate(readings, c)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
