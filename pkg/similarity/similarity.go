// Package similarity scores how alike two institution names are on a 0-100 scale.
package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/mozillazg/go-unidecode"
	"github.com/xrash/smetrics"
)

const (
	Exact = 100

	tokenScale   = 0.95
	partialScale = 0.90
)

type Match struct {
	Candidate string
	Index     int
	Score     int
}

// Normalize transliterates to ASCII, lower-cases, and replaces punctuation with spaces.
func Normalize(s string) string {
	s = strings.ToLower(unidecode.Unidecode(s))
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Score compares a and b after normalisation. Only names that normalise to the same
// string score Exact.
func Score(a, b string) int {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return Exact
	}

	best := ratio(na, nb)
	short, long := na, nb
	if len(short) > len(long) {
		short, long = long, short
	}
	lenRatio := float64(len(long)) / float64(len(short))

	ts := tokenSortRatio(na, nb)
	tset := tokenSetRatio(na, nb)
	if lenRatio >= 1.5 {
		best = math.Max(best, partialRatio(short, long)*partialScale)
		ts = math.Max(ts, partialRatio(sortTokens(short), sortTokens(long))*partialScale)
	}
	best = math.Max(best, ts*tokenScale)
	best = math.Max(best, tset*tokenScale)

	score := int(math.Round(best))
	if score >= Exact {
		score = Exact - 1
	}
	return score
}

// BestMatch returns the candidate scoring highest against query. Ties go to the candidate
// with the higher Jaro-Winkler similarity, then to the earlier candidate.
func BestMatch(query string, candidates []string) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}
	best := Match{Index: -1, Score: -1}
	bestJW := -1.0
	nq := Normalize(query)
	for i, c := range candidates {
		s := Score(query, c)
		if s < best.Score {
			continue
		}
		jw := smetrics.JaroWinkler(nq, Normalize(c), 0.7, 4)
		if s == best.Score && jw <= bestJW {
			continue
		}
		best = Match{Candidate: c, Index: i, Score: s}
		bestJW = jw
	}
	return best, true
}

// Scorer adapts the package functions to the resolver's matcher interface.
type Scorer struct{}

func (Scorer) BestMatch(query string, candidates []string) (Match, bool) {
	return BestMatch(query, candidates)
}

func ratio(a, b string) float64 {
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

func partialRatio(short, long string) float64 {
	sr, lr := []rune(short), []rune(long)
	if len(sr) == 0 {
		return 0
	}
	best := 0.0
	for i := 0; i+len(sr) <= len(lr); i++ {
		if r := ratio(short, string(lr[i:i+len(sr)])); r > best {
			best = r
		}
	}
	return best
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSortRatio(a, b string) float64 {
	return ratio(sortTokens(a), sortTokens(b))
}

func tokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	var common, onlyA, onlyB []string
	for t := range setA {
		if _, ok := setB[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	if len(common) == 0 {
		return 0
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	t0 := strings.Join(common, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(onlyA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(onlyB, " "))
	return math.Max(ratio(t0, t1), math.Max(ratio(t0, t2), ratio(t1, t2)))
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		out[t] = struct{}{}
	}
	return out
}
