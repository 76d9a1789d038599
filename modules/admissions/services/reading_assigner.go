package services

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admissions/pkg/metrics"
)

// Assignment maps each reader to the candidates they read.
type Assignment map[string][]string

// Loads returns the number of candidates per reader.
func (a Assignment) Loads() map[string]int {
	out := make(map[string]int, len(a))
	for r, cs := range a {
		out[r] = len(cs)
	}
	return out
}

// Strategy selects how a single run builds its assignment.
type Strategy string

const (
	// StrategyDraw deals each reader a random draw from a shuffled pool, reshuffling when the
	// draw repeats a candidate. Dense inputs (readers per candidate close to the number of
	// readers) often exhaust the draw budget.
	StrategyDraw Strategy = "draw"
	// StrategyRotate deals consecutive slices of a repeated random permutation and cannot
	// produce a repeated candidate.
	StrategyRotate Strategy = "rotate"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyDraw:
		return StrategyDraw, nil
	case StrategyRotate:
		return StrategyRotate, nil
	default:
		return "", errors.Errorf("unknown assignment strategy %q (expected draw|rotate)", s)
	}
}

type ReadingAssignerOptions struct {
	Strategy Strategy
	// MaxDrawAttempts bounds the reshuffles allowed while one reader's draw contains
	// a repeated candidate.
	MaxDrawAttempts int
	// MaxRuns bounds full regenerations; the last failure is fatal.
	MaxRuns int

	Rand    *rand.Rand
	Logger  *logrus.Entry
	Metrics *metrics.Recorder
}

func (o *ReadingAssignerOptions) setDefaults() {
	if o.Strategy == "" {
		o.Strategy = StrategyDraw
	}
	if o.MaxDrawAttempts == 0 {
		o.MaxDrawAttempts = 100
	}
	if o.MaxRuns == 0 {
		o.MaxRuns = 2
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
}

// ReadingAssigner builds balanced random reading assignments.
type ReadingAssigner struct {
	opts ReadingAssignerOptions
}

func NewReadingAssigner(opts ReadingAssignerOptions) *ReadingAssigner {
	opts.setDefaults()
	return &ReadingAssigner{opts: opts}
}

// Assign gives every candidate to exactly n distinct readers. Each reader receives
// floor(|candidates|*n/|readers|) candidates and the remainder goes to distinct readers,
// one each. A run that fails validation is discarded and regenerated from scratch.
func (a *ReadingAssigner) Assign(ctx context.Context, readers, candidates []string, n int) (Assignment, error) {
	if err := checkAssignmentInput(readers, candidates, n); err != nil {
		return nil, err
	}

	var lastErr error
	for run := 1; run <= a.opts.MaxRuns; run++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var asg Assignment
		var err error
		if a.opts.Strategy == StrategyRotate {
			asg = a.rotate(readers, candidates, n)
		} else {
			asg, err = a.draw(readers, candidates, n)
		}
		if err == nil {
			err = ValidateAssignment(asg, readers, candidates, n)
		}
		if err == nil {
			a.opts.Metrics.Assignment(string(a.opts.Strategy))
			logWithFields(ctx, a.opts.Logger, logrus.InfoLevel, "reading assignment built", logrus.Fields{
				"strategy":   string(a.opts.Strategy),
				"readers":    len(readers),
				"candidates": len(candidates),
				"per":        n,
				"run":        run,
			})
			return asg, nil
		}
		lastErr = err
		logWithFields(ctx, a.opts.Logger, logrus.WarnLevel, "reading assignment discarded", logrus.Fields{
			"run":   run,
			"error": err.Error(),
		})
		if run < a.opts.MaxRuns {
			a.opts.Metrics.Restart()
		}
	}

	var ie *IntegrityError
	if errors.As(lastErr, &ie) {
		return nil, errors.Wrapf(lastErr, "after %d runs", a.opts.MaxRuns)
	}
	return nil, &IntegrityError{
		Subject: fmt.Sprintf("no valid reading assignment after %d runs", a.opts.MaxRuns),
		Err:     lastErr,
	}
}

func (a *ReadingAssigner) draw(readers, candidates []string, n int) (Assignment, error) {
	rnd := a.opts.Rand
	total := len(candidates) * n
	base := total / len(readers)

	pool := make([]string, 0, total)
	for _, c := range candidates {
		for range n {
			pool = append(pool, c)
		}
	}
	shuffle := func() { rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] }) }
	shuffle()

	asg := make(Assignment, len(readers))
	for _, reader := range readers {
		for attempt := 1; ; attempt++ {
			if distinct(pool[:base]) {
				break
			}
			if attempt >= a.opts.MaxDrawAttempts {
				return nil, errors.Wrapf(ErrDrawFailed, "reader %s: repeated candidate after %d draws", reader, attempt)
			}
			a.opts.Metrics.DrawRetry()
			shuffle()
		}
		asg[reader] = append([]string(nil), pool[:base]...)
		pool = pool[base:]
	}

	// Leftovers: one extra candidate per reader at most.
	overflow := map[string]bool{}
	for _, c := range pool {
		var eligible []string
		for _, reader := range readers {
			if !overflow[reader] && !slices.Contains(asg[reader], c) {
				eligible = append(eligible, reader)
			}
		}
		if len(eligible) == 0 {
			return nil, errors.Wrapf(ErrDrawFailed, "no reader can take leftover %s", c)
		}
		reader := eligible[rnd.Intn(len(eligible))]
		asg[reader] = append(asg[reader], c)
		overflow[reader] = true
	}
	return asg, nil
}

func (a *ReadingAssigner) rotate(readers, candidates []string, n int) Assignment {
	rnd := a.opts.Rand
	perm := append([]string(nil), candidates...)
	rnd.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	order := append([]string(nil), readers...)
	rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	total := len(candidates) * n
	base, rem := total/len(readers), total%len(readers)
	asg := make(Assignment, len(readers))
	pos := 0
	for i, reader := range order {
		load := base
		if i < rem {
			load++
		}
		// load never exceeds len(perm), so a slice of the cycle has no repeats.
		cs := make([]string, load)
		for k := range cs {
			cs[k] = perm[(pos+k)%len(perm)]
		}
		asg[reader] = cs
		pos += load
	}
	return asg
}

// ValidateAssignment checks duplicates, coverage and balance, listing every violation.
func ValidateAssignment(asg Assignment, readers, candidates []string, n int) error {
	var items []string
	known := make(map[string]bool, len(readers))
	for _, r := range readers {
		known[r] = true
	}
	for r := range asg {
		if !known[r] {
			items = append(items, "unknown reader "+r)
		}
	}

	lo, hi := loadBounds(len(candidates), len(readers), n)
	counts := map[string]int{}
	for _, r := range readers {
		seen := map[string]bool{}
		for _, c := range asg[r] {
			if seen[c] {
				items = append(items, fmt.Sprintf("%s holds %s twice", r, c))
			}
			seen[c] = true
			counts[c]++
		}
		if l := len(asg[r]); l < lo || l > hi {
			items = append(items, fmt.Sprintf("%s has %d candidates, want %d..%d", r, l, lo, hi))
		}
	}

	wanted := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		wanted[c] = true
		if counts[c] != n {
			items = append(items, fmt.Sprintf("%s read %d times, want %d", c, counts[c], n))
		}
	}
	var extra []string
	for c := range counts {
		if !wanted[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	for _, c := range extra {
		items = append(items, "unknown candidate "+c)
	}

	if len(items) > 0 {
		return &IntegrityError{Subject: "invalid reading assignment", Items: items}
	}
	return nil
}

func loadBounds(candidates, readers, n int) (int, int) {
	total := candidates * n
	lo := total / readers
	hi := lo
	if total%readers != 0 {
		hi++
	}
	return lo, hi
}

func checkAssignmentInput(readers, candidates []string, n int) error {
	var problems []string
	if len(readers) == 0 {
		problems = append(problems, "no readers")
	}
	if len(candidates) == 0 {
		problems = append(problems, "no candidates")
	}
	if n < 1 {
		problems = append(problems, fmt.Sprintf("readers per candidate must be positive, got %d", n))
	}
	if len(readers) > 0 && n > len(readers) {
		problems = append(problems, fmt.Sprintf("%d readers per candidate but only %d readers", n, len(readers)))
	}
	if d := duplicates(readers); len(d) > 0 {
		problems = append(problems, "duplicate readers: "+strings.Join(d, ", "))
	}
	if d := duplicates(candidates); len(d) > 0 {
		problems = append(problems, "duplicate candidates: "+strings.Join(d, ", "))
	}
	if len(problems) > 0 {
		return errors.Wrap(ErrInfeasible, strings.Join(problems, "; "))
	}
	return nil
}

func duplicates(xs []string) []string {
	seen := map[string]int{}
	var out []string
	for _, x := range xs {
		seen[x]++
		if seen[x] == 2 {
			out = append(out, x)
		}
	}
	return out
}

func distinct(xs []string) bool {
	seen := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			return false
		}
		seen[x] = struct{}{}
	}
	return true
}
