package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admissions/pkg/metrics"
	"github.com/iota-uz/admissions/pkg/solver"
)

// Rewards holds a weight per (candidate, reader) pair, e.g. topical fit.
type Rewards struct {
	Readers    []string
	Candidates []string
	// Weights is indexed [candidate][reader].
	Weights [][]float64
}

func (r Rewards) validate() error {
	var problems []string
	if len(r.Weights) != len(r.Candidates) {
		problems = append(problems, fmt.Sprintf("%d reward rows for %d candidates", len(r.Weights), len(r.Candidates)))
	}
	for i, row := range r.Weights {
		name := fmt.Sprintf("row %d", i)
		if i < len(r.Candidates) {
			name = r.Candidates[i]
		}
		if len(row) != len(r.Readers) {
			problems = append(problems, fmt.Sprintf("%s has %d rewards for %d readers", name, len(row), len(r.Readers)))
			continue
		}
		for j, w := range row {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				problems = append(problems, fmt.Sprintf("%s/%s reward is not finite", name, r.Readers[j]))
			}
		}
	}
	if len(problems) > 0 {
		return errors.Wrap(ErrInfeasible, strings.Join(problems, "; "))
	}
	return nil
}

type OptimizedAssignment struct {
	Assignment Assignment
	// Matrix is indexed [candidate][reader].
	Matrix  [][]bool
	Rewards Rewards
	Total   float64
}

type ReadingOptimizerOptions struct {
	Logger  *logrus.Entry
	Metrics *metrics.Recorder
}

// ReadingOptimizer picks the assignment with the highest total reward among all
// assignments satisfying coverage and the floor/ceil load bounds.
type ReadingOptimizer struct {
	opts ReadingOptimizerOptions
}

func NewReadingOptimizer(opts ReadingOptimizerOptions) *ReadingOptimizer {
	return &ReadingOptimizer{opts: opts}
}

// Optimize solves the 0/1 program as a min-cost flow. Reader floors carry a bonus larger
// than any achievable reward so they are always filled before rewards are compared.
func (o *ReadingOptimizer) Optimize(ctx context.Context, rewards Rewards, n int) (OptimizedAssignment, error) {
	if err := checkAssignmentInput(rewards.Readers, rewards.Candidates, n); err != nil {
		return OptimizedAssignment{}, err
	}
	if err := rewards.validate(); err != nil {
		return OptimizedAssignment{}, err
	}

	nc, nr := len(rewards.Candidates), len(rewards.Readers)
	lo, hi := loadBounds(nc, nr, n)
	bonus := 1.0
	for _, row := range rewards.Weights {
		for _, w := range row {
			bonus += 2 * math.Abs(w)
		}
	}

	source, sink := 0, nc+nr+1
	g := solver.NewGraph(nc + nr + 2)
	edges := make([][]int, nc)
	for c := range nc {
		g.AddEdge(source, 1+c, n, 0)
		edges[c] = make([]int, nr)
		for r := range nr {
			edges[c][r] = g.AddEdge(1+c, 1+nc+r, 1, -rewards.Weights[c][r])
		}
	}
	floors := make([]int, nr)
	for r := range nr {
		floors[r] = g.AddEdge(1+nc+r, sink, lo, -bonus)
		if hi > lo {
			g.AddEdge(1+nc+r, sink, hi-lo, 0)
		}
	}

	flow, _ := g.MinCostFlow(source, sink, nc*n)
	if flow != nc*n {
		return OptimizedAssignment{}, errors.Wrapf(ErrInfeasible, "covered %d of %d reads", flow, nc*n)
	}
	var short []string
	for r, id := range floors {
		if g.Flow(id) != lo {
			short = append(short, rewards.Readers[r])
		}
	}
	if len(short) > 0 {
		return OptimizedAssignment{}, errors.Wrapf(ErrInfeasible, "readers below %d candidates: %s", lo, strings.Join(short, ", "))
	}

	out := OptimizedAssignment{
		Assignment: make(Assignment, nr),
		Matrix:     make([][]bool, nc),
		Rewards:    rewards,
	}
	for _, reader := range rewards.Readers {
		out.Assignment[reader] = []string{}
	}
	for c := range nc {
		out.Matrix[c] = make([]bool, nr)
		for r := range nr {
			if g.Flow(edges[c][r]) == 1 {
				out.Matrix[c][r] = true
				reader := rewards.Readers[r]
				out.Assignment[reader] = append(out.Assignment[reader], rewards.Candidates[c])
				out.Total += rewards.Weights[c][r]
			}
		}
	}
	if err := ValidateAssignment(out.Assignment, rewards.Readers, rewards.Candidates, n); err != nil {
		return OptimizedAssignment{}, err
	}

	o.opts.Metrics.Assignment("optimized")
	o.opts.Metrics.Objective(out.Total)
	logWithFields(ctx, o.opts.Logger, logrus.InfoLevel, "optimized reading assignment built", logrus.Fields{
		"readers":    nr,
		"candidates": nc,
		"per":        n,
		"total":      out.Total,
	})
	return out, nil
}
