package main

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/admissions/modules/admissions/infrastructure/persistence"
	"github.com/iota-uz/admissions/modules/admissions/services"
)

type assignOptions struct {
	roster   string
	rewards  string
	out      string
	n        int
	seed     int64
	strategy string
}

func newAssignCmd(a *app) *cobra.Command {
	var opts assignOptions

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign application readers to candidates",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("seed") {
				opts.seed = time.Now().UnixNano()
			}
			return runAssign(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.roster, "roster", "", "Workbook with Readers and Candidates sheets")
	cmd.Flags().StringVar(&opts.rewards, "rewards", "", "Workbook with a Rewards sheet; switches to the optimizer")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output workbook (required)")
	cmd.Flags().IntVarP(&opts.n, "readers", "n", 0, "Readers per candidate (default: ADMISSIONS_READERS_PER_CANDIDATE)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Random seed (default: time based)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", string(services.StrategyDraw), "Randomized strategy: draw or rotate. draw can exhaust its retries on large rosters; rotate always succeeds when n is feasible")
	return cmd
}

func runAssign(ctx context.Context, a *app, opts assignOptions) error {
	if opts.out == "" {
		return withCode(exitUsage, errors.New("--out is required"))
	}
	if opts.roster == "" && opts.rewards == "" {
		return withCode(exitUsage, errors.New("--roster or --rewards is required"))
	}
	n := opts.n
	if n == 0 {
		n = a.cfg.Reading.ReadersPerCandidate
	}
	if n < 1 {
		return withCode(exitUsage, errors.New("readers per candidate must be positive"))
	}

	var roster persistence.Roster
	if opts.roster != "" {
		r, err := persistence.LoadRoster(opts.roster)
		if err != nil {
			return loadError(err)
		}
		roster = r
	}

	if opts.rewards != "" {
		return runOptimize(ctx, a, roster, opts, n)
	}

	strategy, err := services.ParseStrategy(opts.strategy)
	if err != nil {
		return withCode(exitUsage, err)
	}
	a.logger.WithFields(logrus.Fields{"seed": opts.seed, "strategy": strategy}).Info("assigning readers")
	assigner := services.NewReadingAssigner(services.ReadingAssignerOptions{
		Strategy:        strategy,
		MaxDrawAttempts: a.cfg.Reading.MaxDrawAttempts,
		MaxRuns:         a.cfg.Reading.MaxRestarts + 1,
		Rand:            rand.New(rand.NewSource(opts.seed)),
		Logger:          a.logger,
		Metrics:         a.metrics,
	})
	asg, err := assigner.Assign(ctx, roster.Readers, roster.Candidates, n)
	if errors.Is(err, services.ErrDrawFailed) {
		return errors.Wrap(err, "retry with --strategy rotate")
	}
	if err != nil {
		return err
	}
	if err := persistence.WriteAssignment(opts.out, asg); err != nil {
		return withCode(exitStorage, err)
	}
	printLoads(a, asg)
	return nil
}

func runOptimize(ctx context.Context, a *app, roster persistence.Roster, opts assignOptions, n int) error {
	rewards, err := persistence.LoadRewards(opts.rewards)
	if err != nil {
		return loadError(err)
	}
	if opts.roster != "" {
		if rewards, err = restrictRewards(rewards, roster); err != nil {
			return loadError(err)
		}
	}
	res, err := services.NewReadingOptimizer(services.ReadingOptimizerOptions{
		Logger:  a.logger,
		Metrics: a.metrics,
	}).Optimize(ctx, rewards, n)
	if err != nil {
		return err
	}
	if err := persistence.WriteOptimizedAssignment(opts.out, res); err != nil {
		return withCode(exitStorage, err)
	}
	printLoads(a, res.Assignment)
	fmt.Fprintf(a.stdout, "total reward %g\n", res.Total)
	return nil
}

// restrictRewards keeps the roster's people, in roster order. Every pair must have a reward.
func restrictRewards(rw services.Rewards, roster persistence.Roster) (services.Rewards, error) {
	readerAt := indexOf(rw.Readers)
	candAt := indexOf(rw.Candidates)
	var missing []string
	for _, r := range roster.Readers {
		if _, ok := readerAt[r]; !ok {
			missing = append(missing, "reader "+r)
		}
	}
	for _, c := range roster.Candidates {
		if _, ok := candAt[c]; !ok {
			missing = append(missing, "candidate "+c)
		}
	}
	if len(missing) > 0 {
		return services.Rewards{}, &services.MissingDataError{Kind: "rewards", IDs: missing}
	}
	out := services.Rewards{Readers: roster.Readers, Candidates: roster.Candidates}
	for _, c := range roster.Candidates {
		row := make([]float64, len(roster.Readers))
		for j, r := range roster.Readers {
			row[j] = rw.Weights[candAt[c]][readerAt[r]]
		}
		out.Weights = append(out.Weights, row)
	}
	return out, nil
}

func indexOf(xs []string) map[string]int {
	m := make(map[string]int, len(xs))
	for i, x := range xs {
		m[x] = i
	}
	return m
}

func printLoads(a *app, asg services.Assignment) {
	loads := asg.Loads()
	readers := make([]string, 0, len(loads))
	for r := range loads {
		readers = append(readers, r)
	}
	sort.Strings(readers)
	for _, r := range readers {
		fmt.Fprintf(a.stdout, "%s\t%d\n", r, loads[r])
	}
}

func loadError(err error) error {
	if errors.Is(err, services.ErrMissingData) {
		return withCode(exitMissingData, err)
	}
	return withCode(exitStorage, err)
}
