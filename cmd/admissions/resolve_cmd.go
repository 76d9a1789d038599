package main

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/iota-uz/admissions/modules/admissions/services"
)

type resolveOptions struct {
	country string
	city    string
}

func newResolveCmd(a *app) *cobra.Command {
	var opts resolveOptions

	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve one raw institution name to its canonical form",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), a, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.country, "country", "", "Country of the institution (required)")
	cmd.Flags().StringVar(&opts.city, "city", "", "City, shown in prompts")
	return cmd
}

func runResolve(ctx context.Context, a *app, name string, opts resolveOptions) (err error) {
	if opts.country == "" {
		return withCode(exitUsage, errors.New("--country is required"))
	}
	country, err := a.countries().Canonicalize(opts.country)
	if err != nil {
		return withCode(exitUsage, errors.Wrap(err, "invalid --country"))
	}

	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer finishSession(sess, &err)

	out, err := a.newResolver(sess).Resolve(ctx, name, country, opts.city)
	if err != nil {
		return err
	}
	switch out.Kind {
	case services.OutcomeSkip:
		fmt.Fprintf(a.stdout, "skip\t%s\n", out.Source)
	default:
		fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", out.Kind, out.Name, out.Source)
	}
	return nil
}
