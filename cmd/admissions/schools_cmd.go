package main

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/admissions/modules/admissions/infrastructure/persistence"
	"github.com/iota-uz/admissions/modules/admissions/services"
)

type schoolsOptions struct {
	applicants    string
	sheet         string
	report        string
	subHeaderRows int
}

func newSchoolsCmd(a *app) *cobra.Command {
	var opts schoolsOptions

	cmd := &cobra.Command{
		Use:   "schools",
		Short: "Match every applicant's undergraduate and graduate schools",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchools(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.applicants, "applicants", "", "Applicant export (.xlsx, .csv or .db) (required)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Sheet holding the applicants (default: first sheet)")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write a school report to this file")
	cmd.Flags().IntVar(&opts.subHeaderRows, "subheader-rows", 1, "Rows between the header and the first applicant")
	return cmd
}

func runSchools(ctx context.Context, a *app, opts schoolsOptions) (err error) {
	if opts.applicants == "" {
		return withCode(exitUsage, errors.New("--applicants is required"))
	}
	if opts.subHeaderRows < 0 {
		return withCode(exitUsage, errors.New("--subheader-rows must not be negative"))
	}

	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer finishSession(sess, &err)

	applicants, err := persistence.LoadApplicants(opts.applicants, sess.Ledger(), persistence.ApplicantOptions{
		Sheet:         opts.sheet,
		SubHeaderRows: opts.subHeaderRows,
		Logger:        a.logger,
	})
	if err != nil {
		return loadError(err)
	}

	assigner := services.NewSchoolAssigner(a.newResolver(sess), sess.Ledger(), a.asker, services.SchoolAssignerOptions{
		Countries: a.countries(),
		Logger:    a.logger,
		Metrics:   a.metrics,
	})
	unresolved, err := assigner.AssignAll(ctx, applicants)
	if err != nil {
		return err
	}
	for _, name := range unresolved {
		fmt.Fprintf(a.stdout, "no school found for %s\n", name)
	}
	a.logger.WithFields(logrus.Fields{
		"applicants": len(applicants),
		"unresolved": len(unresolved),
	}).Info("school matching finished")

	if opts.report == "" {
		return nil
	}
	rows, err := assigner.Report(ctx, applicants)
	var missing *services.MissingDataError
	if errors.As(err, &missing) {
		// Applicants without a match were already listed above.
		a.logger.WithField("applicants", missing.IDs).Warn("left out of the report")
	} else if err != nil {
		return err
	}
	if err := persistence.WriteSchoolReport(opts.report, rows); err != nil {
		return withCode(exitStorage, err)
	}
	fmt.Fprintf(a.stdout, "report written to %s (%d applicants)\n", opts.report, len(rows))
	return nil
}
