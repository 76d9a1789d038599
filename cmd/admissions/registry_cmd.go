package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/admissions/modules/admissions/infrastructure/persistence"
	"github.com/iota-uz/admissions/modules/admissions/services"
	"github.com/iota-uz/admissions/pkg/scrape"
)

func newRegistryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Maintain the institution registry",
	}
	cmd.AddCommand(newRegistryImportCmd(a))
	cmd.AddCommand(newRegistryImportGradesCmd(a))
	cmd.AddCommand(newRegistrySearchCmd(a))
	cmd.AddCommand(newRegistryValidateCmd(a))
	return cmd
}

func newRegistryImportCmd(a *app) *cobra.Command {
	var (
		file   string
		rerank bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Add institutions from a ranking list with Name, Rank and Country columns",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if file == "" {
				return withCode(exitUsage, errors.New("--file is required"))
			}
			rows, err := persistence.LoadRankingList(file)
			if err != nil {
				return loadError(err)
			}
			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer finishSession(sess, &err)

			res := services.NewImporter(sess.Registry(), a.countries(), a.logger).ImportRankings(cmd.Context(), rows, rerank)
			printImport(a, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Ranking list (.xlsx, .csv or .db) (required)")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Overwrite ranks of institutions already registered")
	return cmd
}

func newRegistryImportGradesCmd(a *app) *cobra.Command {
	var url, file string
	cmd := &cobra.Command{
		Use:   "import-grades",
		Short: "Add institutions listed in the public GPA conversion table",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			rows, err := loadGradeRows(cmd.Context(), url, file)
			if err != nil {
				return err
			}
			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer finishSession(sess, &err)

			res := services.NewImporter(sess.Registry(), a.countries(), a.logger).ImportGrades(cmd.Context(), rows)
			printImport(a, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", scrape.DefaultGradeURL, "Page with the conversion table")
	cmd.Flags().StringVar(&file, "file", "", "Saved copy of the page; wins over --url")
	return cmd
}

func loadGradeRows(ctx context.Context, url, file string) ([]scrape.GradeRow, error) {
	if file == "" {
		rows, err := scrape.FetchGradeTable(ctx, scrape.NewHTTPFetcher(), url)
		if err != nil {
			return nil, withCode(exitStorage, err)
		}
		return rows, nil
	}
	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, withCode(exitMissingData, &services.MissingDataError{Kind: "grade table", IDs: []string{file}})
		}
		return nil, withCode(exitStorage, err)
	}
	defer f.Close()
	rows, err := scrape.ParseGradeTable(f)
	if err != nil {
		return nil, withCode(exitStorage, errors.Wrapf(err, "parse %s", file))
	}
	return rows, nil
}

func printImport(a *app, res services.ImportResult) {
	fmt.Fprintf(a.stdout, "added %d, reranked %d, skipped %d, rejected %d\n",
		res.Added, res.Reranked, res.Skipped, len(res.Rejected))
	for _, r := range res.Rejected {
		fmt.Fprintf(a.stdout, "rejected: %s\n", r)
	}
	a.logger.WithFields(logrus.Fields{
		"added":    res.Added,
		"reranked": res.Reranked,
		"skipped":  res.Skipped,
		"rejected": len(res.Rejected),
	}).Info("registry import finished")
}

func newRegistrySearchCmd(a *app) *cobra.Command {
	var (
		country string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search canonical names and aliases",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Discard()

			if country != "" {
				if country, err = a.countries().Canonicalize(country); err != nil {
					return withCode(exitUsage, err)
				}
			}
			hits := sess.Registry().Search(args[0], country, limit)
			for _, h := range hits {
				via := ""
				if h.Alias != "" {
					via = "via " + h.Alias
				}
				fmt.Fprintf(a.stdout, "%s\t%s\t%d\t%s\n", h.Name, h.Country, h.Rank, via)
			}
			if len(hits) == 0 {
				fmt.Fprintln(a.stdout, "no matches")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "Only institutions in this country")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of hits")
	return cmd
}

func newRegistryValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the registry, alias and ignore tables for inconsistencies",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Discard()

			findings := sess.Registry().Audit()
			for _, f := range findings {
				fmt.Fprintln(a.stdout, f)
			}
			if len(findings) > 0 {
				return withCode(exitValidation, &services.IntegrityError{
					Subject: fmt.Sprintf("%d registry findings", len(findings)),
				})
			}
			fmt.Fprintln(a.stdout, "registry is consistent")
			return nil
		},
	}
}
