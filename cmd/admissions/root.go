package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/admissions/modules/admissions/infrastructure/persistence"
	"github.com/iota-uz/admissions/modules/admissions/services"
	"github.com/iota-uz/admissions/pkg/configuration"
	"github.com/iota-uz/admissions/pkg/country"
	"github.com/iota-uz/admissions/pkg/logging"
	"github.com/iota-uz/admissions/pkg/metrics"
	"github.com/iota-uz/admissions/pkg/prompt"
)

// app carries what every subcommand shares. It is filled in by the root command's
// PersistentPreRunE.
type app struct {
	configPath    string
	decisionsPath string
	envFiles      []string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg     *configuration.Configuration
	logger  *logrus.Entry
	metrics *metrics.Recorder
	asker   prompt.Asker
	runID   string
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admissions",
		Short:         "Institution reconciliation and application reading assignment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(exitUsage, err)
	})

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML file with configuration keys (env names)")
	cmd.PersistentFlags().StringVar(&a.decisionsPath, "decisions", "", "YAML file of scripted answers, asked before the console")

	cmd.AddCommand(newResolveCmd(a))
	cmd.AddCommand(newSchoolsCmd(a))
	cmd.AddCommand(newAssignCmd(a))
	cmd.AddCommand(newRegistryCmd(a))
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := configuration.Load(a.configPath, a.envFiles)
	if err != nil {
		return withCode(exitUsage, err)
	}
	a.cfg = cfg
	a.runID = uuid.NewString()
	a.logger = logging.NewLogger(a.stderr, cfg.LogrusLogLevel()).WithField("run_id", a.runID)
	a.metrics = metrics.New()

	console := prompt.NewConsole(a.stdin, a.stdout)
	a.asker = console
	if a.decisionsPath != "" {
		script, err := prompt.LoadScript(a.decisionsPath)
		if err != nil {
			return withCode(exitUsage, err)
		}
		a.asker = prompt.Chain(script, console)
	}

	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))
	a.logger.WithField("command", cmd.CommandPath()).Debug("starting")
	return nil
}

func (a *app) openSession(ctx context.Context) (*persistence.Session, error) {
	paths := persistence.Paths{
		Rankings: a.cfg.Files.Rankings,
		Aliases:  a.cfg.Files.Aliases,
		Util:     a.cfg.Files.Util,
	}
	a.logger.WithField("tables", a.cfg.TableFiles()).Debug("opening session")
	sess, err := persistence.Open(ctx, paths, persistence.Options{Backup: a.cfg.Backup, Logger: a.logger})
	if err != nil {
		if errors.Is(err, services.ErrDataIntegrity) {
			return nil, withCode(exitValidation, err)
		}
		return nil, withCode(exitStorage, err)
	}
	return sess, nil
}

// finishSession ends sess with Close or Discard and tags flush failures.
func finishSession(sess *persistence.Session, errp *error) {
	failed := *errp != nil
	sess.Finish(errp)
	if failed || *errp == nil {
		return
	}
	if errors.Is(*errp, services.ErrDataIntegrity) {
		*errp = withCode(exitValidation, *errp)
		return
	}
	*errp = withCode(exitStorage, *errp)
}

func (a *app) newResolver(sess *persistence.Session) *services.Resolver {
	return services.NewResolver(sess.Registry(), a.asker, services.ResolverOptions{
		AutoAcceptScore: a.cfg.Resolver.AutoAcceptScore,
		DefaultRank:     a.cfg.Resolver.DefaultRank,
		Logger:          a.logger,
		Metrics:         a.metrics,
	})
}

func (a *app) countries() *country.Canonicalizer {
	return country.Default()
}

// usageArgs marks argument-count failures as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return withCode(exitUsage, check(cmd, args))
	}
}

// finish writes the metrics textfile when one is configured.
func (a *app) finish() {
	if a.cfg == nil {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.logger.WithError(err).Warn("metrics not written")
	}
}

// execute runs one command line and always gives metrics a chance to be written.
func (a *app) execute(args []string) error {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	a.finish()
	return err
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{
		envFiles: configuration.DefaultEnvFiles,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
	}
	err := a.execute(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
	}
	return exitCode(err)
}

func Execute() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
