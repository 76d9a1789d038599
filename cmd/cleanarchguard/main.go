// Command cleanarchguard checks that the admissions module keeps its layers apart:
// domain packages import nothing from services or infrastructure, and services never
// import infrastructure.
package main

import (
	"os"

	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/admissions/pkg/logging"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:           "cleanarchguard",
		Short:         "Check layer boundaries of the admissions modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger(cmd.ErrOrStderr(), logrus.InfoLevel)
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if debug {
				cleanarch.Log.SetOutput(cmd.ErrOrStderr())
			}
			violations, err := check(cfg)
			if err != nil {
				return err
			}
			for _, v := range violations {
				logger.WithField("root", cfg.Root).Error(v)
			}
			if len(violations) > 0 {
				return &violationError{count: len(violations)}
			}
			logger.WithField("root", cfg.Root).Info("layer boundaries hold")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", ".gocleanarch.yml", "Guard configuration; defaults apply when the file is missing")
	cmd.Flags().BoolVar(&debug, "debug", false, "Show go-cleanarch debug output")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.ConsoleLogger(logrus.ErrorLevel).Error(err)
		os.Exit(1)
	}
}
