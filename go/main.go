package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kr/pretty"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/KevinXing/housing-alert/go/app"
	"github.com/KevinXing/housing-alert/go/config"
	"github.com/KevinXing/housing-alert/go/crawler"
	"github.com/KevinXing/housing-alert/go/logging"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "housing-alert",
		Short:         "Watch housing listings and send a Telegram message when availability changes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), watchCmd(), classifyCmd(), stateCmd())
	return root
}

func setup() (*app.App, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, err := logging.New(cfg.LogOptions())
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, logger, err
	}
	return a, logger, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check every listing once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := setup()
			if err != nil {
				return err
			}
			_, err = a.RunOnce(cmd.Context())
			return err
		},
	}
}

func watchCmd() *cobra.Command {
	var schedule string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check every listing now and then on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := setup()
			if err != nil {
				return err
			}
			if schedule == "" {
				schedule = a.Config.CheckSchedule
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			check := func() {
				if _, err := a.RunOnce(ctx); err != nil {
					logger.Error().Err(err).Msg("availability check failed")
				}
			}

			cl := cronLogger{logger: logger.With().Str("module", "cron").Logger()}
			c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
			if _, err := c.AddFunc(schedule, check); err != nil {
				return fmt.Errorf("invalid check schedule %q: %w", schedule, err)
			}

			if a.Config.TelegramCommands {
				go a.Commands.Run(ctx)
			}

			logger.Info().Str("schedule", schedule).Msg("watching listings")
			check()
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			logger.Info().Msg("stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule, overrides CHECK_SCHEDULE")
	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>",
		Short: "Classify a saved listing page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
			status := crawler.NewClassifier(crawler.DefaultPhrases, logger).Classify(string(content))
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the stored availability snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := setup()
			if err != nil {
				return err
			}
			snapshot, err := a.Store.Load(cmd.Context())
			if err != nil {
				return err
			}
			pretty.Fprintf(cmd.OutOrStdout(), "%# v\n", snapshot)
			return nil
		},
	}
}

// cronLogger routes robfig/cron logs through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
