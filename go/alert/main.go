package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"github.com/KevinXing/housing-alert/go/app"
	"github.com/KevinXing/housing-alert/go/config"
	"github.com/KevinXing/housing-alert/go/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config fail: %v", err)
	}
	logger, err := logging.New(cfg.LogOptions())
	if err != nil {
		log.Fatalf("create logger fail: %v", err)
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("create checker fail: %v", err)
	}
	lambda.Start(handler(a, logger))
}

// handler runs one pass per invocation; scheduling is left to an EventBridge rule.
func handler(a *app.App, logger zerolog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		result, err := a.RunOnce(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("availability check failed")
			return err
		}
		logger.Info().
			Int("changes", len(result.Events)).
			Int("failed", len(result.Failed)).
			Bool("notified", result.Notified).
			Msg("availability check success")
		return nil
	}
}
