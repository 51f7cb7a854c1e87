// Package app wires configuration into a ready-to-run availability checker.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog"
	"github.com/samsarahq/go/oops"

	"github.com/KevinXing/housing-alert/go/config"
	"github.com/KevinXing/housing-alert/go/crawler"
	"github.com/KevinXing/housing-alert/go/listing"
	"github.com/KevinXing/housing-alert/go/notify"
	"github.com/KevinXing/housing-alert/go/state"
)

type App struct {
	Config   *config.Config
	Store    state.Store
	Checker  *crawler.Checker
	Commands *notify.Commands

	logger zerolog.Logger
}

func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	fetcher, err := NewFetcher(cfg)
	if err != nil {
		return nil, err
	}
	notifier := notify.NewTelegram(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.TelegramChatID, &http.Client{Timeout: cfg.FetchTimeout}, logger)
	classifier := crawler.NewClassifier(crawler.DefaultPhrases, logger)

	// Long polls hold the request open past the fetch timeout.
	bot := notify.NewTelegram(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.TelegramChatID, &http.Client{Timeout: time.Minute}, logger)

	return &App{
		Config:   cfg,
		Store:    store,
		Checker:  crawler.NewChecker(fetcher, classifier, store, notifier, cfg.FetchConcurrency, logger),
		Commands: notify.NewCommands(bot),
		logger:   logger,
	}, nil
}

// RunOnce reloads the address file and runs one check over it.
func (a *App) RunOnce(ctx context.Context) (*crawler.RunResult, error) {
	entries, err := listing.LoadFile(a.Config.AddressesFile, a.logger)
	if err != nil {
		return nil, oops.Wrapf(err, "load listings")
	}
	if len(entries) == 0 {
		a.logger.Warn().Str("file", a.Config.AddressesFile).Msg("address file has no listings")
	}
	return a.Checker.Run(ctx, entries)
}

func NewStore(cfg *config.Config) (state.Store, error) {
	switch cfg.StateBackend {
	case "s3", "dynamodb":
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return nil, oops.Wrapf(err, "create aws session")
		}
		if cfg.StateBackend == "s3" {
			return state.NewS3Store(s3.New(sess), cfg.S3Bucket, cfg.S3Key), nil
		}
		return state.NewDynamoStore(dynamodb.New(sess), cfg.DynamoDBTable), nil
	case "file", "":
		return state.NewFileStore(cfg.StateFile), nil
	}
	return nil, oops.Errorf("unknown state backend %q", cfg.StateBackend)
}

func NewFetcher(cfg *config.Config) (crawler.Fetcher, error) {
	switch cfg.Fetcher {
	case "tls":
		return crawler.NewTLSFetcher(int(cfg.FetchTimeout.Seconds()), cfg.UserAgent)
	case "colly", "":
		return crawler.NewCollyFetcher(cfg.FetchTimeout, cfg.UserAgent), nil
	}
	return nil, oops.Errorf("unknown fetcher %q", cfg.Fetcher)
}
