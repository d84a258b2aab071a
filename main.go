package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prsmoke/internal"
	"prsmoke/pkg/bitbucket"
	"prsmoke/pkg/flow"
	"prsmoke/pkg/oauth"
	"prsmoke/pkg/storage"
	"prsmoke/pkg/storage/hunks"
	"prsmoke/pkg/storage/repos"

	"github.com/joho/godotenv"
)

func main() {
	logger := internal.NewLogger("run")
	if err := run(logger); err != nil {
		logger.Printf("smoke run failed: %v", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	configPath := flag.String("config", "", "Path to YAML config; falls back to PRSMOKE_* environment variables")
	flag.Parse()

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	var cfg internal.Config
	var err error
	if *configPath != "" {
		cfg, err = internal.LoadConfig(*configPath)
	} else {
		cfg, err = internal.ConfigFromEnv()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dsn, err := cfg.Storage.ResolveDSN()
	if err != nil {
		return err
	}
	db, err := storage.Open(storage.Config{Driver: cfg.Storage.Driver, DSN: dsn})
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(db); err != nil {
			logger.Printf("close database: %v", err)
		}
	}()

	publisher, err := internal.NewPublisher(cfg.Delivery)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Printf("close publisher: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := &flow.Runner{
		Tokens: func(ctx context.Context) (oauth.TokenBundle, error) {
			return oauth.Acquire(ctx, oauth.Config{
				ClientID:     cfg.OAuth.ClientID,
				ClientSecret: cfg.OAuth.ClientSecret,
				TokenURL:     cfg.OAuth.TokenURL,
			}, []string{cfg.Flow.Workspace})
		},
		NewAPI: func(accessToken string) flow.API {
			return bitbucket.NewClient(cfg.API.BaseURL, accessToken)
		},
		Repos:     repos.New(db, cfg.Storage.ReposTable),
		Hunks:     hunks.New(db, cfg.Storage.HunksTable),
		Publisher: publisher,
		Logger:    logger,
		Opts: flow.Options{
			Workspace:         cfg.Flow.Workspace,
			RepoName:          cfg.Flow.RepoName,
			Provider:          cfg.Flow.Provider,
			WebhookURL:        cfg.Flow.WebhookURL,
			SourceBranch:      cfg.Flow.SourceBranch,
			DestinationBranch: cfg.Flow.DestinationBranch,
			FileName:          cfg.Flow.FileName,
			FileContent:       cfg.Flow.FileContent,
			CommitMessage:     cfg.Flow.CommitMessage,
			PRTitle:           cfg.Flow.PRTitle,
			PRReason:          cfg.Flow.PRReason,
			PollDelay:         time.Duration(cfg.Flow.PollDelayMS) * time.Millisecond,
		},
	}
	return runner.Run(ctx)
}
