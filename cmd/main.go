package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"intake-agent/handler"
	"intake-agent/internal/integrations/anthropic"
	"intake-agent/internal/integrations/paramstore"
	"intake-agent/internal/repository"
	"intake-agent/internal/store"
	"intake-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	paramPrefix := mustEnv("PARAM_PREFIX")
	archiveTable := os.Getenv("ARCHIVE_TABLE") // optional; empty disables archival
	model := os.Getenv("ANTHROPIC_MODEL")      // optional; client default applies
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 2000)
	retentionHours := envInt("SESSION_RETENTION_HOURS", 24)
	sweepMinutes := envInt("SWEEP_INTERVAL_MINUTES", 60)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	oracle, err := anthropic.NewClient(ssmClient, paramPrefix, anthropic.WithModel(model))
	if err != nil {
		slog.Error("failed to create oracle client", "err", err)
		os.Exit(1)
	}

	// ---- Session state ----
	sessions := store.New(store.WithRetention(time.Duration(retentionHours) * time.Hour))
	sweeper := store.NewSweeper(sessions, time.Duration(sweepMinutes)*time.Minute, slog.Default())
	sweeper.Start()
	defer sweeper.Stop()

	// ---- Services ----
	opts := []usecase.ConversationOption{usecase.WithMaxMessageLength(maxMessageLen)}
	if archiveTable != "" {
		archive, err := repository.New(awsdynamodb.NewFromConfig(cfg), archiveTable)
		if err != nil {
			slog.Error("failed to create archive client", "err", err)
			os.Exit(1)
		}
		opts = append(opts, usecase.WithArchiver(archive))
	}
	conversations, err := usecase.NewConversationService(sessions, oracle, opts...)
	if err != nil {
		slog.Error("failed to create conversation service", "err", err)
		os.Exit(1)
	}
	estimates, err := usecase.NewEstimateService(sessions, oracle)
	if err != nil {
		slog.Error("failed to create estimate service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(conversations, estimates)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
