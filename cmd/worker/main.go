package main

import (
	"context"
	"encoding/hex"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nlozovan/budget-ledger/internal/accounts"
	"github.com/nlozovan/budget-ledger/internal/aggregator"
	"github.com/nlozovan/budget-ledger/internal/credential"
	"github.com/nlozovan/budget-ledger/internal/jobs"
	jobsmem "github.com/nlozovan/budget-ledger/internal/jobs/inmemory"
	"github.com/nlozovan/budget-ledger/internal/ledger"
	gcsledger "github.com/nlozovan/budget-ledger/internal/ledger/gcs"
	ledgermem "github.com/nlozovan/budget-ledger/internal/ledger/inmemory"
	"github.com/nlozovan/budget-ledger/internal/logger"
	"github.com/nlozovan/budget-ledger/internal/syncer"
)

func main() {
	var (
		bucket        = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket holding per-user ledgers (empty = in-memory store, or set GCS_BUCKET env)")
		accountsFile  = flag.String("accounts", envOr("ACCOUNTS_FILE", "accounts.json"), "path to the linked-accounts registry JSON (or set ACCOUNTS_FILE env)")
		aggregatorURL = flag.String("aggregator-url", os.Getenv("AGGREGATOR_URL"), "base URL of the transaction aggregator API (or set AGGREGATOR_URL env)")
		credentialKey = flag.String("credential-key", os.Getenv("CREDENTIAL_KEY"), "hex-encoded 32-byte key sealing institution credentials (or set CREDENTIAL_KEY env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *aggregatorURL == "" {
		log.Fatal().Msg("Aggregator URL is required (set -aggregator-url or AGGREGATOR_URL)")
	}

	ledgerStore := buildLedgerStore(ctx, *bucket, log)

	registry, err := accounts.NewRegistryFromFile(*accountsFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", *accountsFile).Msg("Failed to load account registry")
	}

	creds := buildCredentialStore(*credentialKey, log)
	client := aggregator.NewHTTPClient(*aggregatorURL)
	reconciler := syncer.New(ledgerStore, client, creds, nil)

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := jobsmem.NewStore()
	jobQueue := jobsmem.NewQueue(100, jobStore)

	log.Info().Msg("Starting sync worker service")

	handler := func(ctx context.Context, job *jobs.SyncLedgerJob) error {
		ctx = logger.WithContext(ctx, log)

		accts, err := registry.AccountsForUser(ctx, job.UserID)
		if err != nil {
			return err
		}

		outcome, err := reconciler.SyncTransactions(ctx, job.UserID, accts, job.StartDate)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", job.JobID).
				Str("user_id", job.UserID).
				Msg("Sync job failed")
			return err
		}

		job.Outcome = outcome
		log.Info().
			Str("job_id", job.JobID).
			Str("user_id", job.UserID).
			Int("added", outcome.Added).
			Int("modified", outcome.Modified).
			Int("removed", outcome.Removed).
			Msg("Sync job completed")
		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}

func buildLedgerStore(ctx context.Context, bucket string, log zerolog.Logger) ledger.Store {
	if bucket == "" {
		log.Warn().Msg("No GCS bucket configured - using in-memory ledger store")
		return ledgermem.NewStore()
	}

	store, err := gcsledger.NewStore(ctx, bucket)
	if err != nil {
		log.Fatal().Err(err).Str("bucket", bucket).Msg("Failed to create GCS ledger store")
	}
	return store
}

func buildCredentialStore(keyHex string, log zerolog.Logger) *credential.Store {
	if keyHex == "" {
		log.Fatal().Msg("Credential key is required (set -credential-key or CREDENTIAL_KEY)")
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("Credential key is not valid hex")
	}

	store, err := credential.NewStore(key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create credential store")
	}
	return store
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
