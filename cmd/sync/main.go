package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nlozovan/budget-ledger/internal/accounts"
	"github.com/nlozovan/budget-ledger/internal/aggregator"
	"github.com/nlozovan/budget-ledger/internal/credential"
	gcsledger "github.com/nlozovan/budget-ledger/internal/ledger/gcs"
	"github.com/nlozovan/budget-ledger/internal/logger"
	"github.com/nlozovan/budget-ledger/internal/report"
	"github.com/nlozovan/budget-ledger/internal/syncer"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	userID := flag.String("user", "", "User ID to sync (required)")
	startDateStr := flag.String("start-date", "", "Start of the fetch window in YYYY-MM-DD format (default: 30 days ago)")
	bucket := flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket holding per-user ledgers (required, or set GCS_BUCKET env)")
	accountsFile := flag.String("accounts", envOr("ACCOUNTS_FILE", "accounts.json"), "Path to the linked-accounts registry JSON")
	aggregatorURL := flag.String("aggregator-url", os.Getenv("AGGREGATOR_URL"), "Base URL of the transaction aggregator API")
	credentialKey := flag.String("credential-key", os.Getenv("CREDENTIAL_KEY"), "Hex-encoded 32-byte key sealing institution credentials")
	flag.Parse()

	// Validate required flags
	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if *bucket == "" {
		log.Fatal().Msg("Error: --bucket is required")
	}
	if *aggregatorURL == "" {
		log.Fatal().Msg("Error: --aggregator-url is required")
	}
	if *credentialKey == "" {
		log.Fatal().Msg("Error: --credential-key is required")
	}

	startDate := time.Now().AddDate(0, 0, -30)
	if *startDateStr != "" {
		parsed, err := time.Parse("2006-01-02", *startDateStr)
		if err != nil {
			log.Fatal().Err(err).Str("start_date", *startDateStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
		}
		startDate = parsed
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("user_id", *userID).
		Time("start_date", startDate).
		Msg("Starting ledger sync")

	registry, err := accounts.NewRegistryFromFile(*accountsFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", *accountsFile).Msg("Failed to load account registry")
	}

	accts, err := registry.AccountsForUser(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve accounts")
	}

	key, err := hex.DecodeString(*credentialKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Credential key is not valid hex")
	}
	creds, err := credential.NewStore(key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create credential store")
	}

	ledgerStore, err := gcsledger.NewStore(ctx, *bucket)
	if err != nil {
		log.Fatal().Err(err).Str("bucket", *bucket).Msg("Failed to create GCS ledger store")
	}

	client := aggregator.NewHTTPClient(*aggregatorURL)
	reconciler := syncer.New(ledgerStore, client, creds, nil)

	outcome, err := reconciler.SyncTransactions(ctx, *userID, accts, startDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	out, err := json.MarshalIndent(report.BuildSyncReport(outcome), "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render report")
	}
	fmt.Println(string(out))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
