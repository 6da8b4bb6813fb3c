package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nlozovan/budget-ledger/internal/importer"
	"github.com/nlozovan/budget-ledger/internal/ledger"
	bqledger "github.com/nlozovan/budget-ledger/internal/ledger/bigquery"
	gcsledger "github.com/nlozovan/budget-ledger/internal/ledger/gcs"
	"github.com/nlozovan/budget-ledger/internal/logger"
	"github.com/nlozovan/budget-ledger/internal/match"
	"github.com/nlozovan/budget-ledger/internal/report"
)

func main() {
	log := logger.New()

	userID := flag.String("user", "", "User ID whose ledger the export is matched against (required)")
	filePath := flag.String("file", "", "Path to the bank CSV export (required)")
	bucket := flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket holding per-user ledgers (or set GCS_BUCKET env)")
	bqProject := flag.String("bq-project", os.Getenv("BQ_PROJECT"), "BigQuery project of the analytical ledger (alternative to --bucket)")
	bqDataset := flag.String("bq-dataset", envOr("BQ_DATASET", "budget_ledger"), "BigQuery dataset of the analytical ledger")
	flag.Parse()

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to open export")
	}
	defer f.Close()

	candidates, warnings, err := importer.ParseCSV(ctx, f)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse export")
	}
	for _, w := range warnings {
		log.Warn().Str("file", *filePath).Msg(w)
	}

	store := buildLedgerStore(ctx, *bucket, *bqProject, *bqDataset, log)

	transactions, err := store.Load(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Str("user_id", *userID).Msg("Failed to load ledger")
	}

	result := match.FindMatches(candidates, transactions, match.DefaultOptions())
	groups := match.GroupByDuplicates(result, candidates)
	preview := report.BuildImportPreview(result, groups, len(candidates))

	out, err := json.MarshalIndent(preview, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render preview")
	}
	fmt.Println(string(out))

	fmt.Printf("\n%d candidates: %d likely duplicates, %d new (%d flagged for review)\n",
		preview.TotalCandidates, preview.LikelyDuplicates, preview.NewTransactions, preview.ForReview)
}

// buildLedgerStore picks the ledger backend: the GCS bucket when named,
// otherwise the analytical BigQuery store.
func buildLedgerStore(ctx context.Context, bucket, bqProject, bqDataset string, log zerolog.Logger) ledger.Store {
	if bucket != "" {
		store, err := gcsledger.NewStore(ctx, bucket)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", bucket).Msg("Failed to create GCS ledger store")
		}
		return store
	}

	if bqProject == "" {
		log.Fatal().Msg("Error: either --bucket or --bq-project is required")
	}

	store, err := bqledger.NewStore(ctx, bqProject, bqDataset)
	if err != nil {
		log.Fatal().Err(err).Str("project", bqProject).Msg("Failed to create BigQuery ledger store")
	}
	return store
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
