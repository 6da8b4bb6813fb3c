package main

import (
	"context"
	"encoding/hex"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nlozovan/budget-ledger/internal/accounts"
	"github.com/nlozovan/budget-ledger/internal/aggregator"
	"github.com/nlozovan/budget-ledger/internal/api/handlers"
	"github.com/nlozovan/budget-ledger/internal/api/middleware"
	"github.com/nlozovan/budget-ledger/internal/credential"
	"github.com/nlozovan/budget-ledger/internal/jobs"
	jobsmem "github.com/nlozovan/budget-ledger/internal/jobs/inmemory"
	"github.com/nlozovan/budget-ledger/internal/ledger"
	gcsledger "github.com/nlozovan/budget-ledger/internal/ledger/gcs"
	ledgermem "github.com/nlozovan/budget-ledger/internal/ledger/inmemory"
	"github.com/nlozovan/budget-ledger/internal/logger"
	"github.com/nlozovan/budget-ledger/internal/match"
	"github.com/nlozovan/budget-ledger/internal/syncer"
)

func main() {
	// Parse command-line flags
	var (
		port          = flag.String("port", "8080", "HTTP server port")
		bucket        = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket holding per-user ledgers (empty = in-memory store, or set GCS_BUCKET env)")
		accountsFile  = flag.String("accounts", envOr("ACCOUNTS_FILE", "accounts.json"), "path to the linked-accounts registry JSON (or set ACCOUNTS_FILE env)")
		aggregatorURL = flag.String("aggregator-url", os.Getenv("AGGREGATOR_URL"), "base URL of the transaction aggregator API (or set AGGREGATOR_URL env)")
		credentialKey = flag.String("credential-key", os.Getenv("CREDENTIAL_KEY"), "hex-encoded 32-byte key sealing institution credentials (or set CREDENTIAL_KEY env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	ctx := context.Background()

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

	// Initialize job infrastructure
	jobStore := jobsmem.NewStore()
	jobQueue := jobsmem.NewQueue(100, jobStore)

	// Start worker in background to process sync jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting sync job worker")
		if err := jobQueue.Start(workerCtx, syncJobHandler(reconciler, registry, log)); err != nil {
			log.Error().Err(err).Msg("Sync job worker stopped with error")
		}
	}()

	// Initialize handlers
	syncHandler := handlers.NewSyncHandler(jobQueue, jobStore, log)
	importHandler := handlers.NewImportHandler(ledgerStore, match.DefaultOptions(), log)

	// Create router
	mux := http.NewServeMux()

	// Sync endpoints
	mux.HandleFunc("/api/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.EnqueueSync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sync/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			syncHandler.ListSyncJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sync/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/sync/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			syncHandler.GetSyncJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Import endpoints
	mux.HandleFunc("/api/import/preview", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importHandler.PreviewImport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

// syncJobHandler runs one reconciliation pass per job and records the outcome
// on the job for the status endpoint.
func syncJobHandler(reconciler *syncer.Reconciler, registry accounts.Source, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.SyncLedgerJob) error {
		ctx = logger.WithContext(ctx, log)

		accts, err := registry.AccountsForUser(ctx, job.UserID)
		if err != nil {
			return err
		}

		outcome, err := reconciler.SyncTransactions(ctx, job.UserID, accts, job.StartDate)
		if err != nil {
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
