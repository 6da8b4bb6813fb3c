// Package syncer reconciles the stored ledger with fresh fetches from the
// financial-data aggregator. The aggregator has no notion of "what changed",
// so every pass diffs the full fetch window against the ledger: new external
// ids are added, known ids are compared and overwritten on change, and ids
// missing from the fetch are marked removed. Re-running a sync with unchanged
// upstream data is a no-op.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nlozovan/budget-ledger/internal/aggregator"
	"github.com/nlozovan/budget-ledger/internal/credential"
	"github.com/nlozovan/budget-ledger/internal/domain"
	"github.com/nlozovan/budget-ledger/internal/ledger"
	"github.com/nlozovan/budget-ledger/internal/logger"
)

// ErrAllAccountsFailed indicates that no account group could be fetched. The
// ledger is left untouched in that case.
var ErrAllAccountsFailed = errors.New("syncer: every account group failed")

// CategoryResolver maps an aggregator category path (coarse to fine) to an
// internal category id. The category hierarchy lives outside this subsystem.
type CategoryResolver interface {
	Resolve(path []string) string
}

// Reconciler merges aggregator fetches into the per-user ledger.
type Reconciler struct {
	store    ledger.Store
	client   aggregator.Client
	creds    credential.Decrypter
	resolver CategoryResolver // may be nil

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex

	now func() time.Time
}

// New constructs a Reconciler with explicit collaborators. resolver may be
// nil, in which case new rows get no resolved category id.
func New(store ledger.Store, client aggregator.Client, creds credential.Decrypter, resolver CategoryResolver) *Reconciler {
	return &Reconciler{
		store:     store,
		client:    client,
		creds:     creds,
		resolver:  resolver,
		userLocks: make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

// accountGroup is the set of accounts sharing one credential reference.
type accountGroup struct {
	credentialRef string
	accounts      []domain.Account
}

// SyncTransactions runs one reconciliation pass for the user's accounts over
// [startDate, today]. Credential and fetch failures are isolated per account
// group; the call fails outright only when every group fails. Concurrent
// syncs for the same user are serialized here.
func (r *Reconciler) SyncTransactions(ctx context.Context, userID string, accounts []domain.Account, startDate time.Time) (*domain.SyncOutcome, error) {
	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	log := logger.FromContext(ctx).With().Str("user_id", userID).Logger()

	outcome := &domain.SyncOutcome{}

	var fetched []aggregator.TransactionRecord
	syncedAccountIDs := make(map[string]bool)
	accountByExternalID := make(map[string]*domain.Account)
	succeeded := 0

	for _, group := range groupByCredential(accounts) {
		names := displayNames(group.accounts)

		token, err := r.creds.Decrypt(group.credentialRef)
		if err != nil {
			if errors.Is(err, credential.ErrLegacyToken) {
				log.Warn().Strs("accounts", names).Msg("Credential needs reconnection")
				outcome.NeedsReauth = append(outcome.NeedsReauth, names...)
			} else {
				log.Warn().Err(err).Strs("accounts", names).Msg("Credential failed to decrypt")
				outcome.FailedAccounts = append(outcome.FailedAccounts, names...)
			}
			continue
		}

		// Pending transactions are ingested with pending status; "pending"
		// is a ledger status, not a sync filter.
		result, err := r.client.FetchTransactions(ctx, token, startDate, r.now(), true)
		if err != nil {
			if errors.Is(err, aggregator.ErrReauthRequired) {
				log.Warn().Strs("accounts", names).Msg("Aggregator requires reauthentication")
				outcome.NeedsReauth = append(outcome.NeedsReauth, names...)
			} else {
				log.Warn().Err(err).Strs("accounts", names).Msg("Fetch failed for account group")
				outcome.FailedAccounts = append(outcome.FailedAccounts, names...)
			}
			continue
		}

		log.Info().
			Strs("accounts", names).
			Int("records", len(result.Transactions)).
			Int("reported_total", result.TotalCount).
			Msg("Fetched account group")

		fetched = append(fetched, result.Transactions...)
		for i := range group.accounts {
			acc := &group.accounts[i]
			syncedAccountIDs[acc.ID] = true
			accountByExternalID[acc.ExternalID] = acc
		}
		succeeded++
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%w: %d account group(s)", ErrAllAccountsFailed, len(groupByCredential(accounts)))
	}

	txns, err := r.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("SyncTransactions: loading ledger: %w", err)
	}

	txns = r.merge(txns, fetched, userID, syncedAccountIDs, accountByExternalID, outcome)

	if err := r.store.Save(ctx, userID, txns); err != nil {
		return nil, fmt.Errorf("SyncTransactions: saving ledger: %w", err)
	}

	log.Info().
		Int("added", outcome.Added).
		Int("modified", outcome.Modified).
		Int("removed", outcome.Removed).
		Strs("failed_accounts", outcome.FailedAccounts).
		Strs("needs_reauth", outcome.NeedsReauth).
		Msg("Sync pass complete")

	return outcome, nil
}

// merge applies one fetch to the ledger in place and fills the outcome
// counters. Removal detection is scoped to the accounts actually synced in
// this pass.
func (r *Reconciler) merge(
	txns []domain.Transaction,
	fetched []aggregator.TransactionRecord,
	userID string,
	syncedAccountIDs map[string]bool,
	accountByExternalID map[string]*domain.Account,
	outcome *domain.SyncOutcome,
) []domain.Transaction {
	byExternalID := make(map[string]int, len(txns))
	for i := range txns {
		if txns[i].ExternalID != "" {
			byExternalID[txns[i].ExternalID] = i
		}
	}

	seen := make(map[string]bool, len(fetched))
	now := r.now()

	for _, rec := range fetched {
		seen[rec.ExternalID] = true

		if i, ok := byExternalID[rec.ExternalID]; ok {
			if r.applyRecord(&txns[i], &rec, now) {
				outcome.Modified++
			}
			continue
		}

		account, ok := accountByExternalID[rec.AccountExternalID]
		if !ok {
			// The aggregator returned a record for an account the user has
			// not linked; skip rather than orphan a row.
			continue
		}

		txns = append(txns, r.newTransaction(&rec, userID, account.ID, now))
		outcome.Added++
	}

	for i := range txns {
		txn := &txns[i]
		if txn.ExternalID == "" || seen[txn.ExternalID] {
			continue
		}
		// Only accounts refreshed in this pass may have rows marked removed;
		// absence of everything else means it simply was not fetched.
		if !syncedAccountIDs[txn.AccountID] {
			continue
		}
		if txn.Status == domain.StatusRemoved {
			continue
		}
		txn.Status = domain.StatusRemoved
		txn.UpdatedAt = now
		outcome.Removed++
	}

	return txns
}

// applyRecord overwrites a known row with fresh aggregator facts and reports
// whether anything actually changed. The user-chosen category always
// survives; user edits (override name, notes, tags, hidden flag) are never
// touched.
func (r *Reconciler) applyRecord(txn *domain.Transaction, rec *aggregator.TransactionRecord, now time.Time) bool {
	changed := false

	if txn.Amount != rec.Amount {
		txn.Amount = rec.Amount
		changed = true
	}

	status := statusFromPending(rec.Pending)
	if txn.Status != status {
		txn.Status = status
		changed = true
	}

	if txn.Name != rec.Name {
		txn.Name = rec.Name
		changed = true
	}

	if txn.MerchantName != rec.Merchant {
		txn.MerchantName = rec.Merchant
		changed = true
	}

	if !equalStrings(txn.AggregatorCategories, rec.Categories) {
		txn.AggregatorCategories = rec.Categories
		// Recategorize only while the user has not chosen a category.
		if txn.UserCategoryID == "" && r.resolver != nil {
			txn.CategoryID = r.resolver.Resolve(rec.Categories)
		}
		changed = true
	}

	if changed {
		txn.UpdatedAt = now
	}
	return changed
}

// newTransaction synthesizes a ledger row from an aggregator record.
func (r *Reconciler) newTransaction(rec *aggregator.TransactionRecord, userID, accountID string, now time.Time) domain.Transaction {
	txn := domain.Transaction{
		ID:                   uuid.New().String(),
		ExternalID:           rec.ExternalID,
		UserID:               userID,
		AccountID:            accountID,
		Amount:               rec.Amount,
		Currency:             rec.Currency,
		Date:                 rec.Date,
		Status:               statusFromPending(rec.Pending),
		Name:                 rec.Name,
		MerchantName:         rec.Merchant,
		AggregatorCategories: rec.Categories,
		IsHidden:             false,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if r.resolver != nil {
		txn.CategoryID = r.resolver.Resolve(rec.Categories)
	}
	return txn
}

func statusFromPending(pending bool) domain.Status {
	if pending {
		return domain.StatusPending
	}
	return domain.StatusPosted
}

// groupByCredential groups accounts sharing a credential reference,
// preserving first-seen order.
func groupByCredential(accounts []domain.Account) []accountGroup {
	index := make(map[string]int)
	var groups []accountGroup

	for _, acc := range accounts {
		i, ok := index[acc.CredentialRef]
		if !ok {
			i = len(groups)
			index[acc.CredentialRef] = i
			groups = append(groups, accountGroup{credentialRef: acc.CredentialRef})
		}
		groups[i].accounts = append(groups[i].accounts, acc)
	}

	return groups
}

func displayNames(accounts []domain.Account) []string {
	names := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		names = append(names, acc.DisplayName)
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (r *Reconciler) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.userLocks[userID] = lock
	}
	return lock
}
