package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fetchWindow() (time.Time, time.Time) {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
}

func TestHTTPClient_FetchTransactions_Paginates(t *testing.T) {
	// 3 records served one per page.
	records := []TransactionRecord{
		{ExternalID: "txn-1", AccountExternalID: "acc-1", Amount: 10, Currency: "USD"},
		{ExternalID: "txn-2", AccountExternalID: "acc-1", Amount: 20, Currency: "USD"},
		{ExternalID: "txn-3", AccountExternalID: "acc-1", Amount: 30, Currency: "USD"},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req fetchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.AccessToken != "token-1" {
			t.Errorf("access token = %q, want token-1", req.AccessToken)
		}

		page := req.Offset / pageSize
		resp := fetchResponse{TotalTransactions: len(records)}
		if page < len(records) {
			resp.Transactions = records[page : page+1]
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	start, end := fetchWindow()

	result, err := client.FetchTransactions(context.Background(), "token-1", start, end, true)
	if err != nil {
		t.Fatalf("FetchTransactions failed: %v", err)
	}
	if len(result.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3 across pages", len(result.Transactions))
	}
	if result.Transactions[2].ExternalID != "txn-3" {
		t.Errorf("pages out of order: last record %q", result.Transactions[2].ExternalID)
	}
	if result.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", result.TotalCount)
	}
}

func TestHTTPClient_FetchTransactions_SinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fetchResponse{
			Transactions: []TransactionRecord{
				{ExternalID: "txn-1", AccountExternalID: "acc-1", Amount: 12.34, Pending: true},
				{ExternalID: "txn-2", AccountExternalID: "acc-1", Amount: -5},
			},
			TotalTransactions: 2,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	start, end := fetchWindow()

	result, err := client.FetchTransactions(context.Background(), "token-1", start, end, true)
	if err != nil {
		t.Fatalf("FetchTransactions failed: %v", err)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(result.Transactions))
	}
	if !result.Transactions[0].Pending {
		t.Error("pending flag not preserved")
	}
}

func TestHTTPClient_FetchTransactions_ReauthRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(fetchResponse{
			ErrorCode:    "ITEM_LOGIN_REQUIRED",
			ErrorMessage: "the login details of this item have changed",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	start, end := fetchWindow()

	_, err := client.FetchTransactions(context.Background(), "stale-token", start, end, true)
	if !errors.Is(err, ErrReauthRequired) {
		t.Errorf("got %v, want ErrReauthRequired", err)
	}
}

func TestHTTPClient_FetchTransactions_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(fetchResponse{ErrorMessage: "rate limited"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	start, end := fetchWindow()

	_, err := client.FetchTransactions(context.Background(), "token-1", start, end, true)
	if err == nil {
		t.Fatal("expected error for rate-limited response")
	}
	if errors.Is(err, ErrReauthRequired) {
		t.Error("rate limit misreported as reauth")
	}
}

func TestHTTPClient_FetchTransactions_PageCap(t *testing.T) {
	// Upstream keeps claiming more records exist but never delivers them all.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fetchResponse{
			Transactions:      []TransactionRecord{{ExternalID: "txn-loop"}},
			TotalTransactions: 1 << 30,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	start, end := fetchWindow()

	_, err := client.FetchTransactions(context.Background(), "token-1", start, end, true)
	if err == nil {
		t.Fatal("expected error when pagination never terminates")
	}
}
