package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nlozovan/budget-ledger/internal/domain"
	"github.com/nlozovan/budget-ledger/internal/jobs"
	jobsmem "github.com/nlozovan/budget-ledger/internal/jobs/inmemory"
	ledgermem "github.com/nlozovan/budget-ledger/internal/ledger/inmemory"
	"github.com/nlozovan/budget-ledger/internal/match"
)

func newSyncHandler(t *testing.T) (*SyncHandler, *jobsmem.Store, *jobsmem.Queue) {
	t.Helper()
	store := jobsmem.NewStore()
	queue := jobsmem.NewQueue(10, store)
	t.Cleanup(func() { queue.Close() })
	return NewSyncHandler(queue, store, zerolog.Nop()), store, queue
}

func TestEnqueueSync(t *testing.T) {
	h, store, _ := newSyncHandler(t)

	body := strings.NewReader(`{"user_id": "user-1", "start_date": "2025-08-01"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/sync", body)
	rec := httptest.NewRecorder()

	h.EnqueueSync(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["job_id"] == "" {
		t.Error("response missing job_id")
	}
	if resp["status"] != string(jobs.JobStatusPending) {
		t.Errorf("status = %q, want pending", resp["status"])
	}

	saved, err := store.GetJob(req.Context(), resp["job_id"])
	if err != nil {
		t.Fatalf("job not saved: %v", err)
	}
	want := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	if !saved.StartDate.Equal(want) {
		t.Errorf("start date = %v, want %v", saved.StartDate, want)
	}
}

func TestEnqueueSync_Conflict(t *testing.T) {
	h, _, _ := newSyncHandler(t)

	first := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"user_id": "user-1"}`))
	firstRec := httptest.NewRecorder()
	h.EnqueueSync(firstRec, first)
	if firstRec.Code != http.StatusAccepted {
		t.Fatalf("first enqueue status = %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"user_id": "user-1"}`))
	secondRec := httptest.NewRecorder()
	h.EnqueueSync(secondRec, second)
	if secondRec.Code != http.StatusConflict {
		t.Errorf("second enqueue status = %d, want 409", secondRec.Code)
	}
}

func TestEnqueueSync_Validation(t *testing.T) {
	h, _, _ := newSyncHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing user", `{}`},
		{"bad date", `{"user_id": "u", "start_date": "08/01/2025"}`},
		{"bad json", `{`},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		h.EnqueueSync(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, rec.Code)
		}
	}
}

func TestGetSyncJob_IncludesReport(t *testing.T) {
	h, store, _ := newSyncHandler(t)

	job := &jobs.SyncLedgerJob{
		JobID:  "job-1",
		UserID: "user-1",
		Status: jobs.JobStatusCompleted,
		Outcome: &domain.SyncOutcome{
			Added:          3,
			Modified:       1,
			FailedAccounts: []string{"Savings"},
		},
	}
	if err := store.SaveJob(httptest.NewRequest(http.MethodGet, "/", nil).Context(), job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sync/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	h.GetSyncJob(rec, req, "job-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Report struct {
			Status  string `json:"status"`
			Added   int    `json:"added"`
			Warning string `json:"warning"`
		} `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Report.Status != "partial" || resp.Report.Added != 3 {
		t.Errorf("report = %+v", resp.Report)
	}
	if resp.Report.Warning == "" {
		t.Error("partial report must carry a warning")
	}
}

func TestGetSyncJob_NotFound(t *testing.T) {
	h, _, _ := newSyncHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sync/jobs/missing", nil)
	rec := httptest.NewRecorder()
	h.GetSyncJob(rec, req, "missing")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPreviewImport(t *testing.T) {
	store := ledgermem.NewStore()
	store.Seed("user-1", []domain.Transaction{
		{
			ID:        "txn-1",
			UserID:    "user-1",
			AccountID: "acct-1",
			Amount:    4.50,
			Date:      time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			Status:    domain.StatusPosted,
			Name:      "Starbucks",
		},
	})

	h := NewImportHandler(store, match.Options{}, zerolog.Nop())

	csvBody := strings.Join([]string{
		"Date,Description,Amount",
		"1/15/2025,STARBUCKS #4521 ID:998877,-4.50",
		"1/20/2025,Hardware Store,83.10",
	}, "\n")

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview?user_id=user-1", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()

	h.PreviewImport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Preview struct {
			TotalCandidates  int `json:"total_candidates"`
			LikelyDuplicates int `json:"likely_duplicates"`
			NewTransactions  int `json:"new_transactions"`
		} `json:"preview"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Preview.TotalCandidates != 2 {
		t.Errorf("total candidates = %d, want 2", resp.Preview.TotalCandidates)
	}
	if resp.Preview.LikelyDuplicates != 1 {
		t.Errorf("likely duplicates = %d, want 1", resp.Preview.LikelyDuplicates)
	}
	if resp.Preview.NewTransactions != 1 {
		t.Errorf("new transactions = %d, want 1", resp.Preview.NewTransactions)
	}
}

func TestPreviewImport_Validation(t *testing.T) {
	h := NewImportHandler(ledgermem.NewStore(), match.Options{}, zerolog.Nop())

	// Missing user_id.
	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", strings.NewReader("Date,Description,Amount\n"))
	rec := httptest.NewRecorder()
	h.PreviewImport(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user_id: status = %d, want 400", rec.Code)
	}

	// Export without the required columns.
	req = httptest.NewRequest(http.MethodPost, "/api/import/preview?user_id=u", strings.NewReader("Foo,Bar\n1,2\n"))
	rec = httptest.NewRecorder()
	h.PreviewImport(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad header: status = %d, want 400", rec.Code)
	}
}
