package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nlozovan/budget-ledger/internal/jobs"
)

func TestQueue_PublishAndProcess(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)
	defer queue.Close()

	var mu sync.Mutex
	processed := make(map[string]bool)
	done := make(chan struct{})

	handler := func(ctx context.Context, job *jobs.SyncLedgerJob) error {
		mu.Lock()
		processed[job.UserID] = true
		mu.Unlock()
		close(done)
		return nil
	}

	ctx := context.Background()
	if err := queue.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.SyncLedgerJob{UserID: "user-1", StartDate: time.Now().AddDate(0, -1, 0)}
	if err := queue.PublishSyncLedger(ctx, job); err != nil {
		t.Fatalf("PublishSyncLedger failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never processed")
	}

	mu.Lock()
	defer mu.Unlock()
	if !processed["user-1"] {
		t.Error("handler not called for the published job")
	}
}

func TestQueue_OneActiveJobPerUser(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, store)
	defer queue.Close()

	ctx := context.Background()

	// No consumer running, so the first job stays pending.
	first := &jobs.SyncLedgerJob{UserID: "user-1"}
	if err := queue.PublishSyncLedger(ctx, first); err != nil {
		t.Fatalf("first publish failed: %v", err)
	}

	second := &jobs.SyncLedgerJob{UserID: "user-1"}
	if err := queue.PublishSyncLedger(ctx, second); !errors.Is(err, jobs.ErrSyncInProgress) {
		t.Errorf("second publish = %v, want ErrSyncInProgress", err)
	}

	// A different user is unaffected.
	other := &jobs.SyncLedgerJob{UserID: "user-2"}
	if err := queue.PublishSyncLedger(ctx, other); err != nil {
		t.Errorf("publish for another user failed: %v", err)
	}
}

func TestStore_FilterByUserAndStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seed := []*jobs.SyncLedgerJob{
		{JobID: "j1", UserID: "user-1", Status: jobs.JobStatusCompleted},
		{JobID: "j2", UserID: "user-1", Status: jobs.JobStatusPending},
		{JobID: "j3", UserID: "user-2", Status: jobs.JobStatusPending},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	got, err := store.ListJobs(ctx, jobs.JobFilter{UserID: "user-1", Status: jobs.JobStatusPending})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "j2" {
		t.Errorf("ListJobs = %+v, want only j2", got)
	}

	if !store.HasActiveJob("user-1") {
		t.Error("user-1 has a pending job and must count as active")
	}
	if store.HasActiveJob("user-3") {
		t.Error("user-3 has no jobs")
	}
}
