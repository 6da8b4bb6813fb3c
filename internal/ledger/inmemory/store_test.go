package inmemory

import (
	"context"
	"testing"

	"github.com/nlozovan/budget-ledger/internal/domain"
)

func TestStore_LoadEmptyLedger(t *testing.T) {
	store := NewStore()

	txns, err := store.Load(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("expected empty ledger, got %d rows", len(txns))
	}
}

func TestStore_SaveThenLoad(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, "user-1"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []domain.Transaction{
		{ID: "tx-1", UserID: "user-1", AccountID: "acc-1", Amount: 10, Status: domain.StatusPosted},
	}
	if err := store.Save(ctx, "user-1", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tx-1" {
		t.Errorf("Load after Save = %+v", got)
	}
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Seed("user-1", []domain.Transaction{{ID: "tx-1", Name: "original"}})

	got, _ := store.Load(context.Background(), "user-1")
	got[0].Name = "mutated"

	again, _ := store.Load(context.Background(), "user-1")
	if again[0].Name != "original" {
		t.Error("Load exposed internal slice to mutation")
	}
}
