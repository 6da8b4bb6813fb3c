package accounts

import (
	"context"
	"testing"
)

func TestRegistry_AccountsForUser(t *testing.T) {
	data := []byte(`{
		"user-1": [
			{"id": "acct-1", "external_id": "ext-1", "display_name": "Checking", "credential_ref": "tok-a"},
			{"id": "acct-2", "external_id": "ext-2", "display_name": "Savings", "credential_ref": "tok-a"}
		],
		"user-2": []
	}`)

	reg, err := NewRegistry(data)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	accts, err := reg.AccountsForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("AccountsForUser failed: %v", err)
	}
	if len(accts) != 2 || accts[0].ID != "acct-1" || accts[1].DisplayName != "Savings" {
		t.Errorf("accounts = %+v", accts)
	}

	if _, err := reg.AccountsForUser(context.Background(), "user-2"); err == nil {
		t.Error("expected error for user with no linked accounts")
	}
	if _, err := reg.AccountsForUser(context.Background(), "nobody"); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestNewRegistry_InvalidJSON(t *testing.T) {
	if _, err := NewRegistry([]byte("not json")); err == nil {
		t.Error("expected parse error")
	}
}
