package credential

import (
	"errors"
	"strings"
	"testing"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestStore_RoundTrip(t *testing.T) {
	store, err := NewStore(testKey())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ref, err := store.Encrypt("access-token-sandbox-123")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !strings.HasPrefix(ref, "v2:") {
		t.Errorf("expected versioned envelope, got %q", ref)
	}

	got, err := store.Decrypt(ref)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if got != "access-token-sandbox-123" {
		t.Errorf("Decrypt = %q, want original token", got)
	}
}

func TestStore_LegacyToken(t *testing.T) {
	store, err := NewStore(testKey())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	_, err = store.Decrypt("aGVsbG8gd29ybGQ=") // no envelope prefix
	if !errors.Is(err, ErrLegacyToken) {
		t.Errorf("Decrypt legacy token: got %v, want ErrLegacyToken", err)
	}
}

func TestStore_TamperedToken(t *testing.T) {
	store, err := NewStore(testKey())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ref, err := store.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Flip a character in the ciphertext portion.
	tampered := ref[:len(ref)-2] + "AA"
	if _, err := store.Decrypt(tampered); err == nil {
		t.Error("Decrypt accepted a tampered token")
	} else if errors.Is(err, ErrLegacyToken) {
		t.Error("tampered token misreported as legacy format")
	}
}

func TestNewStore_BadKeyLength(t *testing.T) {
	if _, err := NewStore([]byte("short")); err == nil {
		t.Error("NewStore accepted a short key")
	}
}
