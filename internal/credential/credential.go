// Package credential seals and opens the opaque aggregator credential tokens
// stored on linked accounts. The reconciler only ever sees the Decrypter
// interface; key management stays here.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// tokenPrefix versions the sealed-token envelope. Tokens produced before the
// secretbox migration lack it and cannot be opened; the account has to be
// reconnected by the user.
const tokenPrefix = "v2:"

// ErrLegacyToken indicates the credential was stored in a pre-migration
// format. Callers must surface this as "reconnect this account" rather than
// retrying the sync.
var ErrLegacyToken = errors.New("credential: legacy token format, reconnection required")

// Decrypter resolves an opaque credential reference to the plaintext
// aggregator access token.
type Decrypter interface {
	Decrypt(ref string) (string, error)
}

// Store encrypts and decrypts credential tokens with a symmetric key.
type Store struct {
	key [32]byte
}

// NewStore creates a Store from a 32-byte key.
func NewStore(key []byte) (*Store, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("credential: key must be 32 bytes, got %d", len(key))
	}
	s := &Store{}
	copy(s.key[:], key)
	return s, nil
}

// Encrypt seals a plaintext access token into an opaque reference suitable
// for storing on an Account.
func (s *Store) Encrypt(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("Encrypt: nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return tokenPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an opaque credential reference. A token without the current
// envelope prefix fails with ErrLegacyToken; any other failure is a plain
// decryption error.
func (s *Store) Decrypt(ref string) (string, error) {
	if !strings.HasPrefix(ref, tokenPrefix) {
		return "", ErrLegacyToken
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ref, tokenPrefix))
	if err != nil {
		return "", fmt.Errorf("Decrypt: decoding token: %w", err)
	}
	if len(raw) < 24 {
		return "", errors.New("Decrypt: token too short")
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	plaintext, ok := secretbox.Open(nil, raw[24:], &nonce, &s.key)
	if !ok {
		return "", errors.New("Decrypt: token failed to open")
	}

	return string(plaintext), nil
}
