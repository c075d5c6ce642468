// Package auth holds the API key contract used to protect admin endpoints.
// Keys are stored hashed; plaintext keys exist only in the request header.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active API key matches a hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKey is one provisioned admin credential. KeyHash is the hex HMAC of
// the plaintext key, kept for a constant-time recheck after lookup.
type APIKey struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository resolves API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}
