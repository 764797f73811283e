package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ScopeAdmin gates the admin-only order operations (status update, refund).
const ScopeAdmin = "admin"

// ErrUnknownKey is returned when no active key matches the presented hash.
var ErrUnknownKey = errors.New("unknown api key")

// APIKeyInfo is a validated API key record. UserID is the acting customer
// identity the key was issued for.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	UserID  string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key carries the given scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of active API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
