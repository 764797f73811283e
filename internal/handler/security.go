package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/nimbusmart/storefront/internal/domain/auth"
)

type contextKey struct{}

// identityKey holds the authenticated *auth.APIKeyInfo in the request context.
var identityKey = contextKey{}

// SecurityHandler authenticates API requests via HMAC-SHA256 hashed API keys
// and gates admin-only routes on key scopes.
type SecurityHandler struct {
	apikeys        auth.Repository
	pepper         []byte
	callbackSecret string
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository, HMAC pepper, and carrier callback secret.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte, callbackSecret string) *SecurityHandler {
	return &SecurityHandler{
		apikeys:        apikeys,
		pepper:         pepper,
		callbackSecret: callbackSecret,
	}
}

// Authenticate verifies the X-API-Key header by computing its HMAC-SHA256,
// looking the hash up, and performing a constant-time comparison to prevent
// timing attacks. The key's identity is stored in the request context.
func (s *SecurityHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			respondError(w, http.StatusUnauthorized, "Unauthorized", "missing api key")
			return
		}

		mac := hmac.New(sha256.New, s.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Unauthorized", "invalid api key")
			return
		}

		storedBytes, err := hex.DecodeString(info.KeyHash)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Unauthorized", "invalid api key")
			return
		}
		if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
			respondError(w, http.StatusUnauthorized, "Unauthorized", "invalid api key")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope authenticates and additionally requires the admin scope.
// Missing scope reads as not-found so the admin surface stays invisible to
// regular keys.
func (s *SecurityHandler) RequireScope(next http.Handler) http.Handler {
	return s.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := identityFrom(r.Context())
		if info == nil || !info.HasScope(auth.ScopeAdmin) {
			respondError(w, http.StatusNotFound, "NotFound", "not found")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// AuthenticateCallback verifies the carrier's shared secret on the
// mobile-money confirmation webhook.
func (s *SecurityHandler) AuthenticateCallback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("X-Callback-Token"))
		want := []byte(s.callbackSecret)
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			respondError(w, http.StatusUnauthorized, "Unauthorized", "invalid callback token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFrom(ctx context.Context) *auth.APIKeyInfo {
	info, _ := ctx.Value(identityKey).(*auth.APIKeyInfo)
	return info
}
