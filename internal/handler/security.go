package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/appetit/checkout/internal/domain/auth"
)

// SecurityHandler authenticates admin requests via HMAC-SHA256 hashed API
// keys passed in the X-API-Key header.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// hash computes the HMAC-SHA256 of a plaintext key.
func (s *SecurityHandler) hash(key string) []byte {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// Protect wraps a handler, rejecting requests without a valid API key.
func (s *SecurityHandler) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing api key", nil)
			return
		}

		sum := s.hash(key)
		info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(sum))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid api key", nil)
			return
		}

		// The lookup is by hash already; the constant-time compare guards
		// against a repository returning a stale or wrong row.
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(sum, stored) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid api key", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
