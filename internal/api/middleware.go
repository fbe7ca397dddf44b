// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/stoagroup/leasing-backend/internal/logging"
)

// secretHeader carries the shared sync secret. A Bearer token is
// accepted as an alternative for clients that only speak
// Authorization.
const secretHeader = "X-Sync-Secret"

// requireSecret rejects requests lacking the shared secret before any
// work happens. With no secret configured (development), the check is
// a pass-through.
func requireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(secretHeader)
			if provided == "" {
				provided = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}

			if !hmac.Equal([]byte(provided), []byte(secret)) {
				logging.Warn().Str("path", sanitizeLogValue(r.URL.Path)).Str("remote", r.RemoteAddr).Msg("Rejected request with invalid sync secret")
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing sync secret", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// verifyWebhookSignature checks the X-Signature header: hex HMAC-SHA256
// of the raw body under the webhook secret.
func verifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}
