/**
 * @description
 * This file contains custom middleware for the HTTP router. Middlewares are used
 * to process requests before they reach the final handler, perfect for tasks like
 * authentication, logging, or adding context to a request.
 *
 * Two auth schemes are used: bank webhooks carry an optional shared secret
 * header, and destructive internal operations require a separate internal API
 * key. Both are constant-time compared.
 *
 * @dependencies
 * - crypto/subtle, net/http: Standard Go libraries.
 */

package api

import (
	"crypto/subtle"
	"net/http"
)

const (
	bankWebhookSecretHeader = "X-Bank-Webhook-Secret"
	internalAPIKeyHeader    = "X-Internal-Api-Key"
)

// BankWebhookAuthMiddleware validates the shared secret presented by the bank
// on webhook calls. An empty configured secret disables the check, which is
// the development default.
func BankWebhookAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get(bankWebhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				http.Error(w, "Invalid webhook secret", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// InternalAuthMiddleware guards operator-only endpoints with the internal API
// key. Unlike the webhook secret, an empty configured key rejects everything:
// destructive endpoints must not be open by accident.
func InternalAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				http.Error(w, "Internal API disabled", http.StatusForbidden)
				return
			}

			presented := r.Header.Get(internalAPIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
