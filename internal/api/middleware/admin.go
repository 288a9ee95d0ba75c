// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"
)

// AdminTokenHeader authenticates admin endpoints by exact match against
// the configured token.
const AdminTokenHeader = "x-admin-token"

// RequireAdmin rejects requests whose x-admin-token header does not match
// token. An empty configured token rejects everything: admin access fails
// closed on a misconfigured deployment, unlike the plan classifier's
// fail-open variant list.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(AdminTokenHeader)

			if token == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				log.Warn().Str("path", r.URL.Path).Msg("Rejected admin request")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"ok":false,"error":"unauthorized"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
