// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storepulse/storepulse/internal/logging"
)

type authContextKey string

// subjectKey is the context key for the authenticated token subject.
const subjectKey authContextKey = "subject"

// RequireJWT returns middleware that validates an HS256 bearer token on
// every request. Tokens signed with any other algorithm are rejected, which
// closes the alg-confusion hole where an RS256 public key doubles as an
// HMAC secret.
func RequireJWT(secret string) func(http.Handler) http.Handler {
	keyFunc := func(_ *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				NewResponseWriter(w, r).Unauthorized("missing bearer token")
				return
			}

			parsed, err := jwt.Parse(token, keyFunc,
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				jwt.WithExpirationRequired(),
			)
			if err != nil || !parsed.Valid {
				logging.Warn().Err(err).Str("path", r.URL.Path).Msg("rejected admin request")
				NewResponseWriter(w, r).Unauthorized("invalid token")
				return
			}

			subject, _ := parsed.Claims.GetSubject()
			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated token subject, if any.
func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey).(string); ok {
		return s
	}
	return ""
}
