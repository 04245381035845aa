// Package api provides JWT bearer authentication for DietCoach endpoints.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BTreeMap/DietCoach/internal/models"
)

// expectedAudience is the audience claim tokens must carry.
const expectedAudience = "authenticated"

// contextKey is a private type for request context values set by this package.
type contextKey string

// ContextKeyUserID holds the authenticated user id in the request context.
const ContextKeyUserID contextKey = "userID"

// authMiddleware verifies the Authorization bearer token and injects the
// authenticated user id into the request context. Tokens are HS256-signed
// with the configured secret and must carry the expected audience and a
// non-empty subject.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "Missing Authorization header")
			return
		}
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			unauthorized(w, "Authorization header must be a bearer token")
			return
		}

		token, err := jwt.Parse(tokenString,
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return s.jwtSecret, nil
			},
			jwt.WithValidMethods([]string{"HS256"}),
			jwt.WithAudience(expectedAudience),
		)
		if err != nil || !token.Valid {
			slog.Debug("authMiddleware: token rejected", "error", err)
			unauthorized(w, "Invalid or expired token")
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			slog.Debug("authMiddleware: token missing subject", "error", err)
			unauthorized(w, "Token missing subject claim")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUserID, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// unauthorized writes a 401 with the challenge header the contract requires.
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONResponse(w, http.StatusUnauthorized, models.Error(message))
}

// userIDFromRequest extracts the authenticated user id set by authMiddleware.
func userIDFromRequest(r *http.Request) string {
	userID, _ := r.Context().Value(ContextKeyUserID).(string)
	return userID
}
