package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/threadswap/threadswap/utils"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
)

// AuthMiddleware validates the bearer token and stores the caller's
// identity on the request context.
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			utils.RespondError(w, logger, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		userID, role, err := utils.TokenClaims(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			utils.RespondError(w, logger, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, roleKey, role)
		next(w, r.WithContext(ctx))
	}
}

// AdminOnly allows only callers with the admin role. Applied on top of
// AuthMiddleware.
func AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(roleKey).(string)
		if role != "admin" {
			utils.RespondError(w, logger, "Admin access required", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// GetUserIDFromContext extracts the authenticated user's id.
func GetUserIDFromContext(ctx context.Context) (string, error) {
	userID, _ := ctx.Value(userIDKey).(string)
	if userID == "" {
		return "", fmt.Errorf("no user in context")
	}
	return userID, nil
}
