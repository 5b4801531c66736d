package http

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/sha3"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	AuthenticatedUserContextKey = ContextKey("authenticatedUser")

	WebhookSecretHeader = "X-Webhook-Secret"
)

// AuthenticatedUser holds the caller identity taken from the bearer token.
type AuthenticatedUser struct {
	ID      string
	Role    string
	IsAdmin bool
}

// UserFromContext returns the user stored by AuthMiddleware.
func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	u, ok := ctx.Value(AuthenticatedUserContextKey).(AuthenticatedUser)
	return u, ok
}

// AuthMiddleware validates an HS256 bearer token. The caller is an admin when
// its role (app_metadata.role, falling back to the top-level role claim) is
// one of adminRoles.
func AuthMiddleware(jwtSecret string, adminRoles []string, logger *slog.Logger) func(next http.Handler) http.Handler {
	admins := make(map[string]struct{}, len(adminRoles))
	for _, r := range adminRoles {
		admins[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing")
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				respondWithError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid || jwtSecret == "" {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}
			userID, _ := claims["sub"].(string)
			if userID == "" {
				logger.WarnContext(r.Context(), "Token without subject")
				respondWithError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}
			role := roleFromClaims(claims)
			_, isAdmin := admins[strings.ToLower(role)]

			ctx := context.WithValue(r.Context(), AuthenticatedUserContextKey, AuthenticatedUser{
				ID:      userID,
				Role:    role,
				IsAdmin: isAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func roleFromClaims(claims jwt.MapClaims) string {
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if role, ok := meta["role"].(string); ok && role != "" {
			return role
		}
	}
	role, _ := claims["role"].(string)
	return role
}

// RequireAdmin rejects authenticated callers that are not admins.
func RequireAdmin(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				logger.ErrorContext(r.Context(), "AuthenticatedUser not found in context. AuthMiddleware must run first.")
				respondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !user.IsAdmin {
				logger.WarnContext(r.Context(), "Admin route denied", "user_id", user.ID, "role", user.Role)
				respondWithError(w, http.StatusForbidden, "Admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HashWebhookSecret returns the hex SHA3-256 digest stored in configuration.
func HashWebhookSecret(secret string) string {
	sum := sha3.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// WebhookSecretMiddleware accepts requests whose X-Webhook-Secret hashes to
// secretHash. With no hash configured every request is rejected.
func WebhookSecretMiddleware(secretHash string, logger *slog.Logger) func(next http.Handler) http.Handler {
	expected := []byte(strings.ToLower(strings.TrimSpace(secretHash)))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := r.Header.Get(WebhookSecretHeader)
			if len(expected) == 0 || secret == "" ||
				subtle.ConstantTimeCompare([]byte(HashWebhookSecret(secret)), expected) != 1 {
				logger.WarnContext(r.Context(), "Webhook secret rejected", "path", r.URL.Path, "secret_present", secret != "")
				respondWithError(w, http.StatusUnauthorized, "Invalid webhook secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
