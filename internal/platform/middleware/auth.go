package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "kudos/pkg/domain"
	"kudos/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims carries the claims the middleware consumes.
type TokenClaims struct {
	CallerID id.UserID
}

// APIKeyVerifier checks a machine-caller API key.
type APIKeyVerifier interface {
	VerifyKey(key string) error
}

// RequireAuth admits requests carrying either a valid bearer token or a
// valid API key. The authenticated caller (when token-based) is stored in
// the request context.
func RequireAuth(validator TokenValidator, apiKeys APIKeyVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if key := r.Header.Get("X-API-Key"); key != "" && apiKeys != nil {
				if err := apiKeys.VerifyKey(key); err != nil {
					logger.WarnContext(ctx, "unauthorized access - invalid api key",
						"request_id", requestcontext.RequestID(ctx),
					)
					writeUnauthorized(w, "Invalid API key")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing credentials",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithCallerID(ctx, claims.CallerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
