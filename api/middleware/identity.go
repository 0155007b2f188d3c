package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/cart-service/api/responses"
	"github.com/angelmondragon/cart-service/internal/cart"
	pkgAuth "github.com/angelmondragon/cart-service/pkg/auth"
	"github.com/angelmondragon/cart-service/pkg/config"
	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/logger"
)

const (
	// CartIDHeader carries the cart a request operates on.
	CartIDHeader = "X-Cart-ID"

	userIDHeader = "X-User-ID"
)

// Identity resolves the shopper behind a request. With a JWT secret configured
// the bearer token subject is the user; otherwise X-User-ID is trusted.
// Requests without credentials continue as guests.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			if cfg.Enabled() {
				raw := strings.TrimSpace(r.Header.Get("Authorization"))
				if raw != "" {
					token := raw
					if strings.HasPrefix(strings.ToLower(token), "bearer ") {
						token = strings.TrimSpace(token[7:])
					}
					if token == "" {
						responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
						return
					}
					claims, err := pkgAuth.ParseAccessToken(cfg, token)
					if err != nil {
						responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
						return
					}
					userID = claims.UserID()
				}
			} else {
				userID = strings.TrimSpace(r.Header.Get(userIDHeader))
			}

			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := cart.ValidateUserID(userID); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects guest requests. It must run after Identity.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
