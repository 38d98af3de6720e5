package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"askingwho-backend/pkg/auth"
	pkgerrors "askingwho-backend/pkg/errors"
)

// Authenticate rejects requests without a valid bearer token and stores the
// caller in the request context
func Authenticate(validator *auth.JWTValidator, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := validator.ValidateToken(r.Header.Get("Authorization"))
			if err != nil {
				logger.Debug("Rejected token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(unauthorizedMessage(err)))
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID:   claims.Subject,
				Username: claims.Username,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth stores the caller when a valid token is present and lets guests
// through otherwise
func OptionalAuth(validator *auth.JWTValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := validator.ValidateToken(header)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID:   claims.Subject,
				Username: claims.Username,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Missing authorization header"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}
