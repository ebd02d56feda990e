package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ovlasenko/webshop-backend/api/responses"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
)

// Authentication is terminated upstream; the gateway forwards the
// authenticated subject in this header.
const userIDHeader = "X-User-Id"

type userContextKey struct{}

// UserContext extracts the forwarded user id and stores it on the request
// context. Requests without a valid id are rejected before reaching any
// handler.
func UserContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(userIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "X-User-Id header required"))
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil || userID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "X-User-Id must be a uuid"))
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id, or uuid.Nil when the
// middleware did not run.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if value, ok := ctx.Value(userContextKey{}).(uuid.UUID); ok {
		return value
	}
	return uuid.Nil
}
