package controllers

import (
	"net/http"

	"github.com/ovlasenko/webshop-backend/api/middleware"
	"github.com/ovlasenko/webshop-backend/api/responses"
	checkoutsvc "github.com/ovlasenko/webshop-backend/internal/checkout"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
)

// Checkout submits the caller's cart as one atomic purchase.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		result, err := svc.Checkout(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
