package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ovlasenko/webshop-backend/api/middleware"
	"github.com/ovlasenko/webshop-backend/api/responses"
	"github.com/ovlasenko/webshop-backend/api/validators"
	cartsvc "github.com/ovlasenko/webshop-backend/internal/cart"
	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
)

type cartLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required,uuid4"`
	Quantity  *int      `json:"quantity,omitempty" validate:"omitempty,gt=0"`
}

type cartLineResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	AddedAt   time.Time       `json:"added_at"`
}

// GetCart lists the caller's cart lines.
func GetCart(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		lines, err := svc.Lines(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(lines))
	}
}

// UpsertCartLine adds a product or replaces the quantity of an existing line.
func UpsertCartLine(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cartLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		line, err := svc.UpsertLine(r.Context(), userID, payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartLineResponse(*line))
	}
}

// RemoveCartLine deletes a line. Removing an absent line succeeds.
func RemoveCartLine(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParsePathUUID(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if err := svc.RemoveLine(r.Context(), userID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// 204 carries no body, so skip the JSON envelope entirely.
		w.WriteHeader(http.StatusNoContent)
	}
}

func newCartResponse(lines []models.CartItem) map[string]any {
	out := make([]cartLineResponse, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		out = append(out, newCartLineResponse(line))
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return map[string]any{
		"lines": out,
		"total": total,
	}
}

func newCartLineResponse(line models.CartItem) cartLineResponse {
	return cartLineResponse{
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		Price:     line.Price,
		AddedAt:   line.CreatedAt,
	}
}
