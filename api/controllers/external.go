package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ovlasenko/webshop-backend/api/responses"
	"github.com/ovlasenko/webshop-backend/api/validators"
	inventorysvc "github.com/ovlasenko/webshop-backend/internal/inventory"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
)

type stockReductionRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required,uuid4"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// StockReduction lets an external warehouse system report stock removed
// outside of checkout.
func StockReduction(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload stockReductionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reduction, err := svc.ReduceStock(r.Context(), payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"product_id":         reduction.ProductID,
			"reduced":            reduction.Reduced,
			"remaining_quantity": reduction.RemainingQuantity,
		})
	}
}
