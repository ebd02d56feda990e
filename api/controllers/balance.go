package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ovlasenko/webshop-backend/api/middleware"
	"github.com/ovlasenko/webshop-backend/api/responses"
	"github.com/ovlasenko/webshop-backend/api/validators"
	balancesvc "github.com/ovlasenko/webshop-backend/internal/balance"
	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
)

type depositRequest struct {
	Amount string `json:"amount" validate:"required"`
}

type balanceResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type historyEntryResponse struct {
	OperationType string          `json:"operation_type"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// GetBalance returns the caller's current balance.
func GetBalance(svc balancesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		row, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBalanceResponse(row))
	}
}

// Deposit credits the caller's balance.
func Deposit(svc balancesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload depositRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal string"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		row, err := svc.Deposit(r.Context(), userID, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newBalanceResponse(row))
	}
}

// BalanceHistory lists the caller's balance mutations newest-first.
func BalanceHistory(svc balancesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		rows, err := svc.History(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]historyEntryResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, historyEntryResponse{
				OperationType: string(row.OperationType),
				Amount:        row.Amount,
				CreatedAt:     row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

func newBalanceResponse(row *models.UserBalance) balanceResponse {
	return balanceResponse{
		Amount:    row.Amount,
		UpdatedAt: row.UpdatedAt,
	}
}
