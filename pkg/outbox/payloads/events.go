package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCompletedEvent is published after a checkout transaction commits. The
// notification worker turns it into the order-confirmation message.
type OrderCompletedEvent struct {
	OrderID  uuid.UUID            `json:"order_id"`
	UserID   uuid.UUID            `json:"user_id"`
	TotalSum decimal.Decimal      `json:"total_sum"`
	Lines    []OrderCompletedLine `json:"lines"`
}

// OrderCompletedLine mirrors one purchased order item.
type OrderCompletedLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// FundsDepositedEvent is published after a deposit commits.
type FundsDepositedEvent struct {
	UserID     uuid.UUID       `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// StockAdjustedEvent is published when an external system reduces stock
// outside of checkout.
type StockAdjustedEvent struct {
	ProductID         uuid.UUID `json:"product_id"`
	Reduced           int       `json:"reduced"`
	RemainingQuantity int       `json:"remaining_quantity"`
}
