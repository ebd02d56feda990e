package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ovlasenko/webshop-backend/pkg/enums"
)

// UserBalance is the prepaid account for one user. Amount never goes below
// zero: debits are guarded by a row lock plus an insufficient-funds check
// inside the checkout transaction.
type UserBalance struct {
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// UserBalanceHistory is the append-only log of balance mutations. Rows are
// never updated or deleted.
type UserBalanceHistory struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	OperationType enums.BalanceOperationType `gorm:"column:operation_type;type:balance_operation_type;not null"`
	Amount        decimal.Decimal            `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
