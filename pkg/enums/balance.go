package enums

import "fmt"

// BalanceOperationType maps to the balance_operation_type enum in Postgres.
// It is the two-variant tag written by the balance history recorder: every
// balance mutation is either a checkout payment or an explicit deposit.
type BalanceOperationType string

const (
	BalanceOperationPayment BalanceOperationType = "payment"
	BalanceOperationDeposit BalanceOperationType = "deposit"
)

var validBalanceOperationTypes = []BalanceOperationType{
	BalanceOperationPayment,
	BalanceOperationDeposit,
}

// IsValid reports whether the value matches the canonical enum.
func (b BalanceOperationType) IsValid() bool {
	for _, candidate := range validBalanceOperationTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBalanceOperationType converts raw input into BalanceOperationType.
func ParseBalanceOperationType(value string) (BalanceOperationType, error) {
	for _, candidate := range validBalanceOperationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid balance operation type %q", value)
}
