package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	"github.com/ovlasenko/webshop-backend/pkg/enums"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
	"github.com/ovlasenko/webshop-backend/pkg/outbox"
	"github.com/ovlasenko/webshop-backend/pkg/outbox/payloads"
)

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages prepaid user balances.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.UserBalanceHistory, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.UserBalance, error)

	// Debit runs inside the caller's transaction. The balance row stays
	// locked until that transaction ends.
	Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}

type service struct {
	repo   *Repository
	runner TxRunner
	events *outbox.Service
	logg   *logger.Logger
}

func NewService(repo *Repository, runner TxRunner, events *outbox.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("balance repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, runner: runner, events: events, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	row, err := s.repo.Find(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	return row, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.UserBalanceHistory, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.History(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance history")
	}
	return rows, nil
}

// Deposit credits the balance and records a deposit history row in one
// transaction, then stages a notification event.
func (s *service) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.UserBalance, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must not be negative")
	}

	var updated *models.UserBalance
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row, err := repo.FindForUpdate(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = &models.UserBalance{UserID: userID, Amount: amount}
			if err := repo.Create(ctx, row); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			row.Amount = row.Amount.Add(amount)
			if err := repo.SetAmount(ctx, userID, row.Amount); err != nil {
				return err
			}
		}
		updated = row

		if err := repo.AppendHistory(ctx, userID, enums.BalanceOperationDeposit, amount); err != nil {
			return err
		}
		if s.events == nil {
			return nil
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFundsDeposited,
			AggregateType: enums.AggregateBalance,
			AggregateID:   userID,
			Version:       1,
			Data: payloads.FundsDepositedEvent{
				UserID:     userID,
				Amount:     amount,
				NewBalance: row.Amount,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id": userID.String(),
			"amount":  amount.String(),
		})
		s.logg.Info(logCtx, "balance deposited")
	}
	return updated, nil
}

// Debit subtracts amount from the locked balance row. A user with no balance
// row is treated as having zero funds.
func (s *service) Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInternal, "debit requires a transaction")
	}
	if amount.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "debit amount must not be negative")
	}
	repo := s.repo.WithTx(tx)

	row, err := repo.FindForUpdate(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// A fully discounted cart costs nothing, so a missing balance row
		// is only a problem when there is something to pay.
		if amount.IsZero() {
			return decimal.Zero, repo.AppendHistory(ctx, userID, enums.BalanceOperationPayment, amount)
		}
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient funds")
	}
	if err != nil {
		return decimal.Zero, err
	}
	if row.Amount.LessThan(amount) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient funds")
	}

	remaining := row.Amount.Sub(amount)
	if err := repo.SetAmount(ctx, userID, remaining); err != nil {
		return decimal.Zero, err
	}
	if err := repo.AppendHistory(ctx, userID, enums.BalanceOperationPayment, amount); err != nil {
		return decimal.Zero, err
	}
	return remaining, nil
}
