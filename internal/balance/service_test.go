package balance

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	"github.com/ovlasenko/webshop-backend/pkg/enums"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
	"github.com/ovlasenko/webshop-backend/pkg/outbox"
)

type txRunner struct {
	db *gorm.DB
}

func (r *txRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestGetMissingBalanceReadsZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newBalanceService(t, db)

	row, err := svc.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !row.Amount.IsZero() {
		t.Fatalf("expected zero balance, got %s", row.Amount)
	}
}

func TestDepositCreatesRowAndHistory(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newBalanceService(t, db)
	ctx := context.Background()
	user := uuid.New()

	row, err := svc.Deposit(ctx, user, decimal.RequireFromString("50.00"))
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if !row.Amount.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("unexpected balance: %s", row.Amount)
	}

	row, err = svc.Deposit(ctx, user, decimal.RequireFromString("25.50"))
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if !row.Amount.Equal(decimal.RequireFromString("75.50")) {
		t.Fatalf("unexpected accumulated balance: %s", row.Amount)
	}

	history, err := svc.History(ctx, user, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	for _, entry := range history {
		if entry.OperationType != enums.BalanceOperationDeposit {
			t.Fatalf("unexpected operation type: %s", entry.OperationType)
		}
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 2 {
		t.Fatalf("expected 2 staged events, got %d", events)
	}
}

func TestDepositRejectsNegativeAmount(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newBalanceService(t, db)

	_, err := svc.Deposit(context.Background(), uuid.New(), decimal.RequireFromString("-0.01"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDepositZeroAmountSucceeds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newBalanceService(t, db)
	ctx := context.Background()
	user := uuid.New()

	row, err := svc.Deposit(ctx, user, decimal.Zero)
	if err != nil {
		t.Fatalf("zero deposit: %v", err)
	}
	if !row.Amount.IsZero() {
		t.Fatalf("expected zero balance, got %s", row.Amount)
	}

	history, err := svc.History(ctx, user, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || !history[0].Amount.IsZero() {
		t.Fatalf("expected one zero-amount history row, got %+v", history)
	}
}

func TestDebitHappyPath(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newBalanceService(t, db)
	ctx := context.Background()
	user := uuid.New()

	if _, err := svc.Deposit(ctx, user, decimal.RequireFromString("100.00")); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		remaining, terr := svc.Debit(ctx, tx, user, decimal.RequireFromString("60.00"))
		if terr != nil {
			return terr
		}
		if !remaining.Equal(decimal.RequireFromString("40.00")) {
			t.Fatalf("expected remaining 40.00, got %s", remaining)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("debit transaction: %v", err)
	}

	row, err := svc.Get(ctx, user)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !row.Amount.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("unexpected persisted balance: %s", row.Amount)
	}

	history, err := svc.History(ctx, user, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var payments int
	for _, entry := range history {
		if entry.OperationType == enums.BalanceOperationPayment {
			payments++
		}
	}
	if payments != 1 {
		t.Fatalf("expected one payment history row, got %d", payments)
	}
}

func TestDebitInsufficientFundsRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newBalanceService(t, db)
	ctx := context.Background()
	user := uuid.New()

	if _, err := svc.Deposit(ctx, user, decimal.RequireFromString("10.00")); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Debit(ctx, tx, user, decimal.RequireFromString("10.01"))
		return terr
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	row, err := svc.Get(ctx, user)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !row.Amount.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("balance should be untouched, got %s", row.Amount)
	}
}

func TestDebitZeroAmountRecordsPayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newBalanceService(t, db)
	ctx := context.Background()
	user := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		remaining, terr := svc.Debit(ctx, tx, user, decimal.Zero)
		if terr != nil {
			return terr
		}
		if !remaining.IsZero() {
			t.Fatalf("expected zero remaining, got %s", remaining)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("zero debit: %v", err)
	}

	history, err := svc.History(ctx, user, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].OperationType != enums.BalanceOperationPayment {
		t.Fatalf("expected one payment history row, got %+v", history)
	}
}

func TestDebitUnknownUserIsInsufficientFunds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newBalanceService(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Debit(context.Background(), tx, uuid.New(), decimal.NewFromInt(1))
		return terr
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:balance_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.UserBalance{}, &models.UserBalanceHistory{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newBalanceService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	events := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(NewRepository(db), &txRunner{db: db}, events, nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}
