package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/internal/catalog"
	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
)

func TestUpsertLineDefaultsToOne(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, db, "headphones", "80.00", 5)

	line, err := svc.UpsertLine(ctx, user, product, nil)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if line.Quantity != 1 {
		t.Fatalf("expected default quantity 1, got %d", line.Quantity)
	}
	if !line.Price.Equal(decimal.RequireFromString("80.00")) {
		t.Fatalf("expected price snapshot, got %s", line.Price)
	}
}

func TestUpsertLineClampsToStockAndReplacesQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, db, "webcam", "40.00", 3)

	qty := 2
	if _, err := svc.UpsertLine(ctx, user, product, &qty); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	qty = 10
	line, err := svc.UpsertLine(ctx, user, product, &qty)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if line.Quantity != 3 {
		t.Fatalf("expected clamp to stock 3, got %d", line.Quantity)
	}

	lines, err := svc.Lines(ctx, user)
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("upsert must not duplicate lines, got %d", len(lines))
	}
}

func TestUpsertLineRefreshesPrice(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, db, "keyboard", "60.00", 10)

	if _, err := svc.UpsertLine(ctx, user, product, nil); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	if err := db.Model(&models.Product{}).
		Where("id = ?", product).
		Update("price", decimal.RequireFromString("45.00")).Error; err != nil {
		t.Fatalf("reprice product: %v", err)
	}

	qty := 2
	line, err := svc.UpsertLine(ctx, user, product, &qty)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !line.Price.Equal(decimal.RequireFromString("45.00")) {
		t.Fatalf("expected refreshed price 45.00, got %s", line.Price)
	}
}

func TestUpsertLineRejectsMissingOrExhaustedProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.UpsertLine(ctx, user, uuid.New(), nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	exhausted := seedProduct(t, db, "vhs player", "20.00", 0)
	_, err = svc.UpsertLine(ctx, user, exhausted, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for exhausted product, got %v", err)
	}
}

func TestRemoveLineIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, db, "charger", "15.00", 5)

	if _, err := svc.UpsertLine(ctx, user, product, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.RemoveLine(ctx, user, product); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if err := svc.RemoveLine(ctx, user, product); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}

	lines, err := svc.Lines(ctx, user)
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(lines))
	}
}

func TestDrainRollbackRestoresCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, db, "tripod", "35.00", 5)

	if _, err := svc.UpsertLine(ctx, user, product, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	wantErr := pkgerrors.New(pkgerrors.CodeInternal, "forced failure")
	err := db.Transaction(func(tx *gorm.DB) error {
		lines, terr := svc.Drain(ctx, tx, user)
		if terr != nil {
			return terr
		}
		if len(lines) != 1 {
			t.Fatalf("expected 1 drained line, got %d", len(lines))
		}
		return wantErr
	})
	if err == nil {
		t.Fatal("expected forced rollback")
	}

	lines, err := svc.Lines(ctx, user)
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("rollback should restore the cart, got %d lines", len(lines))
	}
}

func TestDrainDetectsConcurrentCartChange(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	user := uuid.New()
	productA := seedProduct(t, db, "cable", "5.00", 10)
	productB := seedProduct(t, db, "adapter", "9.00", 10)

	if _, err := svc.UpsertLine(ctx, user, productA, nil); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if _, err := svc.UpsertLine(ctx, user, productB, nil); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	// Remove one line between the drain's read and its delete, the way a
	// second checkout for the same user would on a database without row locks.
	var stolen bool
	hook := func(d *gorm.DB) {
		if stolen {
			return
		}
		stolen = true
		if err := d.Session(&gorm.Session{NewDB: true}).
			Exec("DELETE FROM cart_items WHERE user_id = ? AND product_id = ?", user, productB).Error; err != nil {
			t.Errorf("steal line: %v", err)
		}
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("cart_race_test", hook); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, derr := svc.Drain(ctx, tx, user)
		return derr
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeTimeout {
		t.Fatalf("expected retryable conflict, got %v", err)
	}
	if !pkgerrors.Retryable(err) {
		t.Fatal("drain conflict must be retryable")
	}
}

func TestDeleteAllReportsRemovedLineCount(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newCartService(t, db)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, db, "stand", "25.00", 4)

	if _, err := svc.UpsertLine(ctx, user, product, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	repo := NewRepository(db)
	deleted, err := repo.DeleteAll(ctx, user)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted line, got %d", deleted)
	}

	deleted, err = repo.DeleteAll(ctx, user)
	if err != nil {
		t.Fatalf("repeat delete all: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deleted lines, got %d", deleted)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.CartItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newCartService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), catalog.NewRepository(db))
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, qty int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:                uuid.New(),
		Name:              name,
		OldPrice:          decimal.RequireFromString(price),
		Price:             decimal.RequireFromString(price),
		Available:         qty > 0,
		AvailableQuantity: qty,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}
