package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
	"github.com/ovlasenko/webshop-backend/pkg/outbox"
)

type txRunner struct {
	db *gorm.DB
}

func (r *txRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestReduceStockClampsAtZero(t *testing.T) {
	t.Parallel()

	db := newServiceTestDB(t)
	svc := newInventoryService(t, db)
	product := seedProduct(t, db, "monitor", "180.00", 4)

	reduction, err := svc.ReduceStock(context.Background(), product, 10)
	if err != nil {
		t.Fatalf("reduce stock: %v", err)
	}
	if reduction.Reduced != 4 || reduction.RemainingQuantity != 0 {
		t.Fatalf("unexpected reduction: %+v", reduction)
	}

	var stored models.Product
	if err := db.First(&stored, "id = ?", product).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if stored.AvailableQuantity != 0 || stored.Available {
		t.Fatalf("expected product to be exhausted and unavailable: %+v", stored)
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one staged event, got %d", events)
	}
}

func TestReduceStockMissingProduct(t *testing.T) {
	t.Parallel()

	db := newServiceTestDB(t)
	svc := newInventoryService(t, db)

	_, err := svc.ReduceStock(context.Background(), uuid.New(), 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReduceStockRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	db := newServiceTestDB(t)
	svc := newInventoryService(t, db)

	_, err := svc.ReduceStock(context.Background(), uuid.New(), 0)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_svc_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newInventoryService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	events := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(&txRunner{db: db}, events, nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}
