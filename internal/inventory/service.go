package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db"
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

// StockReduction is the outcome of an external stock adjustment.
type StockReduction struct {
	ProductID         uuid.UUID
	Reduced           int
	RemainingQuantity int
}

// Service handles stock adjustments that originate outside of checkout,
// such as warehouse corrections reported by an external system.
type Service interface {
	ReduceStock(ctx context.Context, productID uuid.UUID, quantity int) (*StockReduction, error)
}

type service struct {
	runner TxRunner
	events *outbox.Service
	logg   *logger.Logger
}

func NewService(runner TxRunner, events *outbox.Service, logg *logger.Logger) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{runner: runner, events: events, logg: logg}, nil
}

// ReduceStock locks the product row and subtracts quantity, clamping the
// remainder at zero. A product whose stock reaches zero is marked
// unavailable so it stops appearing in the storefront.
func (s *service) ReduceStock(ctx context.Context, productID uuid.UUID, quantity int) (*StockReduction, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var reduction *StockReduction
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		var product models.Product
		err := db.LockForUpdate(tx.WithContext(ctx)).
			Where("id = ?", productID).
			First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err != nil {
			return err
		}

		reduced := quantity
		if reduced > product.AvailableQuantity {
			reduced = product.AvailableQuantity
		}
		remaining := product.AvailableQuantity - reduced

		updates := map[string]any{"available_quantity": remaining}
		if remaining == 0 {
			updates["available"] = false
		}
		if err := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", productID).
			Updates(updates).Error; err != nil {
			return err
		}

		reduction = &StockReduction{
			ProductID:         productID,
			Reduced:           reduced,
			RemainingQuantity: remaining,
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateProduct,
			AggregateID:   productID,
			Version:       1,
			Data: payloads.StockAdjustedEvent{
				ProductID:         productID,
				Reduced:           reduced,
				RemainingQuantity: remaining,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"reduced":    reduction.Reduced,
			"remaining":  reduction.RemainingQuantity,
		})
		s.logg.Info(logCtx, "stock reduced externally")
	}
	return reduction, nil
}
