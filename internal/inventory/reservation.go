package inventory

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db"
	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
)

// ReservationRequest asks for a quantity of one product.
type ReservationRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// ReservationResult reports how much of a request was actually reserved.
// Reserved may be lower than Requested when stock ran short, and zero when
// the line was dropped entirely.
type ReservationResult struct {
	ProductID   uuid.UUID
	ProductName string
	UnitPrice   decimal.Decimal
	Requested   int
	Reserved    int
	Reason      string
}

// Reserve locks the product rows named by the requests and decrements their
// stock, clamping each grant to what is available. Rows are locked in
// ascending product id order so concurrent reservations acquire locks in a
// consistent order. Missing or unavailable products are reported as dropped
// lines rather than errors. Must run inside the caller's transaction.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reservation requires a transaction")
	}
	for _, req := range requests {
		if req.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation product id is required")
		}
	}

	order := make([]int, len(requests))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return requests[order[i]].ProductID.String() < requests[order[j]].ProductID.String()
	})

	results := make([]ReservationResult, len(requests))
	for _, idx := range order {
		req := requests[idx]
		result := &results[idx]
		result.ProductID = req.ProductID
		result.Requested = req.Quantity

		var product models.Product
		err := db.LockForUpdate(tx.WithContext(ctx)).
			Where("id = ?", req.ProductID).
			First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.Reason = "product no longer exists"
			continue
		}
		if err != nil {
			return nil, err
		}

		result.ProductName = product.Name
		result.UnitPrice = product.Price
		if !product.Available || product.AvailableQuantity <= 0 {
			result.Reason = "out of stock"
			continue
		}

		granted := req.Quantity
		if granted > product.AvailableQuantity {
			granted = product.AvailableQuantity
		}
		remaining := product.AvailableQuantity - granted

		updates := map[string]any{"available_quantity": remaining}
		if remaining == 0 {
			updates["available"] = false
		}
		if err := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", req.ProductID).
			Updates(updates).Error; err != nil {
			return nil, err
		}
		result.Reserved = granted
	}

	return results, nil
}
