package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/internal/catalog"
	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
)

// Service manages the pending cart ahead of checkout.
type Service interface {
	Lines(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	UpsertLine(ctx context.Context, userID, productID uuid.UUID, quantity *int) (*models.CartItem, error)
	RemoveLine(ctx context.Context, userID, productID uuid.UUID) error

	// Drain reads and deletes all lines inside the caller's transaction so
	// an aborted checkout leaves the cart exactly as it was.
	Drain(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]models.CartItem, error)
}

type service struct {
	repo    *Repository
	catalog *catalog.Repository
}

func NewService(repo *Repository, catalogRepo *catalog.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo, catalog: catalogRepo}, nil
}

func (s *service) Lines(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	lines, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return lines, nil
}

// UpsertLine adds a product to the cart or replaces the quantity of an
// existing line. A nil quantity defaults to one. The requested quantity is
// clamped to current stock and the line price is refreshed to the product's
// current price.
func (s *service) UpsertLine(ctx context.Context, userID, productID uuid.UUID, quantity *int) (*models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	requested := 1
	if quantity != nil {
		requested = *quantity
	}
	if requested <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.catalog.FindByID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Available || product.AvailableQuantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is out of stock")
	}
	if requested > product.AvailableQuantity {
		requested = product.AvailableQuantity
	}

	line, err := s.repo.FindLine(ctx, userID, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		line = &models.CartItem{UserID: userID, ProductID: productID}
	} else if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}

	line.Quantity = requested
	line.Price = product.Price
	if err := s.repo.Save(ctx, line); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
	}
	return line, nil
}

func (s *service) RemoveLine(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := s.repo.DeleteLine(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return nil
}

func (s *service) Drain(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]models.CartItem, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "drain requires a transaction")
	}
	repo := s.repo.WithTx(tx)
	lines, err := repo.LinesForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	deleted, err := repo.DeleteAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	// SQLite takes no row locks, so a concurrent checkout can still race the
	// read. The delete count catches it; the caller may retry.
	if deleted != int64(len(lines)) {
		return nil, pkgerrors.New(pkgerrors.CodeTimeout, "cart changed during checkout")
	}
	return lines, nil
}
