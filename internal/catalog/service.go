package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
)

// Service exposes catalog management operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	BulkCreateProducts(ctx context.Context, inputs []CreateProductInput) (int, error)
	UpdateField(ctx context.Context, productID uuid.UUID, field string, value any) (*models.Product, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ProductAttributes(ctx context.Context, productID uuid.UUID) (map[string]string, error)
	Search(ctx context.Context, categoryID *uuid.UUID, name string) ([]models.Product, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	CategoryID        *uuid.UUID
	Name              string
	Description       string
	OldPrice          decimal.Decimal
	Discount          int
	Tags              []string
	Available         bool
	AvailableQuantity int
	Attributes        map[string]string
}

type service struct {
	repo *Repository
}

// NewService builds a catalog service backed by the provided repository.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	product, err := buildProduct(input)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	if len(input.Attributes) > 0 {
		attrs := make([]models.ProductAttribute, 0, len(input.Attributes))
		for key, value := range input.Attributes {
			attrs = append(attrs, models.ProductAttribute{Key: key, Value: value})
		}
		if err := s.repo.ReplaceAttributes(ctx, created.ID, attrs); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store product attributes")
		}
	}
	return created, nil
}

func (s *service) BulkCreateProducts(ctx context.Context, inputs []CreateProductInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	products := make([]models.Product, 0, len(inputs))
	for _, input := range inputs {
		product, err := buildProduct(input)
		if err != nil {
			return 0, err
		}
		products = append(products, *product)
	}
	if err := s.repo.BulkCreate(ctx, products); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bulk create products")
	}
	return len(products), nil
}

// UpdateField mutates a single whitelisted product field. Price-affecting
// fields trigger a recompute of the derived price.
func (s *service) UpdateField(ctx context.Context, productID uuid.UUID, field string, value any) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	switch field {
	case "name":
		name, ok := value.(string)
		if !ok || name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must be a non-empty string")
		}
		product.Name = name
	case "description":
		description, ok := value.(string)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "description must be a string")
		}
		product.Description = description
	case "old_price":
		price, err := toDecimal(value)
		if err != nil || price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "old_price must be a non-negative decimal")
		}
		product.OldPrice = price
		product.RecomputePrice()
	case "discount":
		discount, ok := toInt(value)
		if !ok || discount < 0 || discount > 100 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
		}
		product.Discount = discount
		product.RecomputePrice()
	case "available_quantity":
		qty, ok := toInt(value)
		if !ok || qty < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "available_quantity must be non-negative")
		}
		product.AvailableQuantity = qty
	case "available":
		available, ok := value.(bool)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "available must be a boolean")
		}
		if !available && product.AvailableQuantity > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot mark product unavailable while stock remains")
		}
		product.Available = available
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("field %q cannot be updated", field))
	}

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return updated, nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	return s.loadProduct(ctx, productID)
}

// ProductAttributes returns the typed attribute rows as a key/value map.
func (s *service) ProductAttributes(ctx context.Context, productID uuid.UUID) (map[string]string, error) {
	rows, err := s.repo.ListAttributes(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product attributes")
	}
	attrs := make(map[string]string, len(rows))
	for _, row := range rows {
		attrs[row.Key] = row.Value
	}
	return attrs, nil
}

func (s *service) Search(ctx context.Context, categoryID *uuid.UUID, name string) ([]models.Product, error) {
	products, err := s.repo.Search(ctx, categoryID, name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	return products, nil
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func buildProduct(input CreateProductInput) (*models.Product, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.OldPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "old_price must be non-negative")
	}
	if input.Discount < 0 || input.Discount > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
	}
	if input.AvailableQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available_quantity must be non-negative")
	}
	if !input.Available && input.AvailableQuantity > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot hold stock for an unavailable product")
	}
	product := &models.Product{
		CategoryID:        input.CategoryID,
		Name:              input.Name,
		Description:       input.Description,
		OldPrice:          input.OldPrice,
		Discount:          input.Discount,
		Tags:              pq.StringArray(input.Tags),
		Available:         input.Available,
		AvailableQuantity: input.AvailableQuantity,
	}
	product.RecomputePrice()
	return product, nil
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported decimal value %T", value)
	}
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}
