package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db/models"
)

// Repository wires together catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads products for the given ids, ordered by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// BulkCreate inserts the provided products in one statement.
func (r *Repository) BulkCreate(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	for i := range products {
		if products[i].ID == uuid.Nil {
			products[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&products).Error
}

// Update saves an existing product row.
func (r *Repository) Update(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Search filters products by optional category and case-insensitive name
// substring.
func (r *Repository) Search(ctx context.Context, categoryID *uuid.UUID, name string) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if categoryID != nil {
		query = query.Where("category_id = ?", *categoryID)
	}
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(trimmed)+"%")
	}
	var products []models.Product
	if err := query.Order("name ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ReplaceAttributes replaces the typed attribute rows for a product.
func (r *Repository) ReplaceAttributes(ctx context.Context, productID uuid.UUID, attrs []models.ProductAttribute) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductAttribute{}).Error; err != nil {
		return err
	}
	if len(attrs) == 0 {
		return nil
	}
	for i := range attrs {
		if attrs[i].ID == uuid.Nil {
			attrs[i].ID = uuid.New()
		}
		attrs[i].ProductID = productID
	}
	return tx.Create(&attrs).Error
}

// ListAttributes returns the attribute rows for a product.
func (r *Repository) ListAttributes(ctx context.Context, productID uuid.UUID) ([]models.ProductAttribute, error) {
	var attrs []models.ProductAttribute
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("key ASC").
		Find(&attrs).Error; err != nil {
		return nil, err
	}
	return attrs, nil
}

// CreateCategory inserts a category tree node.
func (r *Repository) CreateCategory(ctx context.Context, category *models.ProductCategory) (*models.ProductCategory, error) {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}
