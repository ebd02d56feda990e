package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is the canonical catalog listing. Price is derived from OldPrice
// and Discount and recomputed whenever either changes; it is never written
// directly by callers.
type Product struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID        *uuid.UUID         `gorm:"column:category_id;type:uuid"`
	Name              string             `gorm:"column:name;not null"`
	Description       string             `gorm:"column:description"`
	OldPrice          decimal.Decimal    `gorm:"column:old_price;type:numeric(12,2);not null"`
	Discount          int                `gorm:"column:discount;not null;default:0"`
	Price             decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Tags              pq.StringArray     `gorm:"column:tags;type:text[]"`
	Available         bool               `gorm:"column:available;not null"`
	AvailableQuantity int                `gorm:"column:available_quantity;not null;default:0"`
	Attributes        []ProductAttribute `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// RecomputePrice derives the discounted price: old_price * (1 - discount/100).
// The result is clamped at zero so a misconfigured discount can never produce
// a negative price.
func (p *Product) RecomputePrice() {
	discount := decimal.NewFromInt(int64(p.Discount)).Div(decimal.NewFromInt(100))
	price := p.OldPrice.Mul(decimal.NewFromInt(1).Sub(discount)).Round(2)
	if price.IsNegative() {
		price = decimal.Zero
	}
	p.Price = price
}

// ProductAttribute is a typed key/value side-table replacing the legacy
// dynamic attribute bag.
type ProductAttribute struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_attributes_key"`
	Key       string    `gorm:"column:key;not null;uniqueIndex:ux_product_attributes_key"`
	Value     string    `gorm:"column:value;not null"`
}

// ProductCategory is a node in the category tree.
type ProductCategory struct {
	ID       uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name     string     `gorm:"column:name;not null"`
	ParentID *uuid.UUID `gorm:"column:parent_id;type:uuid"`
}
