package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ovlasenko/webshop-backend/api/responses"
	"github.com/ovlasenko/webshop-backend/api/validators"
	catalogsvc "github.com/ovlasenko/webshop-backend/internal/catalog"
	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
)

type productRequest struct {
	CategoryID        *uuid.UUID        `json:"category_id,omitempty" validate:"omitempty,uuid4"`
	Name              string            `json:"name" validate:"required,min=1,max=255"`
	Description       string            `json:"description,omitempty"`
	OldPrice          string            `json:"old_price" validate:"required"`
	Discount          int               `json:"discount" validate:"gte=0,lte=100"`
	Tags              []string          `json:"tags,omitempty"`
	Available         bool              `json:"available"`
	AvailableQuantity int               `json:"available_quantity" validate:"gte=0"`
	Attributes        map[string]string `json:"attributes,omitempty"`
}

type bulkProductsRequest struct {
	Products []productRequest `json:"products" validate:"required,min=1,dive"`
}

type updateFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value any    `json:"value"`
}

type productResponse struct {
	ID                uuid.UUID         `json:"id"`
	CategoryID        *uuid.UUID        `json:"category_id,omitempty"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	OldPrice          decimal.Decimal   `json:"old_price"`
	Discount          int               `json:"discount"`
	Price             decimal.Decimal   `json:"price"`
	Tags              []string          `json:"tags,omitempty"`
	Available         bool              `json:"available"`
	AvailableQuantity int               `json:"available_quantity"`
	Attributes        map[string]string `json:"attributes,omitempty"`
}

// SearchProducts filters the catalog by optional category and name substring.
func SearchProducts(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var categoryID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "category_id must be a uuid"))
				return
			}
			categoryID = &parsed
		}

		products, err := svc.Search(r.Context(), categoryID, r.URL.Query().Get("name"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(products))
		for _, product := range products {
			out = append(out, newProductResponse(&product))
		}
		responses.WriteSuccess(w, out)
	}
}

// GetProduct returns one catalog listing.
func GetProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParsePathUUID(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		attrs, err := svc.ProductAttributes(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := newProductResponse(product)
		out.Attributes = attrs
		responses.WriteSuccess(w, out)
	}
}

// CreateProduct adds one catalog listing.
func CreateProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(product))
	}
}

// BulkCreateProducts inserts a batch of listings in one statement.
func BulkCreateProducts(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload bulkProductsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		inputs := make([]catalogsvc.CreateProductInput, 0, len(payload.Products))
		for _, product := range payload.Products {
			input, err := product.toInput()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			inputs = append(inputs, input)
		}

		created, err := svc.BulkCreateProducts(r.Context(), inputs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"created": created})
	}
}

// UpdateProductField mutates a single whitelisted field on a listing.
func UpdateProductField(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParsePathUUID(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateFieldRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateField(r.Context(), productID, payload.Field, payload.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}

func (p productRequest) toInput() (catalogsvc.CreateProductInput, error) {
	oldPrice, err := decimal.NewFromString(p.OldPrice)
	if err != nil {
		return catalogsvc.CreateProductInput{}, pkgerrors.New(pkgerrors.CodeValidation, "old_price must be a decimal string")
	}
	return catalogsvc.CreateProductInput{
		CategoryID:        p.CategoryID,
		Name:              p.Name,
		Description:       p.Description,
		OldPrice:          oldPrice,
		Discount:          p.Discount,
		Tags:              p.Tags,
		Available:         p.Available,
		AvailableQuantity: p.AvailableQuantity,
		Attributes:        p.Attributes,
	}, nil
}

func newProductResponse(product *models.Product) productResponse {
	return productResponse{
		ID:                product.ID,
		CategoryID:        product.CategoryID,
		Name:              product.Name,
		Description:       product.Description,
		OldPrice:          product.OldPrice,
		Discount:          product.Discount,
		Price:             product.Price,
		Tags:              product.Tags,
		Available:         product.Available,
		AvailableQuantity: product.AvailableQuantity,
	}
}
