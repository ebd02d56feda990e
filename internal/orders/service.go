package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
)

// Service exposes order history operations. Orders are created by checkout;
// this service only reads and administers them afterwards.
type Service interface {
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.Order, error)
	SetActive(ctx context.Context, userID, orderID uuid.UUID, active bool) (*models.Order, error)
	Delete(ctx context.Context, userID, orderID uuid.UUID) error
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.repo.ListByUser(ctx, userID, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

func (s *service) SetActive(ctx context.Context, userID, orderID uuid.UUID, active bool) (*models.Order, error) {
	order, err := s.load(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Active == active {
		return order, nil
	}
	if _, err := s.repo.SetActive(ctx, orderID, active); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	order.Active = active
	return order, nil
}

func (s *service) Delete(ctx context.Context, userID, orderID uuid.UUID) error {
	if _, err := s.load(ctx, userID, orderID); err != nil {
		return err
	}
	if err := s.repo.DeleteItems(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order items")
	}
	if _, err := s.repo.Delete(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
	}
	return nil
}

// load fetches the order and verifies ownership. A foreign order reads as
// not found so order ids cannot be probed across users.
func (s *service) load(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id are required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}
