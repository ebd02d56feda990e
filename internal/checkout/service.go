package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/internal/balance"
	"github.com/ovlasenko/webshop-backend/internal/cart"
	"github.com/ovlasenko/webshop-backend/internal/inventory"
	"github.com/ovlasenko/webshop-backend/internal/orders"
	"github.com/ovlasenko/webshop-backend/pkg/config"
	"github.com/ovlasenko/webshop-backend/pkg/db"
	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	"github.com/ovlasenko/webshop-backend/pkg/enums"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
	"github.com/ovlasenko/webshop-backend/pkg/metrics"
	"github.com/ovlasenko/webshop-backend/pkg/outbox"
	"github.com/ovlasenko/webshop-backend/pkg/outbox/payloads"
)

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Line describes one purchased or dropped line in the checkout result.
type Line struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Requested   int             `json:"requested"`
	Purchased   int             `json:"purchased"`
	Price       decimal.Decimal `json:"price"`
	Dropped     bool            `json:"dropped"`
	DropReason  string          `json:"drop_reason,omitempty"`
}

// Result is the outcome of a committed checkout.
type Result struct {
	OrderID          uuid.UUID       `json:"order_id"`
	TotalSum         decimal.Decimal `json:"total_sum"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Lines            []Line          `json:"lines"`
}

// Service coordinates the checkout transaction: drain the cart, reserve
// stock, debit the balance, and persist the order as one atomic unit.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID) (*Result, error)
}

type service struct {
	runner  TxRunner
	cart    cart.Service
	balance balance.Service
	orders  *orders.Repository
	events  *outbox.Service
	cfg     config.CheckoutConfig
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

func NewService(
	runner TxRunner,
	cartSvc cart.Service,
	balanceSvc balance.Service,
	ordersRepo *orders.Repository,
	events *outbox.Service,
	cfg config.CheckoutConfig,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cartSvc == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if balanceSvc == nil {
		return nil, fmt.Errorf("balance service required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		runner:  runner,
		cart:    cartSvc,
		balance: balanceSvc,
		orders:  ordersRepo,
		events:  events,
		cfg:     cfg,
		metrics: checkoutMetrics,
		logg:    logg,
	}, nil
}

// Checkout runs the transaction once and retries a single time on transient
// failures: lock contention, a concurrent checkout racing the cart, or a
// timed-out attempt. Business rejections are returned as-is.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	started := time.Now()
	result, err := s.attempt(ctx, userID)
	if err != nil && s.cfg.RetryOnceOnTx && (db.IsLockContention(err) || pkgerrors.Retryable(err)) {
		s.metrics.IncRetry()
		if s.logg != nil {
			s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "checkout retrying after lock contention")
		}
		result, err = s.attempt(ctx, userID)
	}

	outcome := outcomeLabel(err)
	s.metrics.Observe(outcome, time.Since(started))

	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":   userID.String(),
			"order_id":  result.OrderID.String(),
			"total_sum": result.TotalSum.String(),
		})
		s.logg.Info(logCtx, "checkout committed")
	}
	return result, nil
}

func (s *service) attempt(ctx context.Context, userID uuid.UUID) (*Result, error) {
	attemptCtx := ctx
	if s.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.LockTimeout)
		defer cancel()
	}

	var result *Result
	err := s.runner.WithTx(attemptCtx, func(tx *gorm.DB) error {
		lines, err := s.cart.Drain(attemptCtx, tx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		requests := make([]inventory.ReservationRequest, 0, len(lines))
		for _, line := range lines {
			requests = append(requests, inventory.ReservationRequest{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
			})
		}
		reservations, err := inventory.Reserve(attemptCtx, tx, requests)
		if err != nil {
			return err
		}

		resultLines := make([]Line, 0, len(reservations))
		items := make([]models.OrderItem, 0, len(reservations))
		total := decimal.Zero
		for _, reservation := range reservations {
			line := Line{
				ProductID:   reservation.ProductID,
				ProductName: reservation.ProductName,
				Requested:   reservation.Requested,
				Purchased:   reservation.Reserved,
				Price:       reservation.UnitPrice,
			}
			if reservation.Reserved == 0 {
				line.Dropped = true
				line.DropReason = reservation.Reason
				resultLines = append(resultLines, line)
				continue
			}
			resultLines = append(resultLines, line)
			items = append(items, models.OrderItem{
				ProductID: reservation.ProductID,
				Quantity:  reservation.Reserved,
				Price:     reservation.UnitPrice,
			})
			total = total.Add(reservation.UnitPrice.Mul(decimal.NewFromInt(int64(reservation.Reserved))))
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeNoItemsAvailable, "no cart items could be reserved")
		}

		remaining, err := s.balance.Debit(attemptCtx, tx, userID, total)
		if err != nil {
			return err
		}

		order := models.Order{
			UserID:   userID,
			TotalSum: &total,
			Active:   true,
			Items:    items,
		}
		if err := s.orders.WithTx(tx).Create(attemptCtx, &order); err != nil {
			return err
		}

		eventLines := make([]payloads.OrderCompletedLine, 0, len(items))
		for _, item := range items {
			eventLines = append(eventLines, payloads.OrderCompletedLine{
				ProductID:   item.ProductID,
				ProductName: productNameFor(resultLines, item.ProductID),
				Quantity:    item.Quantity,
				Price:       item.Price,
			})
		}
		if err := s.events.Emit(attemptCtx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderCompletedEvent{
				OrderID:  order.ID,
				UserID:   userID,
				TotalSum: total,
				Lines:    eventLines,
			},
		}); err != nil {
			return err
		}

		result = &Result{
			OrderID:          order.ID,
			TotalSum:         total,
			RemainingBalance: remaining,
			Lines:            resultLines,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "checkout timed out waiting for locks")
		}
		return nil, err
	}
	return result, nil
}

func productNameFor(lines []Line, productID uuid.UUID) string {
	for _, line := range lines {
		if line.ProductID == productID {
			return line.ProductName
		}
	}
	return ""
}

func outcomeLabel(err error) string {
	if err == nil {
		return "committed"
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}
