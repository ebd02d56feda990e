package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ovlasenko/webshop-backend/pkg/db/models"
	"github.com/ovlasenko/webshop-backend/pkg/enums"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
	"github.com/ovlasenko/webshop-backend/pkg/outbox"
	"github.com/ovlasenko/webshop-backend/pkg/outbox/payloads"
)

// ConsumerName tags the processed-events rows written by this worker.
const ConsumerName = "notification-worker"

// TxRunner executes fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ConsumedMessage is one event pulled off the orders subscription. EventType
// travels as a message attribute; Data is the envelope stored in the outbox.
type ConsumedMessage struct {
	EventType string
	Data      []byte
}

// Consumer turns order and balance events into per-user notifications.
// Processing is idempotent per event id, so redelivered messages are
// acknowledged without side effects.
type Consumer struct {
	repo   *Repository
	runner TxRunner
	mailer Mailer
	logg   *logger.Logger
}

func NewConsumer(repo *Repository, runner TxRunner, mailer Mailer, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Consumer{repo: repo, runner: runner, mailer: mailer, logg: logg}, nil
}

// Handle processes one message. A nil return means the message can be acked;
// an error means it should be redelivered.
func (c *Consumer) Handle(ctx context.Context, msg ConsumedMessage) error {
	eventType, err := enums.ParseOutboxEventType(msg.EventType)
	if err != nil {
		// Unknown types are acked so a bad producer cannot wedge the
		// subscription.
		if c.logg != nil {
			c.logg.Warn(ctx, "dropping message with unknown event type "+msg.EventType)
		}
		return nil
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		if c.logg != nil {
			c.logg.Warn(ctx, "dropping undecodable event payload")
		}
		return nil
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		if c.logg != nil {
			c.logg.Warn(ctx, "dropping event with malformed id")
		}
		return nil
	}

	notification, err := buildNotification(eventType, envelope.Data)
	if err != nil {
		if c.logg != nil {
			c.logg.Warn(ctx, "dropping event with malformed data: "+err.Error())
		}
		return nil
	}
	if notification == nil {
		return nil
	}

	if c.logg != nil {
		ctx = c.logg.WithEventID(ctx, eventID.String())
	}

	var duplicate bool
	err = c.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		seen, err := repo.AlreadyProcessed(ctx, ConsumerName, eventID)
		if err != nil {
			return err
		}
		if seen {
			duplicate = true
			return nil
		}
		if err := repo.Create(ctx, notification); err != nil {
			return err
		}
		return repo.MarkProcessed(ctx, ConsumerName, eventID)
	})
	if err != nil {
		return err
	}
	if duplicate {
		return nil
	}

	if c.mailer != nil {
		// Mail failures are logged but never block the ack; the
		// notification row is already committed.
		recipient := notification.UserID.String() + "@users.webshop.local"
		if err := c.mailer.Send(ctx, recipient, notification.Subject, notification.Body); err != nil && c.logg != nil {
			c.logg.Error(ctx, "sending notification mail", err)
		}
	}

	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"event_type": string(eventType),
			"user_id":    notification.UserID.String(),
		})
		c.logg.Info(logCtx, "notification stored")
	}
	return nil
}

func buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventOrderCompleted:
		var event payloads.OrderCompletedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		body := fmt.Sprintf("Your order %s for %s was completed.", event.OrderID, event.TotalSum)
		for _, line := range event.Lines {
			body += fmt.Sprintf("\n- %s x%d at %s", line.ProductName, line.Quantity, line.Price)
		}
		return &models.Notification{
			UserID:  event.UserID,
			Subject: "Order confirmed",
			Body:    body,
		}, nil
	case enums.EventFundsDeposited:
		var event payloads.FundsDepositedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, err
		}
		return &models.Notification{
			UserID:  event.UserID,
			Subject: "Balance topped up",
			Body:    fmt.Sprintf("Your deposit of %s was received. New balance: %s.", event.Amount, event.NewBalance),
		}, nil
	default:
		// Stock adjustments are not user-facing.
		return nil, nil
	}
}
