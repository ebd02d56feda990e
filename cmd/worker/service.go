package main

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/ovlasenko/webshop-backend/internal/notifications"
	"github.com/ovlasenko/webshop-backend/pkg/config"
	"github.com/ovlasenko/webshop-backend/pkg/db"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
	"github.com/ovlasenko/webshop-backend/pkg/pubsub"
)

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	PubSub   *pubsub.Client
	Consumer *notifications.Consumer
}

// Service runs the notification worker loop: it receives order and balance
// events from the orders subscription and hands them to the consumer.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       *db.Client
	pubsub   *pubsub.Client
	consumer *notifications.Consumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		db:       params.DB,
		pubsub:   params.PubSub,
		consumer: params.Consumer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks on the subscription until the context is canceled. Messages are
// acked when handling succeeds or is permanently unprocessable, and nacked
// for transient failures so Pub/Sub redelivers them.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	sub := s.pubsub.OrdersSubscription()
	if sub == nil {
		return errors.New("orders subscription not configured")
	}

	s.logg.Info(ctx, "notification worker listening")

	err := sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"event_type": msg.Attributes["event_type"],
		})
		handleErr := s.consumer.Handle(logCtx, notifications.ConsumedMessage{
			EventType: msg.Attributes["event_type"],
			Data:      msg.Data,
		})
		if handleErr != nil {
			s.logg.Error(logCtx, "handling event failed, requeueing", handleErr)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
