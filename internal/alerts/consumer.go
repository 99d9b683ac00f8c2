package alerts

import (
	"context"
	"encoding/json"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/finxan/finxan-backend/pkg/events"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/google/uuid"
)

const emailConsumerName = "alert-emails"

type envelopeHandler interface {
	Handle(ctx context.Context, envelope events.PayloadEnvelope) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer reads alerts.created events from Pub/Sub and hands them to the notifier.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	handler      envelopeHandler
	manager      idempotencyChecker
	logg         *logger.Logger
}

func NewConsumer(subscription *gcppubsub.Subscriber, handler envelopeHandler, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("alerts subscription is required")
	}
	if handler == nil {
		return nil, errors.New("alert handler is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{subscription: subscription, handler: handler, manager: manager, logg: logg}, nil
}

type processResult struct {
	nack bool
}

// Run consumes until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	eventType := msg.Attributes[events.AttrEventType]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(events.EventAlertsCreated) {
		c.logg.Info(logCtx, "skipping unsupported event")
		return processResult{}
	}

	var envelope events.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.WarnErr(logCtx, "invalid alert envelope", err)
		return processResult{}
	}
	eventID, err := envelope.ID()
	if err != nil {
		c.logg.WarnErr(logCtx, "invalid event id", err)
		return processResult{}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	already, err := c.manager.CheckAndMarkProcessed(logCtx, emailConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	if err := c.handler.Handle(logCtx, envelope); err != nil {
		c.logg.Error(logCtx, "alert notification failed", err)
		if delErr := c.manager.Delete(logCtx, emailConsumerName, eventID); delErr != nil {
			c.logg.WarnErr(logCtx, "processed marker not cleared, redelivery will be skipped", delErr)
		}
		return processResult{nack: true}
	}
	return processResult{}
}
