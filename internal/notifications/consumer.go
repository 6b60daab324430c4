package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	dbpkg "github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/mailer"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/registry"
)

const consumerName = "customer-notifications"

type processedGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// ConsumerParams wires the notification consumer.
type ConsumerParams struct {
	Repository   Repository
	Subscription *pubsub.Subscriber
	Guard        processedGuard
	Mailer       sender
	Logger       *logger.Logger
	Clock        func() time.Time
}

// Consumer turns fulfillment events into customer emails. Each event is
// recorded once in notifications before it is mailed.
type Consumer struct {
	repo         Repository
	subscription *pubsub.Subscriber
	guard        processedGuard
	mail         sender
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
	now          func() time.Time
}

// NewConsumer builds the notification consumer. Subscription may be nil when
// messages are fed through Handle directly.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Consumer{
		repo:         params.Repository,
		subscription: params.Subscription,
		guard:        params.Guard,
		mail:         params.Mailer,
		decoders:     newDecoders(),
		logg:         params.Logger,
		now:          clock,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("notification subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.Handle(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Handle processes one delivery and reports whether it should be acked.
// Malformed messages are acked so they do not loop; transient failures nack.
func (c *Consumer) Handle(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	fields := map[string]any{
		"message_id": messageID,
		"event_type": attrs["event_type"],
	}
	logCtx := c.logg.WithFields(ctx, fields)

	eventType, err := enums.ParseOutboxEventType(attrs["event_type"])
	if err != nil {
		c.logg.Warn(logCtx, "skipping unknown event type")
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	version := envelope.Version
	if version == 0 {
		version = 1
	}
	payload, err := c.decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return true
	}
	draft := render(eventType, payload)
	if draft == nil {
		c.logg.Debug(logCtx, "event not customer facing")
		return true
	}

	already, err := c.guard.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	if err := c.deliver(ctx, logCtx, eventID, eventType, draft); err != nil {
		c.logg.Error(logCtx, "notification delivery failed", err)
		if releaseErr := c.guard.Release(ctx, consumerName, eventID); releaseErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency marker", releaseErr)
		}
		return false
	}
	return true
}

func (c *Consumer) deliver(ctx, logCtx context.Context, eventID uuid.UUID, eventType enums.OutboxEventType, draft *Draft) error {
	notification, err := c.repo.FindByEvent(ctx, eventID.String())
	switch {
	case err == nil && notification.SentAt != nil:
		c.logg.Info(logCtx, "notification already sent")
		return nil
	case err == nil:
	case dbpkg.IsNotFound(err):
		user, err := c.repo.FindRecipient(ctx, draft.UserID)
		if dbpkg.IsNotFound(err) {
			c.logg.Warn(c.logg.WithUserID(logCtx, draft.UserID.String()), "no recipient on file; notification dropped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("load recipient: %w", err)
		}
		notification = &models.Notification{
			EventID:   eventID.String(),
			EventType: eventType,
			UserID:    draft.UserID,
			OrderID:   draft.OrderID,
			Recipient: user.Email,
			Subject:   draft.Subject,
			Body:      draft.Body,
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return fmt.Errorf("record notification: %w", err)
		}
	default:
		return fmt.Errorf("load notification: %w", err)
	}

	if err := c.mail.Send(ctx, mailer.Message{
		To:      notification.Recipient,
		Subject: notification.Subject,
		Body:    notification.Body,
	}); err != nil {
		if markErr := c.repo.MarkFailed(ctx, notification.ID, err.Error()); markErr != nil {
			c.logg.Error(logCtx, "failed to record send error", markErr)
		}
		return err
	}
	if err := c.repo.MarkSent(ctx, notification.ID, c.now().UTC()); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	c.logg.Info(c.logg.WithField(logCtx, "notification_id", notification.ID.String()), "customer notified")
	return nil
}
