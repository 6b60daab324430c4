package notifications

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/registry"
)

// Draft is the customer message produced for one event.
type Draft struct {
	UserID  uuid.UUID
	OrderID *uuid.UUID
	Subject string
	Body    string
}

var orderStatusPhrases = map[enums.OrderStatus]string{
	enums.OrderStatusConfirmed:      "has been confirmed",
	enums.OrderStatusShipped:        "has shipped",
	enums.OrderStatusOutForDelivery: "is out for delivery",
	enums.OrderStatusDelivered:      "has been delivered",
	enums.OrderStatusCancelled:      "has been cancelled",
}

var returnStatusPhrases = map[enums.ReturnRequestStatus]string{
	enums.ReturnStatusApproved: "was approved",
	enums.ReturnStatusRejected: "was rejected",
	enums.ReturnStatusReceived: "arrived at our warehouse",
	enums.ReturnStatusQCFailed: "did not pass inspection",
}

var pickupStatusPhrases = map[enums.PickupStatus]string{
	enums.PickupStatusScheduled:   "is scheduled",
	enums.PickupStatusRescheduled: "was rescheduled",
	enums.PickupStatusAttempted:   "could not be completed",
	enums.PickupStatusCompleted:   "is complete",
}

func newDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	register := func(eventType enums.OutboxEventType, factory func() any) {
		decoders.Register(eventType, 1, func(raw json.RawMessage) (interface{}, error) {
			payload := factory()
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		})
	}
	register(enums.EventOrderCreated, func() any { return &payloads.OrderCreatedEvent{} })
	register(enums.EventOrderStatusChanged, func() any { return &payloads.OrderStatusChangedEvent{} })
	register(enums.EventReturnRequested, func() any { return &payloads.ReturnRequestedEvent{} })
	register(enums.EventReturnStatusChanged, func() any { return &payloads.ReturnStatusChangedEvent{} })
	register(enums.EventPickupUpdated, func() any { return &payloads.PickupUpdatedEvent{} })
	register(enums.EventRefundInitiated, func() any { return &payloads.RefundEvent{} })
	register(enums.EventRefundCompleted, func() any { return &payloads.RefundEvent{} })
	return decoders
}

// render turns a decoded payload into a draft. It returns nil for events the
// customer is not told about.
func render(eventType enums.OutboxEventType, payload any) *Draft {
	switch p := payload.(type) {
	case *payloads.OrderCreatedEvent:
		return orderDraft(p.UserID, p.OrderID,
			fmt.Sprintf("Order %s placed", p.OrderNumber),
			fmt.Sprintf("Thanks for your order %s. We have received %s for %d item(s), paid by %s.",
				p.OrderNumber, p.FinalAmount.StringFixed(2), p.ItemCount, p.PaymentMethod))

	case *payloads.OrderStatusChangedEvent:
		phrase, ok := orderStatusPhrases[p.To]
		if !ok {
			return nil
		}
		body := fmt.Sprintf("Your order %s %s.", p.OrderNumber, phrase)
		if p.To == enums.OrderStatusCancelled && p.Reason != "" {
			body += " Reason: " + p.Reason
		}
		return orderDraft(p.UserID, p.OrderID, fmt.Sprintf("Order %s %s", p.OrderNumber, phrase), body)

	case *payloads.ReturnRequestedEvent:
		return orderDraft(p.UserID, p.OrderID,
			fmt.Sprintf("Return requested for order %s", p.OrderNumber),
			fmt.Sprintf("We received your return request for order %s. If approved, %s will be refunded.",
				p.OrderNumber, p.RefundAmount.StringFixed(2)))

	case *payloads.ReturnStatusChangedEvent:
		phrase, ok := returnStatusPhrases[p.To]
		if !ok {
			return nil
		}
		body := fmt.Sprintf("Your return for order %s %s.", p.OrderNumber, phrase)
		if p.Comment != "" {
			body += "\n\n" + p.Comment
		}
		return orderDraft(p.UserID, p.OrderID, fmt.Sprintf("Return for order %s %s", p.OrderNumber, phrase), body)

	case *payloads.PickupUpdatedEvent:
		phrase, ok := pickupStatusPhrases[p.Status]
		if !ok {
			return nil
		}
		body := fmt.Sprintf("Your return pickup %s.", phrase)
		if p.Status == enums.PickupStatusScheduled || p.Status == enums.PickupStatusRescheduled {
			body = fmt.Sprintf("Your return pickup %s for %s (%s).",
				phrase, p.ScheduledDate.UTC().Format(time.DateOnly), strings.ToLower(string(p.Slot)))
		}
		return &Draft{UserID: p.UserID, Subject: "Return pickup " + phrase, Body: body}

	case *payloads.RefundEvent:
		if eventType == enums.EventRefundCompleted {
			return orderDraft(p.UserID, p.OrderID,
				fmt.Sprintf("Refund for order %s completed", p.OrderNumber),
				fmt.Sprintf("Your refund of %s for order %s has been paid.", p.Amount.StringFixed(2), p.OrderNumber))
		}
		return orderDraft(p.UserID, p.OrderID,
			fmt.Sprintf("Refund for order %s initiated", p.OrderNumber),
			fmt.Sprintf("We have started a refund of %s for order %s (reference %s).",
				p.Amount.StringFixed(2), p.OrderNumber, p.RefundID))
	}
	return nil
}

func orderDraft(userID, orderID uuid.UUID, subject, body string) *Draft {
	id := orderID
	return &Draft{UserID: userID, OrderID: &id, Subject: subject, Body: body}
}
