package returns

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/stripe"
)

// RefundInstruction is what the core hands to a payment collaborator.
type RefundInstruction struct {
	ReturnID         uuid.UUID
	OrderID          uuid.UUID
	OrderNumber      string
	PaymentMethod    enums.PaymentMethod
	PaymentReference string
	Amount           decimal.Decimal
}

// RefundReceipt is the collaborator's acknowledgement of an instruction.
type RefundReceipt struct {
	ID     string
	Status enums.RefundStatus
}

// RefundGateway issues refunds and reports their settlement. Refund must be
// idempotent on ReturnID.
type RefundGateway interface {
	Name() string
	Refund(ctx context.Context, instruction RefundInstruction) (*RefundReceipt, error)
	Status(ctx context.Context, refundID string) (enums.RefundStatus, error)
}

type stripeRefunder interface {
	Refund(ctx context.Context, req stripe.RefundRequest) (*stripe.Refund, error)
	Status(ctx context.Context, refundID string) (enums.RefundStatus, error)
}

// StripeGateway refunds card and wallet payments through Stripe.
type StripeGateway struct {
	client stripeRefunder
}

// NewStripeGateway adapts a Stripe client to RefundGateway.
func NewStripeGateway(client stripeRefunder) *StripeGateway {
	return &StripeGateway{client: client}
}

func (g *StripeGateway) Name() string {
	return stripe.GatewayName
}

func (g *StripeGateway) Refund(ctx context.Context, instruction RefundInstruction) (*RefundReceipt, error) {
	refund, err := g.client.Refund(ctx, stripe.RefundRequest{
		IdempotencyKey:   "refund:" + instruction.ReturnID.String(),
		PaymentReference: instruction.PaymentReference,
		Amount:           instruction.Amount,
		Metadata: map[string]string{
			"return_id":    instruction.ReturnID.String(),
			"order_id":     instruction.OrderID.String(),
			"order_number": instruction.OrderNumber,
		},
	})
	if err != nil {
		return nil, err
	}
	return &RefundReceipt{ID: refund.ID, Status: refund.Status}, nil
}

func (g *StripeGateway) Status(ctx context.Context, refundID string) (enums.RefundStatus, error) {
	return g.client.Status(ctx, refundID)
}

// ManualGatewayName labels refunds paid out by staff, e.g. for cash on delivery.
const ManualGatewayName = "manual"

// ManualGateway records refunds that staff settle outside any processor.
// Settlement arrives through UpdateRefundStatus, never through polling.
type ManualGateway struct{}

func (ManualGateway) Name() string {
	return ManualGatewayName
}

func (ManualGateway) Refund(_ context.Context, instruction RefundInstruction) (*RefundReceipt, error) {
	return &RefundReceipt{
		ID:     "manual_" + instruction.ReturnID.String(),
		Status: enums.RefundStatusPending,
	}, nil
}

func (ManualGateway) Status(context.Context, string) (enums.RefundStatus, error) {
	return enums.RefundStatusPending, nil
}
