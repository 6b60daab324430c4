package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	// GatewayName labels refunds issued through Stripe.
	GatewayName = "stripe"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	errMissingIntent    = errors.New("order has no payment reference to refund against")
)

// refundAPI is the refund surface of *stripe.Client.
type refundAPI interface {
	Create(ctx context.Context, params *stripe.RefundCreateParams) (*stripe.Refund, error)
	Retrieve(ctx context.Context, id string, params *stripe.RefundRetrieveParams) (*stripe.Refund, error)
}

// RefundRequest is one refund against a captured payment intent.
type RefundRequest struct {
	IdempotencyKey   string
	PaymentReference string
	Amount           decimal.Decimal
	Metadata         map[string]string
}

// Refund is the gateway's view of an issued refund.
type Refund struct {
	ID     string
	Status enums.RefundStatus
}

// Client issues and polls refunds.
type Client struct {
	refunds     refundAPI
	environment string
}

// NewClient initializes Stripe once with the configured secret and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return newClient(api.V1Refunds, env), nil
}

func newClient(refunds refundAPI, env string) *Client {
	return &Client{refunds: refunds, environment: env}
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// Name identifies the gateway in metrics and refund events.
func (c *Client) Name() string {
	return GatewayName
}

// Refund issues a refund for the request. Stripe deduplicates on the
// idempotency key, so a retried call returns the original refund.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	intent := strings.TrimSpace(req.PaymentReference)
	if intent == "" {
		return nil, errMissingIntent
	}
	cents := ToMinorUnits(req.Amount)
	if cents <= 0 {
		return nil, fmt.Errorf("refund amount must be positive, got %s", req.Amount.String())
	}

	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(intent),
		Amount:        stripe.Int64(cents),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	refund, err := c.refunds.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund: %w", err)
	}
	return &Refund{ID: refund.ID, Status: mapStatus(refund.Status)}, nil
}

// Status polls the current settlement state of refundID.
func (c *Client) Status(ctx context.Context, refundID string) (enums.RefundStatus, error) {
	refund, err := c.refunds.Retrieve(ctx, refundID, &stripe.RefundRetrieveParams{})
	if err != nil {
		return "", fmt.Errorf("stripe refund lookup: %w", err)
	}
	return mapStatus(refund.Status), nil
}

// ToMinorUnits converts an amount to the smallest currency unit, rounding
// half-up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func mapStatus(status stripe.RefundStatus) enums.RefundStatus {
	switch status {
	case stripe.RefundStatusSucceeded:
		return enums.RefundStatusCompleted
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return enums.RefundStatusFailed
	default:
		return enums.RefundStatusPending
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
