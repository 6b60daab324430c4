// Package wiring assembles the domain services shared by the api and job
// binaries from already constructed infrastructure clients.
package wiring

import (
	"fmt"
	"time"

	"github.com/angelmondragon/fulfillment-backend/internal/address"
	"github.com/angelmondragon/fulfillment-backend/internal/cart"
	"github.com/angelmondragon/fulfillment-backend/internal/inventory"
	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	"github.com/angelmondragon/fulfillment-backend/internal/returns"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

// Params carries the infrastructure every binary builds for itself. Sequences,
// Evidence and OnlineRefunds are optional.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            *db.Client
	Sequences     redis.SequenceStore
	Evidence      returns.EvidenceStore
	OnlineRefunds returns.RefundGateway
	Metrics       *metrics.Fulfillment
	Clock         func() time.Time
}

// Services are the domain entry points.
type Services struct {
	Orders        orders.Service
	Returns       returns.Service
	Notifications notifications.Service
	Outbox        *outbox.Service
}

// Build constructs the domain services on top of p.
func Build(p Params) (*Services, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if p.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	conn := p.DB.DB()

	shipping, err := p.Config.Orders.ShippingChargeAmount()
	if err != nil {
		return nil, err
	}
	carts, err := cart.NewReader(cart.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("cart reader: %w", err)
	}
	addresses, err := address.NewService(address.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("address service: %w", err)
	}
	ledgerOpts := []inventory.Option{inventory.WithRecorder(p.Metrics)}
	if p.Clock != nil {
		ledgerOpts = append(ledgerOpts, inventory.WithClock(p.Clock))
	}
	ledger, err := inventory.NewLedger(inventory.NewRepository(conn), ledgerOpts...)
	if err != nil {
		return nil, fmt.Errorf("inventory ledger: %w", err)
	}

	orderRepo := orders.NewRepository(conn)
	numbers, err := orders.NewNumberGenerator(p.Config.Orders.NumberPrefix, orderRepo, p.Sequences)
	if err != nil {
		return nil, fmt.Errorf("order numbers: %w", err)
	}
	events := outbox.NewService(outbox.NewRepository(conn), p.Logger)

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repository:     orderRepo,
		Tx:             p.DB,
		Carts:          carts,
		Addresses:      addresses,
		Inventory:      ledger,
		Outbox:         events,
		Numbers:        numbers,
		ShippingCharge: shipping,
		NumberRetries:  p.Config.Orders.NumberConflictRetries,
		Metrics:        p.Metrics,
		Logger:         p.Logger,
		Clock:          p.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}

	returnSvc, err := returns.NewService(returns.ServiceParams{
		Repository:    returns.NewRepository(conn),
		Tx:            p.DB,
		Orders:        orderSvc,
		Outbox:        events,
		Evidence:      p.Evidence,
		OnlineRefunds: p.OnlineRefunds,
		ReturnWindow:  p.Config.Orders.ReturnWindow,
		Metrics:       p.Metrics,
		Logger:        p.Logger,
		Clock:         p.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("return service: %w", err)
	}

	notificationSvc, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}

	return &Services{
		Orders:        orderSvc,
		Returns:       returnSvc,
		Notifications: notificationSvc,
		Outbox:        events,
	}, nil
}
