package wiring

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

func TestBuildWiresServicesOverOneDatabase(t *testing.T) {
	client, _ := dbtest.Client(t)
	cfg := &config.Config{Orders: config.OrdersConfig{ShippingCharge: "49.50", NumberPrefix: "ORD"}}

	services, err := Build(Params{Config: cfg, Logger: logger.Nop(), DB: client})
	require.NoError(t, err)
	require.NotNil(t, services.Orders)
	require.NotNil(t, services.Returns)
	require.NotNil(t, services.Notifications)

	_, err = services.Orders.Create(context.Background(), orders.CreateOrderInput{
		UserID:            uuid.New(),
		ShippingAddressID: uuid.New(),
		BillingAddressID:  uuid.New(),
		PaymentMethod:     enums.PaymentMethodCOD,
	})
	require.Equal(t, pkgerrors.CodeAddressNotOwned, pkgerrors.CodeOf(err))
}

func TestBuildRejectsBadShippingCharge(t *testing.T) {
	client, _ := dbtest.Client(t)
	cfg := &config.Config{Orders: config.OrdersConfig{ShippingCharge: "free"}}

	_, err := Build(Params{Config: cfg, DB: client})
	require.Error(t, err)
}

func TestBuildRequiresDatabase(t *testing.T) {
	_, err := Build(Params{Config: &config.Config{}})
	require.Error(t, err)
}
