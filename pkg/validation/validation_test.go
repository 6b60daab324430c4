package validation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

type sample struct {
	ShippingAddressID uuid.UUID `validate:"required"`
	Description       string    `json:"description" validate:"required,min=10"`
	Slot              string    `validate:"omitempty,oneof=MORNING AFTERNOON EVENING"`
}

func TestStructReportsFieldNames(t *testing.T) {
	err := Struct(sample{Description: "short", Slot: "NIGHT"})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["shipping_address_id"])
	assert.Equal(t, "must be at least 10", details["description"])
	assert.Equal(t, "must be one of [MORNING AFTERNOON EVENING]", details["slot"])
}

func TestStructAcceptsValidInput(t *testing.T) {
	err := Struct(sample{ShippingAddressID: uuid.New(), Description: "long enough text"})
	assert.NoError(t, err)
}

func TestToSnake(t *testing.T) {
	cases := map[string]string{
		"OrderID":           "order_id",
		"ShippingAddressID": "shipping_address_id",
		"QCNotes":           "qc_notes",
		"Reason":            "reason",
	}
	for in, want := range cases {
		assert.Equal(t, want, toSnake(in), in)
	}
}
