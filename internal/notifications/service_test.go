package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

func TestServiceListPaginatesNewestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	userID := uuid.New()
	orderID := uuid.New()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		row := models.Notification{
			EventID:   uuid.NewString(),
			EventType: enums.EventOrderStatusChanged,
			UserID:    userID,
			OrderID:   &orderID,
			Recipient: "kabir@example.com",
			Subject:   "update",
			Body:      "body",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, conn.Create(&row).Error)
	}
	require.NoError(t, conn.Create(&models.Notification{
		EventID: uuid.NewString(), EventType: enums.EventOrderCreated, UserID: uuid.New(),
		Recipient: "other@example.com", Subject: "s", Body: "b",
	}).Error)

	first, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))
	require.NotEmpty(t, first.Cursor)

	second, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.Cursor)
	assert.True(t, second.Items[0].CreatedAt.Equal(base))

	byOrder, err := svc.List(context.Background(), ListParams{UserID: userID, OrderID: &orderID})
	require.NoError(t, err)
	assert.Len(t, byOrder.Items, 3)
}

func TestServiceListValidation(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "%%%"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = NewService(nil)
	assert.Error(t, err)
}
