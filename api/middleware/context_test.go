package middleware

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

func TestActorFromContext(t *testing.T) {
	userID := uuid.New()
	ctx := WithRole(WithUserID(context.Background(), userID.String()), "staff")

	actor, err := ActorFromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, userID, actor.UserID)
	require.Equal(t, enums.ActorRoleStaff, actor.Role)
	require.True(t, actor.IsStaff())
}

func TestActorFromContextRejectsMissingOrBadValues(t *testing.T) {
	_, err := ActorFromContext(context.Background())
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))

	_, err = ActorFromContext(WithRole(WithUserID(context.Background(), "not-a-uuid"), "customer"))
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))

	_, err = ActorFromContext(WithRole(WithUserID(context.Background(), uuid.NewString()), "vendor"))
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}
