package admin

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/api/middleware"
	"github.com/angelmondragon/fulfillment-backend/api/validators"
	"github.com/angelmondragon/fulfillment-backend/internal/orders"
)

// actionTarget is the staff member acting and the resource named in the path.
type actionTarget struct {
	id    uuid.UUID
	actor orders.Actor
}

func resolveTarget(r *http.Request, param string) (actionTarget, error) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		return actionTarget{}, err
	}
	id, err := validators.ParseUUIDParam(r, param)
	if err != nil {
		return actionTarget{}, err
	}
	return actionTarget{id: id, actor: actor}, nil
}

// normalize upper-cases an enum value supplied by a client.
func normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
