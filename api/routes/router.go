package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/fulfillment-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/fulfillment-backend/api/controllers/admin"
	ordercontrollers "github.com/angelmondragon/fulfillment-backend/api/controllers/orders"
	returncontrollers "github.com/angelmondragon/fulfillment-backend/api/controllers/returns"
	"github.com/angelmondragon/fulfillment-backend/api/middleware"
	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	"github.com/angelmondragon/fulfillment-backend/internal/orders"
	"github.com/angelmondragon/fulfillment-backend/internal/returns"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

// Deps is everything the router mounts. Redis and Gatherer are optional:
// without Redis the idempotency and rate limit layers pass requests through.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Checks        map[string]controllers.Pinger
	Redis         *redis.Client
	Gatherer      prometheus.Gatherer
	Orders        orders.Service
	Returns       returns.Service
	Notifications notifications.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// A nil *redis.Client must not reach the middleware as a non-nil interface.
	var idempotencyStore redis.IdempotencyStore
	if d.Redis != nil {
		idempotencyStore = d.Redis
	}
	orderPolicy := middleware.NewRateLimitPolicy("orders", cfg.RateLimit.Window, cfg.RateLimit.OrderCreates)
	returnPolicy := middleware.NewRateLimitPolicy("returns", cfg.RateLimit.Window, cfg.RateLimit.ReturnCreates)
	throttle := func(p middleware.RateLimitPolicy) func(http.Handler) http.Handler {
		if d.Redis == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimit(p, d.Redis, logg)
	}
	maxImageBytes := int64(cfg.Storage.MaxUploadMB) << 20

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Checks))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Eventing.RequestIdempotencyTTL, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(throttle(orderPolicy)).Post("/", ordercontrollers.Create(d.Orders, logg))
			r.Get("/", ordercontrollers.List(d.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
			r.Get("/{orderId}/timeline", ordercontrollers.Timeline(d.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(d.Orders, logg))
			r.Get("/{orderId}/returns", returncontrollers.ForOrder(d.Returns, logg))
			r.With(throttle(returnPolicy)).Post("/{orderId}/returns", returncontrollers.Create(d.Returns, maxImageBytes, logg))
		})
		r.Get("/returns/{returnId}", returncontrollers.Detail(d.Returns, logg))
		r.Route("/pickups/{pickupId}", func(r chi.Router) {
			r.Get("/", returncontrollers.PickupDetail(d.Returns, logg))
			r.Get("/history", returncontrollers.PickupHistory(d.Returns, logg))
		})
		r.Get("/notifications", controllers.ListNotifications(d.Notifications, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireStaff(logg))
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Eventing.RequestIdempotencyTTL, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
			r.Get("/{orderId}/timeline", ordercontrollers.Timeline(d.Orders, logg))
			r.Post("/{orderId}/status", admincontrollers.UpdateOrderStatus(d.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(d.Orders, logg))
			r.Get("/{orderId}/returns", returncontrollers.ForOrder(d.Returns, logg))
		})
		r.Route("/returns/{returnId}", func(r chi.Router) {
			r.Get("/", returncontrollers.Detail(d.Returns, logg))
			r.Post("/approve", admincontrollers.ApproveReturn(d.Returns, logg))
			r.Post("/reject", admincontrollers.RejectReturn(d.Returns, logg))
			r.Post("/status", admincontrollers.UpdateReturnStatus(d.Returns, logg))
			r.Post("/pickup", admincontrollers.SchedulePickup(d.Returns, logg))
			r.Post("/qc", admincontrollers.QualityCheck(d.Returns, logg))
			r.Post("/refund-status", admincontrollers.UpdateRefundStatus(d.Returns, logg))
		})
		r.Route("/pickups/{pickupId}", func(r chi.Router) {
			r.Get("/", returncontrollers.PickupDetail(d.Returns, logg))
			r.Get("/history", returncontrollers.PickupHistory(d.Returns, logg))
			r.Post("/reschedule", admincontrollers.ReschedulePickup(d.Returns, logg))
			r.Post("/status", admincontrollers.UpdatePickupStatus(d.Returns, logg))
		})
	})

	return r
}
