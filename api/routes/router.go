package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feriando/feriando-backend/api/controllers"
	webhookcontrollers "github.com/feriando/feriando-backend/api/controllers/webhooks"
	"github.com/feriando/feriando-backend/api/middleware"
	"github.com/feriando/feriando-backend/internal/catalog"
	checkoutsvc "github.com/feriando/feriando-backend/internal/checkout"
	"github.com/feriando/feriando-backend/internal/orders"
	"github.com/feriando/feriando-backend/internal/payments"
	"github.com/feriando/feriando-backend/pkg/config"
	"github.com/feriando/feriando-backend/pkg/logger"
	"github.com/feriando/feriando-backend/pkg/redis"
)

type idempotencyStore interface {
	redis.IdempotencyStore
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient idempotencyStore,
	catalogGateway catalog.Gateway,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	paymentsService payments.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Processor callbacks authenticate by content, not by bearer token; the
	// reconciler re-fetches every payment before trusting it.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", webhookcontrollers.MercadoPago(paymentsService, logg))
	})

	r.Route("/api/public/v1", func(r chi.Router) {
		r.Get("/products", controllers.ListProducts(catalogGateway, logg))
		r.Get("/products/{productId}", controllers.GetProduct(catalogGateway, logg))
		r.Post("/shipping/quote", controllers.ShippingQuote(logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/checkout", controllers.Checkout(checkoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/{orderId}", controllers.GetOrder(ordersService, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(ordersService, logg))
			r.Post("/{orderId}/ship", controllers.ShipOrder(ordersService, logg))
			r.Post("/{orderId}/deliver", controllers.DeliverOrder(ordersService, logg))
		})
	})

	return r
}
