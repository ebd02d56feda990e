package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ovlasenko/webshop-backend/api/controllers"
	"github.com/ovlasenko/webshop-backend/api/middleware"
	balancesvc "github.com/ovlasenko/webshop-backend/internal/balance"
	cartsvc "github.com/ovlasenko/webshop-backend/internal/cart"
	catalogsvc "github.com/ovlasenko/webshop-backend/internal/catalog"
	checkoutsvc "github.com/ovlasenko/webshop-backend/internal/checkout"
	inventorysvc "github.com/ovlasenko/webshop-backend/internal/inventory"
	notificationssvc "github.com/ovlasenko/webshop-backend/internal/notifications"
	orderssvc "github.com/ovlasenko/webshop-backend/internal/orders"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
	pkgredis "github.com/ovlasenko/webshop-backend/pkg/redis"
)

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	Logger        *logger.Logger
	DBPinger      controllers.Pinger
	RedisPinger   controllers.Pinger
	Idempotency   pkgredis.IdempotencyStore
	Registry      *prometheus.Registry
	Catalog       catalogsvc.Service
	Cart          cartsvc.Service
	Balance       balancesvc.Service
	Orders        orderssvc.Service
	Checkout      checkoutsvc.Service
	Inventory     inventorysvc.Service
	Notifications *notificationssvc.Repository
}

func NewRouter(deps Dependencies) http.Handler {
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.Recoverer(logg))

	r.Get("/healthz", controllers.Health(deps.DBPinger, deps.RedisPinger, logg))
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Catalog reads and writes carry no user identity.
		r.Get("/products", controllers.SearchProducts(deps.Catalog, logg))
		r.Get("/products/{productID}", controllers.GetProduct(deps.Catalog, logg))
		r.Post("/products", controllers.CreateProduct(deps.Catalog, logg))
		r.Post("/products/bulk", controllers.BulkCreateProducts(deps.Catalog, logg))
		r.Patch("/products/{productID}", controllers.UpdateProductField(deps.Catalog, logg))

		r.With(middleware.Idempotency(deps.Idempotency, logg)).
			Post("/external/stock-reduction", controllers.StockReduction(deps.Inventory, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.UserContext(logg))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.Get("/cart", controllers.GetCart(deps.Cart, logg))
			r.Post("/cart", controllers.UpsertCartLine(deps.Cart, logg))
			r.Delete("/cart/{productID}", controllers.RemoveCartLine(deps.Cart, logg))

			r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))

			r.Get("/balance", controllers.GetBalance(deps.Balance, logg))
			r.Post("/balance/deposit", controllers.Deposit(deps.Balance, logg))
			r.Get("/balance/history", controllers.BalanceHistory(deps.Balance, logg))

			r.Get("/orders", controllers.ListOrders(deps.Orders, logg))
			r.Get("/orders/{orderID}", controllers.GetOrder(deps.Orders, logg))
			r.Patch("/orders/{orderID}", controllers.PatchOrder(deps.Orders, logg))
			r.Delete("/orders/{orderID}", controllers.DeleteOrder(deps.Orders, logg))

			r.Get("/notifications", controllers.ListNotifications(deps.Notifications, logg))
		})
	})

	return r
}
