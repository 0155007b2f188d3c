package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cart-service/api/controllers"
	"github.com/angelmondragon/cart-service/api/middleware"
	"github.com/angelmondragon/cart-service/internal/cart"
	"github.com/angelmondragon/cart-service/internal/checkout"
	"github.com/angelmondragon/cart-service/internal/merge"
	"github.com/angelmondragon/cart-service/pkg/config"
	"github.com/angelmondragon/cart-service/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient controllers.Pinger,
	scripts controllers.ScriptCatalog,
	gatherer prometheus.Gatherer,
	cartStore cart.Store,
	mergeCoordinator merge.Coordinator,
	checkoutMachine checkout.StateMachine,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, redisClient, scripts, logg))
	})
	r.Get("/metadata", controllers.Metadata(cfg))
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))
		r.Use(middleware.Logging(logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartStore, logg))
			r.Delete("/", controllers.CartClear(cartStore, logg))
			r.Put("/items", controllers.CartUpsertItem(cartStore, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(cartStore, logg))
			r.With(middleware.RequireUser(logg)).Post("/merge", controllers.CartMerge(mergeCoordinator, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/start", controllers.CheckoutStart(checkoutMachine, logg))
			r.Post("/complete", controllers.CheckoutComplete(checkoutMachine, logg))
		})
	})

	return r
}
