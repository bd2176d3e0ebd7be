package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// CatalogService is everything the catalog, order and admin routes need.
type CatalogService interface {
	Catalog
	OrderHistory
	CatalogAdmin
}

type RouterConfig struct {
	Storefront Storefront
	Catalog    CatalogService
	Identity   checkout.IdentityProvider
	// Sessions is nil when identities do not come from stored sessions.
	Sessions SessionRevoker

	// Instrument wraps every route, typically with request metrics.
	Instrument     func(http.Handler) http.Handler
	Metrics        http.Handler
	RequestTimeout time.Duration
	Log            *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cfg.Storefront, cfg.Catalog, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Storefront, cfg.RequestTimeout)
	productHandler := NewProductHandler(cfg.Catalog, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(cfg.Catalog, cfg.RequestTimeout)
	adminHandler := NewAdminHandler(cfg.Catalog, cfg.RequestTimeout)
	sessionHandler := NewSessionHandler(cfg.Storefront, cfg.Sessions, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(cfg.Log.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	if cfg.Instrument != nil {
		r.Use(cfg.Instrument)
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware)
		r.Use(BearerTokenMiddleware)

		r.Get("/products", productHandler.ListProducts)
		r.Get("/products/{id}", productHandler.GetProduct)
		r.Get("/categories", productHandler.ListCategories)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Post("/open", cartHandler.OpenCart)
			r.Post("/close", cartHandler.CloseCart)
		})

		// identity is resolved inside the checkout sequence itself
		r.Post("/checkout", checkoutHandler.Checkout)
		r.Delete("/session", sessionHandler.SignOut)

		r.Group(func(r chi.Router) {
			r.Use(RequireIdentity(cfg.Identity))

			r.Get("/orders", ordersHandler.ListOrders)
			r.Get("/orders/{order_id}", ordersHandler.GetOrder)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/products", adminHandler.CreateProduct)
				r.Put("/products/{id}", adminHandler.UpdateProduct)
				r.Delete("/products/{id}", adminHandler.DeleteProduct)
				r.Put("/inventory/{id}", adminHandler.UpdateInventory)
				r.Get("/orders", adminHandler.ListOrders)
				r.Get("/reconciliations", adminHandler.ListReconciliations)
			})
		})
	})

	return r
}
