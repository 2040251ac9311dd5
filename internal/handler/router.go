package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/purnata-console/internal/access"
	custommiddleware "github.com/mmeshcher/purnata-console/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware консоли.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/orders", func(r chi.Router) {
				r.With(custommiddleware.Require(access.CapOrders)).Get("/", h.GetOrders)
				r.With(custommiddleware.Require(access.CapOrders)).Post("/", h.CreateOrder)
				r.With(custommiddleware.Require(access.CapOrders)).Get("/{id}", h.GetOrder)
				r.With(custommiddleware.Require(access.CapOrders, access.CapLogistics)).Patch("/{id}/status", h.UpdateStatus)
				r.With(custommiddleware.Require(access.CapOrders)).Post("/{id}/courier", h.BookCourier)
				r.With(custommiddleware.Require(access.CapOrders, access.CapLogistics)).Post("/{id}/tracking", h.TrackCourier)
			})

			r.Route("/products", func(r chi.Router) {
				r.With(custommiddleware.Require(access.CapInventory)).Get("/", h.GetProducts)
				r.With(custommiddleware.Require(access.CapInventory)).Post("/", h.CreateProduct)
				r.With(custommiddleware.Require(access.CapInventory, access.CapDashboard)).Get("/low-stock", h.GetLowStock)
			})

			r.With(custommiddleware.Require(access.CapCustomers)).Get("/customers", h.GetCustomers)

			r.Route("/couriers", func(r chi.Router) {
				r.Use(custommiddleware.Require(access.CapSettings))

				r.Get("/", h.GetCourierConfigs)
				r.Put("/{type}", h.UpdateCourierConfig)
				r.Post("/{type}/test", h.TestCourierConnection)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
