package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationID)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/machine", h.GetMachine)

		r.Get("/products", h.ListProducts)
		r.Post("/products", h.AddProduct)
		r.Post("/products/{productId}/reload", h.ReloadProduct)

		r.Post("/money", h.InsertMoney)
		r.Post("/purchase", h.Purchase)
		r.Post("/change", h.DispenseChange)

		r.Get("/denominations", h.GetDenominations)
		r.Post("/denominations/reload", h.ReloadCurrency)

		if h.sales != nil {
			r.Get("/sales", h.ListSales)
		}
	})

	return r
}
