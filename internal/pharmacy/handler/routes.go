package handler

import (
	"github.com/go-chi/chi/v5"
)

// Handlers groups the pharmacy service handlers
type Handlers struct {
	Orders    *OrderHandler
	Stock     *StockHandler
	Reports   *ReportHandler
	Inventory *InventoryHandler
}

// Mount registers the pharmacy API under /api/v1
func (h Handlers) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.List)
			r.Post("/", h.Orders.Place)
			r.Get("/{id}", h.Orders.Get)
			r.Put("/{id}", h.Orders.Amend)
		})

		r.Route("/pharmacies/{id}/medications", func(r chi.Router) {
			r.Put("/", h.Stock.AddOrUpdate)
			r.Delete("/{medicationId}", h.Stock.Remove)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/pharmacies/{id}/medications", h.Reports.MedicationsByPharmacy)
			r.Get("/pharmacies/{id}/out-of-stock", h.Reports.OutOfStock)
			r.Get("/orders/totals", h.Reports.OrderTotals)
			r.Get("/orders/by-phone", h.Reports.OrdersByCustomerPhone)
		})

		r.Post("/inventory-check/run", h.Inventory.RunCheck)
	})
}
