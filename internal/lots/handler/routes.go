package handler

import (
	"github.com/farmaflow/farmaflow-backend/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Permissions checked by the lot routes
const (
	PermLotsRead    = "lots.read"
	PermLotsWrite   = "lots.write"
	PermLossesRead  = "losses.read"
	PermPricingRead = "pricing.read"
)

// Mount registers the lot, loss and pricing routes on r.
// r must already run httputil.Authenticate.
func Mount(r chi.Router, lots *LotHandler, losses *LossHandler, pricing *PricingHandler) {
	r.Route("/lots", func(r chi.Router) {
		r.With(httputil.RequirePermission(PermLotsRead)).Get("/", lots.List)
		r.With(httputil.RequirePermission(PermLotsWrite)).Post("/", lots.Create)
		r.With(httputil.RequirePermission(PermLotsRead)).Get("/expiring", lots.Expiring)
		r.With(httputil.RequirePermission(PermLotsRead)).Get("/dashboard", lots.Dashboard)
		r.With(httputil.RequirePermission(PermLotsRead)).Get("/{id}", lots.Get)
		r.With(httputil.RequirePermission(PermLotsWrite)).Put("/{id}/quantity", lots.AdjustQuantity)
		r.With(httputil.RequirePermission(PermLotsRead)).Get("/{id}/movements", lots.Movements)
	})

	r.With(httputil.RequirePermission(PermLossesRead)).Get("/losses", losses.Report)

	r.With(httputil.RequirePermission(PermPricingRead)).Post("/pricing/suggest", pricing.Suggest)
	r.With(httputil.RequirePermission(PermPricingRead)).Post("/products/preview", pricing.PreviewProduct)
}
