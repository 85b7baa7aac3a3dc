package http

import (
	"net/http"

	"ncpharmacy/backend/internal/domain"
	"ncpharmacy/backend/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	CORSOrigins []string
	Metrics     *metrics.Metrics
	// MetricsHandler serves /metrics when set (nil disables the route).
	MetricsHandler http.Handler
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(Timeout)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if opts.Metrics != nil {
		r.Use(CountRequests(opts.Metrics))
	}

	r.Get("/healthz", handler.Health)
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", handler.Login)

		r.Group(func(r chi.Router) {
			r.Use(handler.requireAuth)

			r.Get("/medicines", handler.ListMedicines)
			r.Get("/medicines/{id}", handler.GetMedicine)
			r.With(handler.requirePermission(domain.PermAddMedicine)).Post("/medicines", handler.CreateMedicine)
			r.With(handler.requirePermission(domain.PermChangeMedicine)).Patch("/medicines/{id}", handler.UpdateMedicine)
			r.With(handler.requirePermission(domain.PermDeleteMedicine)).Delete("/medicines/{id}", handler.DeleteMedicine)

			r.With(handler.requirePermission(domain.PermAddSale)).Post("/sales", handler.CreateSale)
			r.With(handler.requirePermission(domain.PermChangeSale)).Put("/sales/{id}", handler.AmendSale)
			r.With(handler.requirePermission(domain.PermViewSale)).Get("/sales", handler.SalesReport)
			r.With(handler.requirePermission(domain.PermViewSale)).Get("/sales/{id}", handler.GetSale)
			r.With(handler.requirePermission(domain.PermViewSale)).Get("/sales/{id}/receipt", handler.GetReceipt)

			r.Get("/thresholds", handler.GetThreshold)
			r.With(handler.requirePermission(domain.PermChangeThreshold)).Put("/thresholds", handler.UpdateThreshold)

			r.Get("/settings/pharmacy", handler.GetPharmacyInfo)

			r.Group(func(r chi.Router) {
				r.Use(handler.requireAdmin)

				r.Put("/settings/pharmacy", handler.UpdatePharmacyInfo)

				r.Get("/staff", handler.ListStaff)
				r.Post("/staff", handler.CreateStaff)
				r.Delete("/staff/{id}", handler.DeleteStaff)
				r.Patch("/staff/{id}/password", handler.UpdateStaffPassword)
				r.Put("/staff/{id}/permissions", handler.SetStaffPermissions)

				r.Post("/inventory/import", handler.ImportInventory)
				r.Get("/inventory/export.csv", handler.ExportInventoryCSV)
				r.Get("/inventory/export.xlsx", handler.ExportInventoryXLSX)
			})
		})
	})

	return r
}
