package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"travel-backend/internal/config"
	"travel-backend/internal/handlers"
	"travel-backend/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth            *handlers.AuthHandler
	Health          *handlers.HealthHandler
	TravellerMerge  *handlers.TravellerMergeHandler
	ConsultantMerge *handlers.ConsultantMergeHandler
	MergeAudit      *handlers.MergeAuditHandler
}

func NewRouter(cfg *config.Config, h Handlers, authMiddleware *middleware.AuthMiddleware, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(NotFound)
	r.Use(middleware.PanicRecovery(logger))
	r.Use(middleware.NewCORS(cfg))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.APILogging(logger))

	// Public API routes - Authentication
	r.HandleFunc("/auth/login", h.Auth.Login).Methods("POST")

	// Merge engine - elevated users only
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.RequireElevated)

	travellers := api.PathPrefix("/traveller-merge").Subrouter()
	travellers.HandleFunc("/find-duplicates", h.TravellerMerge.FindDuplicates).Methods("GET")
	travellers.HandleFunc("/merge", h.TravellerMerge.Merge).Methods("POST")
	travellers.HandleFunc("/{id}/undo", h.TravellerMerge.Undo).Methods("POST")

	consultants := api.PathPrefix("/consultant-merge").Subrouter()
	consultants.HandleFunc("/find-duplicates", h.ConsultantMerge.FindDuplicates).Methods("GET")
	consultants.HandleFunc("/merge", h.ConsultantMerge.Merge).Methods("POST")
	consultants.HandleFunc("/{id}/undo", h.ConsultantMerge.Undo).Methods("POST")

	api.HandleFunc("/merge-audit", h.MergeAudit.List).Methods("GET")
	api.HandleFunc("/merge-audit/{id}", h.MergeAudit.Get).Methods("GET")
	api.HandleFunc("/merge-audit/{id}/undo", h.MergeAudit.Undo).Methods("POST")

	// Health endpoints (no auth required - for Kubernetes probes)
	r.HandleFunc("/health", h.Health.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", h.Health.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", h.Health.DetailedHealth).Methods("GET")

	// Metrics endpoint (Prometheus format)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// NotFound answers unmatched routes with the API error shape.
func NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not found","kind":"not_found"}`))
}
