package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter 组装 HTTP 路由。metricsHandler 为 nil 时不暴露 /metrics。
func NewRouter(
	tenantH *TenantHandler,
	metricsHandler http.Handler,
	apiToken string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(logger))
	r.Use(bodySizeLimitMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware(apiToken))
		// Tenants
		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", tenantH.Create)
			r.Get("/", tenantH.List)
			r.Route("/{subdomain}", func(r chi.Router) {
				r.Get("/", tenantH.Get)
				r.Put("/", tenantH.Update)
				r.Delete("/", tenantH.Delete)
				r.Post("/deploy", tenantH.Deploy)
				r.Post("/undeploy", tenantH.Undeploy)
			})
		})

		r.Get("/subdomains/{subdomain}/availability", tenantH.CheckSubdomain)
	})

	return r
}
