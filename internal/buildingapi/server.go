package buildingapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bldgate/pkg/authz"
	"bldgate/pkg/middleware"
	"bldgate/pkg/openapi"
)

const apiPrefix = "/api/{schema}"

// Handler builds the HTTP handler with routes and middleware. Every endpoint is
// registered in the admission route table as it is mounted.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.Tracing(a.cfg))
	r.Use(middleware.JWTAuth(a.cfg, a.roles, a.log))

	a.handle(r, "", http.MethodGet, "/healthz", "Health", a.health, authz.SkipAuthorization())
	a.handle(r, "", http.MethodGet, "/metrics", "Metrics", promhttp.Handler().ServeHTTP, authz.SkipAuthorization())
	a.handle(r, "", http.MethodGet, "/openapi.json", "OpenAPI", openapi.ServeHandler("bldgate", "v1", a.routes), authz.SkipAuthorization())

	r.Route(apiPrefix, func(api chi.Router) {
		// tenant-scoped endpoints always need a principal
		api.Use(middleware.RequireAuthentication())
		api.Use(middleware.WithTenant(a.registry, a.log))

		a.handle(api, apiPrefix, http.MethodGet, "/Building", "Building", a.getBuilding)

		a.handle(api, apiPrefix, http.MethodGet, "/Residents", "Residents", a.listResidents)
		a.handle(api, apiPrefix, http.MethodGet, "/Residents/{id}", "Residents", a.getResident)

		a.handle(api, apiPrefix, http.MethodGet, "/Staff", "Staff", a.listStaff)
		a.handle(api, apiPrefix, http.MethodPost, "/Staff", "Staff", a.createStaff)
		a.handle(api, apiPrefix, http.MethodDelete, "/Staff/{id}", "Staff", a.deleteStaff)
		a.handle(api, apiPrefix, http.MethodPost, "/Staff/identity-check", "Staff", a.identityCheck)
	})
	return r
}

// handle mounts h on r behind the admission gate and records its (resource, scope).
func (a *App) handle(r chi.Router, prefix, method, pattern, controller string, h http.HandlerFunc, opts ...authz.EndpointOption) {
	a.routes.Add(method, prefix+pattern, controller, opts...)
	r.With(a.gate).Method(method, pattern, h)
}
