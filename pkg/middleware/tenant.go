// pkg/middleware/tenant.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bldgate/pkg/logger"
	"bldgate/pkg/metrics"
	"bldgate/pkg/problems"
	"bldgate/pkg/tenant"
	"bldgate/pkg/tenants"
)

// SchemaParam is the route parameter carrying the tenant schema.
const SchemaParam = "schema"

// WithTenant binds the request to the building named by the {schema} path segment.
// Unknown or inactive buildings are rejected before any handler runs.
func WithTenant(reg tenants.Registry, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			holder := tenant.NewContext(reg)
			ctx := tenant.Attach(r.Context(), holder)

			schema := chi.URLParam(r, SchemaParam)
			if schema == "" {
				schema = schemaFromPath(r.URL.Path)
			}
			if err := holder.SetSchema(ctx, schema); err != nil {
				if errors.Is(err, tenant.ErrInvalidTenant) {
					metrics.TenantResolutions.WithLabelValues("invalid").Inc()
					problems.Write(w, http.StatusNotFound, "unknown-tenant", "Unknown tenant", "no active building for this schema", nil)
					return
				}
				metrics.TenantResolutions.WithLabelValues("error").Inc()
				log.Errorw("tenant resolution failed", "schema", schema, "err", err)
				problems.Write(w, http.StatusServiceUnavailable, "tenant-registry-unavailable", "Tenant registry unavailable", "", nil)
				return
			}
			metrics.TenantResolutions.WithLabelValues("ok").Inc()
			ctx = logger.WithFields(ctx, "schema", schema)

			if p, ok := PrincipalFrom(ctx); ok && p.Claims.BuildingID != "" {
				if e, _ := holder.Entry(); p.Claims.BuildingID != e.ID && !strings.EqualFold(p.Claims.BuildingID, e.Code) {
					logger.FromContext(ctx, log).Infow("building claim differs from route tenant", "building_id", p.Claims.BuildingID, "sub", p.Subject)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// schemaFromPath returns the segment following "api" in /api/{schema}/...
func schemaFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if strings.EqualFold(parts[i], "api") {
			return parts[i+1]
		}
	}
	return ""
}
