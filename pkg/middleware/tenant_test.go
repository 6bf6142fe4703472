package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"bldgate/pkg/tenant"
	"bldgate/pkg/tenants"
)

type brokenRegistry struct{}

func (brokenRegistry) Lookup(context.Context, string) (tenants.Entry, error) {
	return tenants.Entry{}, errors.New("pool exhausted")
}
func (brokenRegistry) ListActive(context.Context) ([]tenants.Entry, error) { return nil, nil }

func tenantRouter(reg tenants.Registry, seen *string) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/{schema}", func(api chi.Router) {
		api.Use(WithTenant(reg, zap.NewNop().Sugar()))
		api.Get("/Residents", func(w http.ResponseWriter, r *http.Request) {
			s, err := tenant.CurrentSchema(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			*seen = s
		})
	})
	return r
}

func TestWithTenant(t *testing.T) {
	reg := tenants.NewMemoryRegistry(nil,
		tenants.Entry{ID: "1", SchemaName: "bld-01", Active: true},
		tenants.Entry{ID: "2", SchemaName: "bld-02", Active: false},
	)

	tests := []struct {
		path string
		code int
		seen string
	}{
		{"/api/bld-01/Residents", http.StatusOK, "bld-01"},
		{"/api/bld-02/Residents", http.StatusNotFound, ""},
		{"/api/nope/Residents", http.StatusNotFound, ""},
		{"/api/bad%20schema/Residents", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		var seen string
		rec := httptest.NewRecorder()
		tenantRouter(reg, &seen).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.code, rec.Code, tt.path)
		assert.Equal(t, tt.seen, seen, tt.path)
	}
}

func TestWithTenantRegistryDown(t *testing.T) {
	var seen string
	rec := httptest.NewRecorder()
	tenantRouter(brokenRegistry{}, &seen).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bld-01/Residents", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, seen)
}

func TestWithTenantPathFallback(t *testing.T) {
	reg := tenants.NewMemoryRegistry(nil, tenants.Entry{SchemaName: "bld-01", Active: true})
	var seen string
	h := WithTenant(reg, zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = tenant.CurrentSchema(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bld-01/Residents/5", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bld-01", seen)
}

func TestSchemaFromPath(t *testing.T) {
	assert.Equal(t, "bld-01", schemaFromPath("/api/bld-01/Residents"))
	assert.Equal(t, "bld-01", schemaFromPath("/API/bld-01"))
	assert.Equal(t, "", schemaFromPath("/api"))
	assert.Equal(t, "", schemaFromPath("/healthz"))
}
