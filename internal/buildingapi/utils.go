package buildingapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"bldgate/pkg/logger"
	"bldgate/pkg/problems"
	"bldgate/pkg/tenant"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps store and tenant errors to problem responses.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		problems.Write(w, http.StatusNotFound, "not-found", "Not found", "", nil)
	case errors.Is(err, tenant.ErrInvalidTenant):
		problems.Write(w, http.StatusNotFound, "unknown-tenant", "Unknown tenant", "", nil)
	default:
		// includes tenant.ErrNoTenantBound, which is a wiring bug
		logger.FromContext(r.Context(), a.log).Errorw("request failed", "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "", nil)
	}
}
