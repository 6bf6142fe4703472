package buildingapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bldgate/pkg/logger"
	"bldgate/pkg/middleware"
	"bldgate/pkg/problems"
	"bldgate/pkg/tenant"
)

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}

func (a *App) getBuilding(w http.ResponseWriter, r *http.Request) {
	e, ok := tenant.FromContext(r.Context()).Entry()
	if !ok {
		a.writeError(w, r, tenant.ErrNoTenantBound)
		return
	}
	writeJSON(w, map[string]any{
		"id":          e.ID,
		"code":        e.Code,
		"schema_name": e.SchemaName,
		"name":        e.Name,
	}, http.StatusOK)
}

func (a *App) listResidents(w http.ResponseWriter, r *http.Request) {
	out, err := a.store.ListResidents(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []Resident{}
	}
	writeJSON(w, out, http.StatusOK)
}

func (a *App) getResident(w http.ResponseWriter, r *http.Request) {
	res, err := a.store.GetResident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

func (a *App) listStaff(w http.ResponseWriter, r *http.Request) {
	out, err := a.store.ListStaff(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []Staff{}
	}
	writeJSON(w, out, http.StatusOK)
}

func (a *App) createStaff(w http.ResponseWriter, r *http.Request) {
	var b Staff
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-json", "Bad JSON", err.Error(), nil)
		return
	}
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		problems.Write(w, http.StatusBadRequest, "missing-fields", "Missing required fields", "name is required", nil)
		return
	}
	if b.Email != "" || b.Phone != "" {
		schema, err := a.findIdentity(r.Context(), b.Email, b.Phone)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if schema != "" {
			problems.Write(w, http.StatusConflict, "identity-in-use", "Identity already in use", "", nil)
			return
		}
	}
	b.ID = ""
	st, err := a.store.CreateStaff(r.Context(), b)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context(), a.log).Infow("staff created", "id", st.ID, "actor", middleware.ActorSub(r.Context()))
	writeJSON(w, st, http.StatusCreated)
}

func (a *App) deleteStaff(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteStaff(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type identityBody struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// identityCheck reports whether an email or phone is already used in any active building.
func (a *App) identityCheck(w http.ResponseWriter, r *http.Request) {
	var b identityBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-json", "Bad JSON", err.Error(), nil)
		return
	}
	b.Email, b.Phone = strings.TrimSpace(b.Email), strings.TrimSpace(b.Phone)
	if b.Email == "" && b.Phone == "" {
		problems.Write(w, http.StatusBadRequest, "missing-fields", "Missing required fields", "email or phone is required", nil)
		return
	}
	schema, err := a.findIdentity(r.Context(), b.Email, b.Phone)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"in_use": schema != ""}, http.StatusOK)
}

// findIdentity scans every active building with an isolated tenant binding per
// schema and returns the first schema using the identity, or "".
func (a *App) findIdentity(ctx context.Context, email, phone string) (string, error) {
	entries, err := a.registry.ListActive(ctx)
	if err != nil {
		return "", err
	}
	schemas := make([]string, 0, len(entries))
	for _, e := range entries {
		schemas = append(schemas, e.SchemaName)
	}
	var found string
	err = tenant.ForEachSchema(ctx, schemas, func(sctx context.Context, schema string) error {
		inUse, err := a.store.IdentityInUse(sctx, email, phone)
		if errors.Is(err, tenant.ErrInvalidTenant) {
			// registered but not provisioned yet
			return nil
		}
		if err != nil {
			return err
		}
		if inUse {
			found = schema
			return tenant.ErrStop
		}
		return nil
	})
	return found, err
}
