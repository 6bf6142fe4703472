package openapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"bldgate/pkg/authz"
)

// Operation is one HTTP operation surfaced in the document.
type Operation struct {
	Method     string
	Path       string
	Tag        string
	Permission *authz.Requirement
}

// FromRoutes lists the operations registered in the admission route table.
// Operations that skip authorization carry no permission.
func FromRoutes(t *authz.RouteTable) []Operation {
	var ops []Operation
	for _, e := range t.Endpoints() {
		op := Operation{Method: strings.ToLower(e.Method), Path: e.Pattern, Tag: e.Controller}
		if !e.SkipAuthorization {
			req := e.Requirement()
			op.Permission = &req
		}
		ops = append(ops, op)
	}
	return ops
}

// Build produces a minimal OpenAPI 3.1 document. Each authorized operation
// names the (resource, scope) pair checked by the admission gate under
// x-required-permission.
func Build(serviceName, version string, ops []Operation) map[string]any {
	paths := map[string]any{}
	for _, op := range ops {
		if _, ok := paths[op.Path]; !ok {
			paths[op.Path] = map[string]any{}
		}
		m := map[string]any{
			"tags":      []string{op.Tag},
			"responses": responses(op),
		}
		if params := pathParams(op.Path); len(params) > 0 {
			m["parameters"] = params
		}
		if op.Permission != nil {
			m["x-required-permission"] = map[string]string{
				"resource": op.Permission.Resource,
				"scope":    op.Permission.Scope,
			}
		} else {
			m["security"] = []map[string]any{}
		}
		paths[op.Path].(map[string]any)[op.Method] = m
	}
	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": serviceName, "version": version},
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearer": map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
		"security": []map[string]any{{"bearer": []string{}}},
	}
}

func responses(op Operation) map[string]any {
	out := map[string]any{"200": map[string]any{"description": "OK"}}
	if op.Permission == nil {
		return out
	}
	problem := func(d string) map[string]any {
		return map[string]any{"description": d, "content": map[string]any{"application/problem+json": map[string]any{}}}
	}
	out["401"] = problem("Unauthenticated")
	out["403"] = problem("Missing permission")
	out["503"] = problem("Authorization unavailable")
	if strings.Contains(op.Path, "{schema}") {
		out["404"] = problem("Unknown tenant or record")
	}
	return out
}

func pathParams(path string) []map[string]any {
	var out []map[string]any
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			out = append(out, map[string]any{
				"name":     strings.TrimSuffix(strings.TrimPrefix(seg, "{"), "}"),
				"in":       "path",
				"required": true,
				"schema":   map[string]string{"type": "string"},
			})
		}
	}
	return out
}

// ServeHandler serves the document built from t. The table is read on every
// request so routes mounted after the handler was created are included.
func ServeHandler(serviceName, version string, t *authz.RouteTable) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Build(serviceName, version, FromRoutes(t)))
	}
}
