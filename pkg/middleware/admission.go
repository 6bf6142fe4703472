package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bldgate/pkg/authz"
	"bldgate/pkg/config"
	"bldgate/pkg/logger"
	"bldgate/pkg/metrics"
	"bldgate/pkg/permissions"
	"bldgate/pkg/problems"
)

// PermissionSource provides the current protected (resource, scope) set.
type PermissionSource interface {
	Protected(ctx context.Context) (permissions.Set, error)
}

// Evaluator renders a decision for a principal and requirement.
type Evaluator interface {
	Evaluate(c authz.Claims, req authz.Requirement) authz.Decision
}

// AdmissionConfig wires the admission gate.
type AdmissionConfig struct {
	Routes    *authz.RouteTable
	Source    PermissionSource
	Evaluator Evaluator
	FailMode  config.FailMode
	Log       *zap.SugaredLogger
}

// StatusClientClosedRequest is written when the caller went away before a decision.
const StatusClientClosedRequest = 499

// RequireAuthentication rejects requests without a principal with 401. Mounted
// ahead of WithTenant on tenant-scoped groups, so anonymous callers are turned
// away before the registry is consulted.
func RequireAuthentication() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFrom(r.Context()); !ok {
				metrics.Admissions.WithLabelValues("unauthenticated").Inc()
				unauthorized(w, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Admission is the dynamic authorization gate. It must be attached per endpoint
// (chi's With) so the full route pattern is known when it runs.
//
// Every endpoint without the skip marker requires a principal, registered or
// not. Only pairs present in the protected set reach the evaluator.
func Admission(cfg AdmissionConfig) func(http.Handler) http.Handler {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.FromContext(ctx, cfg.Log)

			pattern := ""
			if rctx := chi.RouteContext(ctx); rctx != nil {
				pattern = rctx.RoutePattern()
			}
			ep, registered := cfg.Routes.Lookup(r.Method, pattern)
			if registered && ep.SkipAuthorization {
				metrics.Admissions.WithLabelValues("skipped").Inc()
				next.ServeHTTP(w, r)
				return
			}

			p, ok := PrincipalFrom(ctx)
			if !ok {
				metrics.Admissions.WithLabelValues("unauthenticated").Inc()
				unauthorized(w, "authentication required")
				return
			}
			if !registered {
				metrics.Admissions.WithLabelValues("unregistered").Inc()
				log.Debugw("route not in admission table", "method", r.Method, "pattern", pattern)
				next.ServeHTTP(w, r)
				return
			}

			req := ep.Requirement()
			set, err := cfg.Source.Protected(ctx)
			if err != nil {
				if ctx.Err() != nil {
					metrics.Admissions.WithLabelValues("canceled").Inc()
					log.Debugw("request canceled while loading protected set", "resource", req.Resource, "scope", req.Scope)
					problems.Write(w, StatusClientClosedRequest, "client-closed-request", "Client closed request", "", nil)
					return
				}
				if cfg.FailMode != config.FailOpen {
					metrics.Admissions.WithLabelValues("unavailable").Inc()
					log.Warnw("protected set unavailable, rejecting", "resource", req.Resource, "scope", req.Scope, "err", err)
					problems.Write(w, http.StatusServiceUnavailable, "authorization-unavailable", "Authorization unavailable",
						"permission metadata could not be loaded", nil)
					return
				}
				log.Warnw("protected set unavailable, admitting", "resource", req.Resource, "scope", req.Scope, "err", err)
			}

			if !set.Contains(req.Resource, req.Scope) {
				metrics.Admissions.WithLabelValues("unprotected").Inc()
				next.ServeHTTP(w, r)
				return
			}

			d := cfg.Evaluator.Evaluate(p.Claims, req)
			if !d.Granted {
				metrics.Admissions.WithLabelValues("denied").Inc()
				log.Infow("permission denied", "sub", d.PrincipalID, "resource", req.Resource, "scope", req.Scope)
				problems.Write(w, http.StatusForbidden, "forbidden", "Forbidden", "", map[string]any{
					"error":    "forbidden",
					"resource": req.Resource,
					"scope":    req.Scope,
				})
				return
			}
			metrics.Admissions.WithLabelValues("granted").Inc()
			next.ServeHTTP(w, r)
		})
	}
}
