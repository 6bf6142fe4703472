package buildingapi

import (
	"net/http"

	"go.uber.org/zap"

	"bldgate/pkg/authz"
	"bldgate/pkg/config"
	"bldgate/pkg/middleware"
	"bldgate/pkg/tenants"
)

// Options carries the collaborators of the building API.
type Options struct {
	Config      config.Config
	Log         *zap.SugaredLogger
	Registry    tenants.Registry
	Store       Store
	Permissions middleware.PermissionSource
	Evaluator   middleware.Evaluator
	RolePaths   authz.RolePaths
}

// App is the building API container. Handlers hang off it; request-scoped
// state (tenant, principal) travels in the request context only.
type App struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	registry tenants.Registry
	store    Store
	roles    authz.RolePaths
	routes   *authz.RouteTable
	gate     func(http.Handler) http.Handler
}

func New(opts Options) *App {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.Evaluator == nil {
		opts.Evaluator = authz.NewEvaluator(opts.Config.AdminRoles...)
	}
	a := &App{
		cfg:      opts.Config,
		log:      opts.Log,
		registry: opts.Registry,
		store:    opts.Store,
		roles:    opts.RolePaths,
		routes:   authz.NewRouteTable(),
	}
	a.gate = middleware.Admission(middleware.AdmissionConfig{
		Routes:    a.routes,
		Source:    opts.Permissions,
		Evaluator: opts.Evaluator,
		FailMode:  opts.Config.FailMode,
		Log:       opts.Log,
	})
	return a
}

// Routes exposes the admission table built by Handler.
func (a *App) Routes() *authz.RouteTable { return a.routes }
