package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bldgate/internal/buildingapi"
	"bldgate/pkg/authz"
	"bldgate/pkg/config"
	"bldgate/pkg/db"
	"bldgate/pkg/iam"
	"bldgate/pkg/logger"
	"bldgate/pkg/middleware"
	"bldgate/pkg/modelcache"
	"bldgate/pkg/permissions"
	"bldgate/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "err", err)
	}

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var reg tenants.Registry
	if pool != nil {
		reg = tenants.NewPostgresRegistry(pool, log)
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("tenant registry schema", "err", err)
		}
		if err := tenants.SeedFromEnv(context.Background(), pool, cfg.TenantSeedJSON); err != nil {
			log.Warnw("tenant seed failed", "err", err)
		}
	} else {
		mem, err := tenants.NewMemoryRegistryFromEnv(log)
		if err != nil {
			log.Fatalw("tenant registry", "err", err)
		}
		reg = mem
	}
	reg = tenants.NewCachedRegistry(reg, cfg.TenantCacheSize, cfg.TenantCacheTTL)

	models := modelcache.New(cfg.ModelStoreType, buildingapi.Tables)
	var store buildingapi.Store
	if pool != nil {
		active, err := reg.ListActive(context.Background())
		if err != nil {
			log.Fatalw("list buildings", "err", err)
		}
		for _, e := range active {
			if err := buildingapi.EnsureTenantSchema(context.Background(), pool, e.SchemaName); err != nil {
				log.Warnw("building schema", "schema", e.SchemaName, "err", err)
			}
		}
		store = buildingapi.NewPGStore(pool, models)
	} else {
		store = buildingapi.NewMemoryStore()
	}

	var source middleware.PermissionSource
	if cfg.IAMConfigured() {
		client := iam.NewClient(iam.Config{
			BaseURL:      cfg.IAMBaseURL,
			Realm:        cfg.IAMRealm,
			TokenURL:     cfg.IAMTokenURL,
			ClientID:     cfg.IAMServiceID,
			ClientSecret: cfg.IAMServiceSecret,
			Timeout:      cfg.IAMTimeout,
		})
		opts := permissions.Options{
			ClientID:     cfg.IAMClientID,
			ClientIDTTL:  cfg.ClientIDTTL,
			ProtectedTTL: cfg.ProtectedTTL,
			Timeout:      cfg.IAMTimeout,
			Log:          log,
		}
		if rdb != nil {
			opts.Snapshot = permissions.NewRedisSnapshot(rdb, 24*time.Hour)
		}
		source = permissions.NewSync(client, opts)
	} else {
		log.Warnw("identity server not configured; no endpoint is protected")
		source = permissions.Static(permissions.NewSet())
	}

	roles, err := authz.CompileRolePaths(cfg.RoleClaimPaths...)
	if err != nil {
		log.Fatalw("role claim paths", "err", err)
	}

	app := buildingapi.New(buildingapi.Options{
		Config:      cfg,
		Log:         log,
		Registry:    reg,
		Store:       store,
		Permissions: source,
		RolePaths:   roles,
	})
	handler := app.Handler()
	for _, e := range app.Routes().Endpoints() {
		req := e.Requirement()
		log.Debugw("endpoint", "method", e.Method, "pattern", e.Pattern, "resource", req.Resource, "scope", req.Scope, "skip", e.SkipAuthorization)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("admission-gateway listening", "addr", cfg.HTTPAddr, "fail_mode", cfg.FailMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if pool != nil {
		pool.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	fmt.Println("admission-gateway stopped")
}
