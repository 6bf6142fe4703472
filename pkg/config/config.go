// pkg/config/config.go
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// FailMode selects what the admission gate does when the protected set is unavailable.
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Tenant registry
	DatabaseURL     string
	DBMaxConns      int
	DBConnMaxIdle   time.Duration
	TenantSeedJSON  string
	TenantCacheSize int
	TenantCacheTTL  time.Duration
	ModelStoreType  string

	RedisURL string

	// OIDC / JWT
	Issuer    string
	Audience  string
	JWKSURL   string
	ClockSkew time.Duration

	// Identity server admin API
	IAMBaseURL       string
	IAMRealm         string
	IAMClientID      string // resource-server client whose resources are protected
	IAMTokenURL      string
	IAMServiceID     string
	IAMServiceSecret string
	IAMTimeout       time.Duration
	ClientIDTTL      time.Duration
	ProtectedTTL     time.Duration

	FailMode       FailMode
	RoleClaimPaths []string
	AdminRoles     []string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:              env("BLDGATE_ENV", "dev"),
		HTTPAddr:         env("BLDGATE_HTTP_ADDR", ":8080"),
		DatabaseURL:      env("DATABASE_URL", ""),
		DBMaxConns:       envInt("DB_MAX_CONNS", 20),
		DBConnMaxIdle:    envDur("DB_CONN_MAX_IDLE_SEC", 300) * time.Second,
		TenantSeedJSON:   env("TENANT_SEED_JSON", ""),
		TenantCacheSize:  envInt("TENANT_CACHE_SIZE", 512),
		TenantCacheTTL:   envDur("TENANT_CACHE_TTL_SEC", 30) * time.Second,
		ModelStoreType:   env("MODEL_STORE_TYPE", "postgres"),
		RedisURL:         env("REDIS_URL", ""),
		Issuer:           env("OIDC_ISSUER", ""),
		Audience:         env("OIDC_AUDIENCE", "backend"),
		JWKSURL:          env("JWKS_URL", ""),
		ClockSkew:        envDur("JWT_CLOCK_SKEW_SEC", 60) * time.Second,
		IAMBaseURL:       env("IAM_ADMIN_BASE_URL", ""),
		IAMRealm:         env("IAM_REALM", ""),
		IAMClientID:      env("IAM_CLIENT_ID", ""),
		IAMTokenURL:      env("IAM_TOKEN_URL", ""),
		IAMServiceID:     env("IAM_SERVICE_CLIENT_ID", ""),
		IAMServiceSecret: env("IAM_SERVICE_CLIENT_SECRET", ""),
		IAMTimeout:       envDur("IAM_TIMEOUT_SEC", 5) * time.Second,
		ClientIDTTL:      envDur("IAM_CLIENT_ID_TTL_SEC", 3600) * time.Second,
		ProtectedTTL:     envDur("IAM_PROTECTED_TTL_SEC", 180) * time.Second,
		FailMode:         FailMode(strings.ToLower(env("ADMISSION_FAIL_MODE", string(FailClosed)))),
		RoleClaimPaths:   envList("ROLE_CLAIM_PATHS", "roles,realm_access.roles,resource_access.backend.roles"),
		AdminRoles:       envList("ADMIN_ROLES", "admin,ROLE_admin,ROLE_ADMIN"),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set, using in-memory tenant registry for dev")
	}
	return cfg
}

// IAMConfigured reports whether the identity server admin API can be called.
func (c Config) IAMConfigured() bool {
	return c.IAMBaseURL != "" && c.IAMRealm != "" && c.IAMClientID != ""
}

// Validate reports settings that make the service unusable.
func (c Config) Validate() error {
	var errs []error
	if c.FailMode != FailOpen && c.FailMode != FailClosed {
		errs = append(errs, errors.New("ADMISSION_FAIL_MODE must be open or closed"))
	}
	if (c.IAMServiceID == "") != (c.IAMServiceSecret == "") {
		errs = append(errs, errors.New("IAM_SERVICE_CLIENT_ID and IAM_SERVICE_CLIENT_SECRET must be set together"))
	}
	if c.IAMServiceID != "" && c.IAMTokenURL == "" {
		errs = append(errs, errors.New("IAM_TOKEN_URL is required with a service client"))
	}
	if c.Env == "prod" && (c.Issuer == "" || c.JWKSURL == "") {
		errs = append(errs, errors.New("OIDC_ISSUER and JWKS_URL are required in prod"))
	}
	return errors.Join(errs...)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
// envDur reads a non-negative integer; unparsable or negative values fall back to def.
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i >= 0 {
			return time.Duration(i)
		}
		log.Printf("[WARN] %s=%q is not a non-negative integer, using %d", k, v, def)
	}
	return time.Duration(def)
}
func envList(k, def string) []string {
	var out []string
	for _, p := range strings.Split(env(k, def), ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
