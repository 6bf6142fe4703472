package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bldgate/pkg/config"
)

const applicationName = "bldgate"

// PoolConfig builds the pool shared by every tenant. Limits come from cfg, and a
// connection released while still inside a transaction is destroyed so a
// search_path pinned by BeginTx never reaches the next borrower.
func PoolConfig(cfg config.Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		pc.MaxConns = int32(cfg.DBMaxConns)
	}
	if cfg.DBConnMaxIdle > 0 {
		pc.MaxConnIdleTime = cfg.DBConnMaxIdle
	}
	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	pc.AfterRelease = outsideTx
	return pc, nil
}

// outsideTx keeps a connection only when it is idle outside a transaction.
func outsideTx(c *pgx.Conn) bool {
	return c.PgConn().TxStatus() == 'I'
}

// MustConnect opens the pool, or returns nil when no DATABASE_URL is set (dev).
func MustConnect(cfg config.Config, log *zap.SugaredLogger) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		return nil
	}
	pc, err := PoolConfig(cfg)
	if err != nil {
		log.Fatalw("pg config", "err", err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), pc)
	if err != nil {
		log.Fatalw("pg connect", "err", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatalw("pg ping", "err", err)
	}
	log.Infow("postgres ready", "host", redactDSN(cfg.DatabaseURL), "max_conns", pc.MaxConns)
	return pool
}

// MustRedis connects the client backing the shared permission snapshot, or
// returns nil when REDIS_URL is unset.
func MustRedis(cfg config.Config, log *zap.SugaredLogger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalw("redis parse", "err", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = applicationName
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(context.Background()).Err(); err != nil {
		log.Fatalw("redis ping", "err", err)
	}
	log.Infow("redis ready", "addr", opts.Addr, "db", opts.DB)
	return cli
}

func redactDSN(dsn string) string {
	if i := strings.LastIndex(dsn, "@"); i > 0 {
		return "***@" + dsn[i+1:]
	}
	return dsn
}
