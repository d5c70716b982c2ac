package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/unkn0wn-root/asidecache/store"
	"github.com/unkn0wn-root/asidecache/store/memstore"
	"github.com/unkn0wn-root/asidecache/store/redisstore"
	"github.com/unkn0wn-root/asidecache/store/shardstore"
	"github.com/unkn0wn-root/asidecache/store/sqlstore"
)

func openBackend(ctx context.Context, a *app) (store.Store, error) {
	switch b := a.v.GetString("backend"); b {
	case "redis":
		rdb, err := redisstore.Open(ctx, a.v.GetString("redis-url"))
		if err != nil {
			return nil, err
		}
		a.ping = redisstore.Healthcheck(rdb)
		return redisstore.New(redisstore.Config{
			Client:      rdb,
			Prefix:      a.v.GetString("prefix"),
			CloseClient: true,
		})
	case "postgres":
		cfg := sqlConfig(a.v)
		a.sqlCfg = cfg
		pool, err := sqlstore.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.ping = sqlstore.Healthcheck(pool)
		return sqlstore.New(sqlstore.Options{DB: pool, Table: cfg.Table, ClosePool: true})
	case "shard":
		return shardstore.New(ctx, shardstore.Config{})
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", b)
	}
}

// sqlConfig overlays flags and environment on sqlstore.DefaultConfig.
func sqlConfig(v *viper.Viper) sqlstore.Config {
	cfg := sqlstore.DefaultConfig(v.GetString("database-url"))
	if t := v.GetString("table"); t != "" {
		cfg.Table = t
	}
	if t := v.GetString("migrations-table"); t != "" {
		cfg.MigrationsTable = t
	}
	if n := v.GetInt32("db-max-conns"); n > 0 {
		cfg.MaxOpenConns = n
	}
	if n := v.GetInt("db-retry-attempts"); n > 0 {
		cfg.RetryAttempts = n
	}
	return cfg
}
