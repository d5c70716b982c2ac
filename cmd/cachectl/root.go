package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/asidecache"
	"github.com/unkn0wn-root/asidecache/codec"
	zapadapter "github.com/unkn0wn-root/asidecache/log/zap"
	"github.com/unkn0wn-root/asidecache/resilience"
	"github.com/unkn0wn-root/asidecache/store"
	"github.com/unkn0wn-root/asidecache/store/sqlstore"
)

const envPrefix = "cachectl"

type app struct {
	v   *viper.Viper
	log *zap.Logger

	// open builds the backing store; replaced in tests.
	open func(ctx context.Context, a *app) (store.Store, error)
	// ping probes the backend connection when one was opened.
	ping   func(ctx context.Context) error
	pool   *pgxpool.Pool
	sqlCfg sqlstore.Config

	raw    store.Store
	cache  asidecache.Cache[string]
	cancel context.CancelFunc
}

func newApp() *app {
	return &app{v: viper.New(), log: zap.NewNop(), open: openBackend}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "cachectl",
		Short:        "Inspect and maintain an asidecache store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	f := root.PersistentFlags()
	f.String("backend", "redis", "store backend (redis, postgres, shard, memory)")
	f.String("redis-url", "redis://localhost:6379/0", "redis connection URL")
	f.String("prefix", "", "key namespace for the redis backend")
	f.String("database-url", "", "postgres connection string")
	f.String("table", "", "cache table for the postgres backend")
	f.String("migrations-table", "", "goose version table for migrate")
	f.Int32("db-max-conns", 0, "postgres pool size; 0 keeps the default")
	f.Int("db-retry-attempts", 0, "postgres connect attempts; 0 keeps the default")
	f.Int("retries", 3, "attempts per store call for transient failures")
	f.Duration("timeout", 10*time.Second, "deadline for the whole command")
	f.String("log-level", "warn", "log level (debug, info, warn, error)")
	f.String("codec", "string", "value encoding (string, json, msgpack, cbor)")

	root.AddCommand(
		getCmd(a), setCmd(a), existsCmd(a), ttlCmd(a),
		delCmd(a), delPatternCmd(a), keysCmd(a), clearCmd(a),
		msetCmd(a), mgetCmd(a), sweepCmd(a), pingCmd(a), migrateCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.bindEnv(); err != nil {
		return err
	}
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if err := a.buildLogger(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.v.GetDuration("timeout"))
	a.cancel = cancel
	cmd.SetContext(ctx)

	cd, err := valueCodec(a.v.GetString("codec"))
	if err != nil {
		return err
	}
	s, err := a.open(ctx, a)
	if err != nil {
		return err
	}
	lg := zapadapter.ZapLogger{L: a.log}
	a.raw = resilience.Wrap(s, resilience.Policies{Default: resilience.Exponential(a.v.GetInt("retries"))},
		resilience.WithLogger(lg))
	a.cache, err = asidecache.New(asidecache.Options[string]{
		Store:  a.raw,
		Codec:  cd,
		Logger: lg,
	})
	return err
}

// valueCodec picks how command-line values are stored. json, msgpack and
// cbor match what a Cache[string] in an application writes with that codec.
func valueCodec(name string) (codec.Codec[string], error) {
	switch name {
	case "string":
		return codec.String{}, nil
	case "json":
		return codec.JSON[string]{}, nil
	case "msgpack":
		return codec.Msgpack[string]{}, nil
	case "cbor":
		return codec.NewCBOR[string](false)
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// bindEnv lets the postgres settings come from the same variables
// sqlstore.Config documents, next to their CACHECTL_ forms.
func (a *app) bindEnv() error {
	for key, env := range map[string]string{
		"database-url":      "DATABASE_URL",
		"table":             "ASIDECACHE_TABLE",
		"migrations-table":  "ASIDECACHE_MIGRATIONS_TABLE",
		"db-max-conns":      "DATABASE_MAX_OPEN_CONNS",
		"db-retry-attempts": "DATABASE_RETRY_ATTEMPTS",
	} {
		prefixed := strings.ToUpper(envPrefix + "_" + strings.ReplaceAll(key, "-", "_"))
		if err := a.v.BindEnv(key, prefixed, env); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) buildLogger() error {
	lvl, err := zapcore.ParseLevel(a.v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	a.log = l
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	defer func() {
		if a.cancel != nil {
			a.cancel()
		}
		_ = a.log.Sync()
	}()
	if a.cache == nil {
		return nil
	}
	return a.cache.Close(context.WithoutCancel(ctx))
}
