// Command authcore-server serves the authcore login and session routes over HTTP.
//
// Configuration comes from an optional TOML file (-config or AUTHCORE_CONFIG), an optional
// .env file and the environment. Outside production, a missing REDIS_ADDR starts an embedded
// miniredis instance for rate limiting and single-use pending tokens; production refuses to
// start without it. Without MONGO_URI identities live in memory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mentorloop/authcore"
	"github.com/mentorloop/authcore/httpapi"
	"github.com/mentorloop/authcore/internal/envconfig"
	promexport "github.com/mentorloop/authcore/metrics/export/prometheus"
	"github.com/mentorloop/authcore/password"
	"github.com/mentorloop/authcore/permission"
	"github.com/mentorloop/authcore/session"
	"github.com/mentorloop/authcore/store"
	"github.com/mentorloop/authcore/store/memstore"
	"github.com/mentorloop/authcore/store/mongostore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("AUTHCORE_CONFIG"), "path to a TOML config file")
	dotenvPath := flag.String("env-file", ".env", "path to an optional .env file")
	flag.Parse()

	cfg, err := envconfig.Load(*configPath, *dotenvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg envconfig.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Production {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

func run(cfg envconfig.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	identities, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	builder := authcore.New().
		WithConfig(cfg.Engine()).
		WithIdentityStore(identities).
		WithRedis(rdb).
		WithLogger(logger)
	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(authcore.NewZapSink(logger.Named("audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	var metrics http.Handler
	if cfg.MetricsEnabled {
		metrics, err = promexport.Handler(engine)
		if err != nil {
			return fmt.Errorf("metrics handler: %w", err)
		}
	}

	server, err := httpapi.NewServer(engine, httpapi.Options{
		Cookies: session.CookieConfig{
			Secure: cfg.Production,
			Domain: cfg.CookieDomain,
		},
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authcore listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logger.Info("authcore stopped", zap.Uint64("audit_dropped", engine.AuditDropped()))
	return nil
}

func openRedis(cfg envconfig.Config, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	if cfg.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		logger.Info("using redis", zap.String("addr", cfg.RedisAddr))
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	logger.Warn("REDIS_ADDR not set, using embedded miniredis", zap.String("addr", mr.Addr()))
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

type identityStore interface {
	authcore.IdentityStore
	Create(ctx context.Context, in store.NewIdentity) (authcore.IdentityRecord, error)
}

func openStore(ctx context.Context, cfg envconfig.Config, logger *zap.Logger) (authcore.IdentityStore, func(), error) {
	var (
		identities identityStore
		closeFn    = func() {}
	)

	if cfg.MongoURI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		st, disconnect, err := mongostore.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := st.EnsureIndexes(connectCtx); err != nil {
			_ = disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		identities = st
		closeFn = func() {
			dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer dcancel()
			_ = disconnect(dctx)
		}
		logger.Info("using mongo identity store", zap.String("database", cfg.MongoDatabase))
	} else {
		identities = memstore.New()
		logger.Warn("MONGO_URI not set, identities are kept in memory")
	}

	if cfg.SeedEmail != "" {
		if err := seedAdmin(ctx, identities, cfg); err != nil {
			closeFn()
			return nil, nil, err
		}
		logger.Info("seeded admin identity", zap.String("email", store.NormalizeEmail(cfg.SeedEmail)))
	}
	return identities, closeFn, nil
}

func seedAdmin(ctx context.Context, identities identityStore, cfg envconfig.Config) error {
	engineCfg := cfg.Engine()
	hasher, err := password.NewBcrypt(engineCfg.Password.Cost)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(cfg.SeedPassword)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	_, err = identities.Create(ctx, store.NewIdentity{
		Email:        cfg.SeedEmail,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         permission.Admin,
	})
	if errors.Is(err, store.ErrEmailTaken) {
		return nil
	}
	return err
}
