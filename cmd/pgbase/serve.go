package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/edgeflare/pgbase/pkg/auth"
	"github.com/edgeflare/pgbase/pkg/httputil"
	mw "github.com/edgeflare/pgbase/pkg/httputil/middleware"
	"github.com/edgeflare/pgbase/pkg/metrics"
	"github.com/edgeflare/pgbase/pkg/pgq"
	"github.com/edgeflare/pgbase/pkg/pgq/schema"
	"github.com/edgeflare/pgbase/pkg/rest"
	"github.com/edgeflare/pgbase/pkg/rls"
	"github.com/edgeflare/pgbase/pkg/util/rand"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Starts the HTTP server exposing tables, functions and the auth endpoints`,
	Run:   runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("pg.connString", "c", "", "PostgreSQL connection string")
	f.StringP("server.listenAddr", "l", "", "server listen address")
	f.String("server.defaultSchema", "", "schema assumed for unqualified table routes")
	f.String("auth.jwtSecret", "", "HMAC secret for access tokens")
	f.String("auth.store", "", "user/session store backend (postgres, memory)")

	viper.BindPFlags(f)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	if cfg == nil {
		log.Fatal("Configuration not loaded")
	}
	logger := newLogger(logLevel)
	defer logger.Sync()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PG.ConnString)
	if err != nil {
		logger.Fatal("create connection pool", zap.Error(err))
	}
	defer pool.Close()

	// the database may still be coming up alongside us
	ping := func() error { return pool.Ping(ctx) }
	if err := backoff.Retry(ping, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10)); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}

	cache, err := schema.NewCache(pool, logger)
	if err != nil {
		logger.Fatal("create schema cache", zap.Error(err))
	}
	if err := cache.Init(ctx); err != nil {
		logger.Fatal("load schema", zap.Error(err))
	}
	defer cache.Close()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = rand.NewSecret(32)
		logger.Warn("auth.jwtSecret not set, generated an ephemeral secret; tokens will not survive restarts")
	}
	tokens := auth.NewTokenManager(secret, cfg.Auth.AccessTokenTTL)

	var store auth.Store
	if cfg.Auth.Store == "memory" {
		store = auth.NewMemoryStore()
	} else {
		pgStore := auth.NewPGStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Fatal("migrate auth schema", zap.Error(err))
		}
		store = pgStore
	}

	svc := auth.NewService(store, tokens, logger, auth.ServiceConfig{
		PasswordMinLength: cfg.Auth.MinPasswordLen,
		HashIterations:    cfg.Auth.HashIterations,
	})
	resolver := auth.NewResolver(tokens, logger)

	enforcer := rls.NewEnforcer(rls.NewRegistry(cfg.RLS.Policies...), logger)
	engine := rest.NewEngine(pgq.NewPoolExecutor(pool), cache, enforcer, logger)

	router := httputil.NewRouter(httputil.WithServerOptions(func(s *http.Server) {
		s.ReadHeaderTimeout = 10 * time.Second
	}))
	router.Use(mw.RequestID, mw.CORSWithOptions(nil), metrics.HTTP, mw.Session(resolver))
	if logLevel != "none" {
		router.Use(mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger}))
	}

	auth.NewHandler(svc, logger).RegisterRoutes(router)
	rest.NewHandler(engine, cache, cfg.Server.DefaultSchema, logger).RegisterRoutes(router)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: metrics.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := router.ListenAndServe(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	if err := router.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown", zap.Error(err))
		}
	}
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil && level != "none" {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	return logger
}
