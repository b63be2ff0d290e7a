package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mad-auth/console/internal/audit"
	"github.com/mad-auth/console/internal/config"
	"github.com/mad-auth/console/internal/httpapi"
	"github.com/mad-auth/console/internal/obs"
	"github.com/mad-auth/console/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("MAD_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	logger, err := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	obs.SetLogger(logger)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// The audit store is optional; without it events only reach the log.
	var ready httpapi.ReadyCheck
	var store *pg.Store
	if cfg.Audit.DSN != "" {
		store, err = pg.Open(cfg.Audit.DSN)
		if err != nil {
			logger.Fatal("open audit store", zap.Error(err))
		}
		audit.SetSink(store)
		ready.DB = store
	}

	api, err := httpapi.New(httpapi.Options{
		BackendURL:         cfg.Backend.URL,
		SecureCookies:      cfg.Production(),
		DefaultPageSize:    cfg.Table.DefaultPageSize,
		SearchDebounce:     cfg.Table.SearchDebounce,
		MaxUploadBytes:     cfg.HTTPServer.MaxUploadBytes,
		LoginRatePerSecond: cfg.Login.RatePerSecond,
		LoginRateBurst:     cfg.Login.RateBurst,
		Ready:              ready,
		Version:            version,
		Logger:             logger,
	})
	if err != nil {
		logger.Fatal("build http api", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTPServer.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTPServer.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTPServer.WriteTimeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
	}

	logger.Info("starting mad console",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("backend", cfg.Backend.URL),
		zap.String("env", cfg.Env))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	if store != nil {
		_ = store.Close()
	}
	logger.Info("stopped")
}
