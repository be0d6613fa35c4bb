package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"shopfront/internal/checkout"
	"shopfront/internal/config"
	"shopfront/internal/server"
	"shopfront/internal/shopapi"
	"shopfront/internal/util"
	"shopfront/pkg/cart"
	"shopfront/pkg/localdata"
	"shopfront/pkg/session"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	requestTimeout, err := config.ParseRequestTimeout(cfg.RequestTimeout)
	if err != nil {
		log.Fatalf("failed to parse request timeout: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var backend localdata.Backend
	if cfg.RedisAddr != "" {
		backend = localdata.NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisKeyPrefix)
	} else {
		fileBackend, err := localdata.NewFileBackend(cfg.DataDir)
		if err != nil {
			log.Fatalf("failed to init local data store: %v", err)
		}
		backend = fileBackend
	}

	cartStore, err := cart.New(backend)
	if err != nil {
		log.Fatalf("failed to init cart store: %v", err)
	}
	sessions := session.New(backend)
	api := shopapi.NewClient(cfg.APIBaseURL, requestTimeout)

	httpServer := server.New(server.Config{
		API:        api,
		Cart:       cartStore,
		Sessions:   sessions,
		Checkout:   checkout.New(cartStore, sessions, api),
		SigninPath: cfg.SigninPath,
		HomePath:   cfg.HomePath,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
