package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appconfig "github.com/omnitalk/stream-bridge/internal/config"
	apphttp "github.com/omnitalk/stream-bridge/internal/http"
	applogger "github.com/omnitalk/stream-bridge/internal/logger"
	"github.com/omnitalk/stream-bridge/internal/ws"
)

func main() {
	cfg, err := appconfig.Load()
	if err != nil {
		fallback, _ := zap.NewProduction()
		defer fallback.Sync()
		fallback.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	rooms, err := appconfig.ReadRoomOverrides(cfg.RoomsFile)
	if err != nil {
		logger.Warn("room overrides unavailable", zap.String("path", cfg.RoomsFile), zap.Error(err))
		rooms = nil
	}

	wsHandler := ws.NewHandler(logger, cfg, rooms)
	router := apphttp.NewRouter(cfg, wsHandler, logger)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := listen(server, cfg, logger); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
}

func listen(server *http.Server, cfg appconfig.Config, logger *zap.Logger) error {
	if fileExists(cfg.TLSCertPath) && fileExists(cfg.TLSKeyPath) {
		logger.Info("starting https server", zap.String("addr", cfg.HTTPAddr))
		return server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	}
	logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
	return server.ListenAndServe()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
