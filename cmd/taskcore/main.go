// Command taskcore wires a Manager together from config, registers an
// example handler, starts it, and blocks for a shutdown signal
// — the same shape as the teacher's cmd/scheduler/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jobs/taskcore/internal/httpapi"
	"github.com/jobs/taskcore/internal/manager"
	"github.com/jobs/taskcore/internal/registry"
	"github.com/jobs/taskcore/pkg/config"
	"github.com/jobs/taskcore/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	mgr, err := manager.New(manager.Config{
		DBConnection:       cfg.Task.DBConnection,
		PollInterval:       cfg.Task.PollInterval,
		MaxConcurrentTasks: cfg.Task.MaxConcurrentTasks,
		MaxRetries:         cfg.Task.MaxRetries,
		RetryInterval:      cfg.Task.RetryInterval,
		DefaultTimeout:     cfg.Task.DefaultTimeout,
		InstanceID:         cfg.Task.InstanceID,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to create task manager", zap.Error(err))
	}

	registerExampleHandlers(mgr)

	if err := mgr.Start(); err != nil {
		zapLogger.Fatal("failed to start task manager", zap.Error(err))
	}

	var httpServer *http.Server
	if cfg.Server.Enabled {
		router := httpapi.NewRouter(mgr)
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: router,
		}
		go func() {
			zapLogger.Info("starting inspection server", zap.Int("port", cfg.Server.Port))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zapLogger.Error("inspection server stopped", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("shutting down")

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	}

	if err := mgr.Stop(); err != nil {
		zapLogger.Error("failed to stop task manager", zap.Error(err))
	}

	zapLogger.Info("shutdown complete")
}

func registerExampleHandlers(mgr *manager.Manager) {
	mgr.Use("example.echo", func(ctx *registry.Context) (any, error) {
		var payload map[string]any
		if err := manager.DecodePayload(ctx.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
}
