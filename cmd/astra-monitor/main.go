package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"astra-monitor/internal/common/logger"
	"astra-monitor/internal/config"
	"astra-monitor/internal/service"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run carries the whole process lifecycle so deferred cleanup executes
// on every exit path, including a service failure.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "astra-monitor")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	monitorService, err := service.NewMonitorService(cfg, log)
	if err != nil {
		log.Error("Failed to create monitor service",
			zap.Error(err),
		)
		return err
	}
	defer monitorService.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceErrChan := make(chan error, 1)
	go func() {
		if err := monitorService.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
	case err := <-serviceErrChan:
		log.Error("Service error, shutting down",
			zap.Error(err),
		)
		return err
	}

	log.Info("Monitor service stopped")
	return nil
}
