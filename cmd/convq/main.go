package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"convq/config"
	"convq/internal/adapter/converter/ffmpeg"
	HTTPAdapter "convq/internal/adapter/http"
	"convq/internal/adapter/probe/ffprobe"
	sqlitestore "convq/internal/adapter/storage/sqlite"
	"convq/internal/infrastructure/logger"
	"convq/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	logger.Info.Printf("starting convq on port %d, domain=%s", cfg.Port, cfg.Domain)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error.Printf("failed to create data directory: %v", err)
		os.Exit(1)
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error.Printf("failed to create store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	history := sqlitestore.NewHistory(store)
	bus := service.NewBus()
	probe := ffprobe.NewProbe(cfg.FFprobeBin)
	converter := ffmpeg.NewConverter(cfg.FFmpegBin)

	orchestrator := service.NewOrchestrator(probe, converter, history, bus, cfg.ProbeTimeout)
	converter.SetSink(orchestrator)

	authSvc, err := service.NewAuthService(cfg.AdminPassword, cfg.AuthSecret)
	if err != nil {
		logger.Error.Printf("failed to set up auth: %v", err)
		os.Exit(1)
	}

	server := HTTPAdapter.NewServer(authSvc, orchestrator, history, bus, cfg.BehindProxy)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  1 * time.Minute,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info.Printf("received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
		}

		// Cancel the in-flight conversion; the job reverts to queued.
		orchestrator.Stop()

		logger.Info.Printf("shutdown complete")
	}()

	logger.Info.Printf("server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error.Printf("server failed: %v", err)
		os.Exit(1)
	}
}
