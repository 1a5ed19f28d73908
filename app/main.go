package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/press-relay/app/api"
	"github.com/lysyi3m/press-relay/app/cfg"
	"github.com/lysyi3m/press-relay/app/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	appConfig, err := cfg.Load(os.Args[1:])
	if err != nil {
		// go-flags has already printed the parse error
		return 2
	}
	if appConfig == nil {
		return 0
	}

	slog.SetDefault(appConfig.NewLogger(os.Stderr))

	if err := appConfig.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting press-relay", "sources_dir", appConfig.SourcesDir, "sink", appConfig.Sink, "once", appConfig.Once)

	svc, err := pipeline.Setup(ctx, appConfig)
	if err != nil {
		slog.Error("Failed to set up pipeline", "error", err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Warn("Failed to release resources", "error", err)
		}
	}()

	if appConfig.Once {
		return runOnce(ctx, svc.Runner, appConfig)
	}

	return serve(ctx, svc, appConfig)
}

func runOnce(ctx context.Context, runner *pipeline.Runner, appConfig *cfg.Cfg) int {
	summary, err := runner.Run(ctx, pipeline.Options{
		WindowHours: appConfig.WindowHours,
		Refresh:     appConfig.Refresh,
	})

	if summary != nil {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if encodeErr := encoder.Encode(summary); encodeErr != nil {
			slog.Warn("Failed to print summary", "error", encodeErr)
		}
	}

	if err != nil {
		if pipeline.StatusCode(err) == http.StatusBadGateway {
			return 3
		}
		return 1
	}
	return 0
}

func serve(ctx context.Context, svc *pipeline.Service, appConfig *cfg.Cfg) int {
	apiHandler := api.NewHandler(svc.Runner, svc.History, svc.ConfigCache)
	server := api.NewServer(apiHandler, appConfig.APIAccessKey)

	// /run responds only after a full pipeline pass.
	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return exitCode
}
