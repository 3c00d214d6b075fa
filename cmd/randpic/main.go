package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"randpic/internal/config"
	"randpic/internal/core"
	"randpic/internal/logging"

	"golang.org/x/sync/errgroup"
)

func Run(ctx context.Context) error {

	configPath := flag.String("config", "", "path to the YAML configuration file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")

	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if err := logging.Setup(os.Stdout, cfg.Log.Level); err != nil {
		return err
	}

	engine, err := cfg.OpenStorage()
	if err != nil {
		return err
	}

	server, err := core.NewServer(core.NewConfig(
		core.WithStorageEngine(engine),
		core.WithBasePrefix(cfg.BasePrefix),
		core.WithPublicURL(cfg.PublicURL),
	))
	if err != nil {
		return fmt.Errorf("failed to create randpic server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout.Std(),
		ReadTimeout:       cfg.Server.ReadTimeout.Std(),
		WriteTimeout:      cfg.Server.WriteTimeout.Std(),
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()

		slog.Info("Shutting down randpic HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		slog.Info("Starting randpic HTTP server",
			"listen", cfg.Listen,
			"driver", cfg.Storage.Driver,
			"base_prefix", cfg.BasePrefix,
		)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := Run(ctx); err != nil {
		slog.Error("randpic exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("randpic stopped", "uptime", time.Since(start).Round(time.Second).String())
}
