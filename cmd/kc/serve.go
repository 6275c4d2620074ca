package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/alfredjeanlab/kvcomments/internal/config"
	"github.com/alfredjeanlab/kvcomments/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the comment service",
	GroupID: "system",
	Long: `Run the comment service. Configuration comes from built-in defaults, the
file named by KVC_CONFIG (.toml, .yaml or .yml) and KVC_* environment
variables, in that order.`,
	Args: cobra.NoArgs,
	// Override PersistentPreRunE so we don't build an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger(os.Stderr)
		slog.SetDefault(logger)

		ctx := context.Background()
		app, err := server.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		logger.Info("comment store opened", "backend", cfg.Backend, "namespace", cfg.Namespace, "key", cfg.ListKey)

		// Any listener failing ends the process the same way a signal does.
		errCh := make(chan error, 2)

		app.Health.Start()

		var grpcServer *grpc.Server
		if cfg.GRPCAddr != "" {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				app.Health.Stop()
				app.Close()
				return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr, err)
			}
			grpcServer = app.NewGRPCServer()
			go func() {
				logger.Info("gRPC health server listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					errCh <- fmt.Errorf("gRPC server: %w", err)
				}
			}()
		}

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           app.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "base_path", cfg.BasePath)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("HTTP server: %w", err)
			}
		}()

		scheduler := app.NewSyncScheduler(ctx)
		if scheduler != nil {
			scheduler.Start()
			logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
		}

		logger.Info("comment service started",
			"http_addr", cfg.HTTPAddr,
			"grpc_addr", cfg.GRPCAddr,
			"probes", cfg.ProbesEnabled,
			"auth", cfg.AuthToken != "",
			"events", cfg.EventsActive(),
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		var runErr error
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
		case runErr = <-errCh:
			logger.Error("server failed, shutting down", "err", runErr)
		}

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		app.Health.Stop()

		if grpcServer != nil {
			grpcServer.GracefulStop()
			logger.Info("gRPC server stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := app.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return runErr
	},
}
