package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zephyrtronium/calculator/internal/server"
	"github.com/zephyrtronium/calculator/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		addr  string
		given []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve expression evaluation over HTTP",
		Long: `Serve POST /v1/eval, which evaluates the expression in a JSON body like
{"expr": "2 pi"}, along with GET /healthz and Prometheus metrics on
GET /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Server.Addr
			}
			opts := cfg.ParseOptions()
			syms, err := givenSymbols(given, opts)
			if err != nil {
				return err
			}
			sopts := []server.ServerOption{
				server.WithLogger(logger),
				server.WithMetrics(telemetry.NewMetrics()),
				server.WithSymbols(syms),
				server.WithParseOptions(opts...),
				server.WithDisplay(cfg.Display),
				server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
			}
			h, err := openHistory()
			if err != nil {
				return err
			}
			if h != nil {
				sopts = append(sopts, server.WithHistory(h))
			}
			srv := server.NewServer(sopts...)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe(addr)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serving: %w", err)
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringArrayVar(&given, "given", nil, "name=value constant definition (any number of times)")

	return cmd
}
