package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/detent/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve [config]",
	Short: "Start the HTTP bridge",
	Long: `Starts an engine driven by the simulated platform and exposes it over HTTP:
sheet commands, platform event ingestion, SSE lifecycle and telemetry streams,
and Prometheus metrics on /metrics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.HTTP.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		streams := httpAdapter.NewStreamManager(logger)
		deps, err := buildEngine(ctx, cfg, logger, engineSetup{hooks: streams.Hooks(), registry: reg})
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := mountAll(deps.engine, cfg.Sheets); err != nil {
			return err
		}

		metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		api := httpAdapter.NewHandler(deps.engine, streams, httpAdapter.WithLogger(logger))

		mux := http.NewServeMux()
		mux.Handle("/", api)
		servers := []*http.Server{{Addr: cfg.HTTP.Addr, Handler: mux}}
		if cfg.HTTP.MetricsAddr == "" {
			mux.Handle("/metrics", metricsHandler)
		} else {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", metricsHandler)
			servers = append(servers, &http.Server{Addr: cfg.HTTP.MetricsAddr, Handler: metricsMux})
		}

		g, ctx := errgroup.WithContext(ctx)
		for _, srv := range servers {
			g.Go(func() error {
				logger.Info("Listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		}
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("Shutting down")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := deps.engine.DismissAll(shutdownCtx, false); err != nil {
				logger.Warn("Dismissing sheets on shutdown failed", "error", err)
			}

			var errs []error
			for _, srv := range servers {
				if err := srv.Shutdown(shutdownCtx); err != nil {
					errs = append(errs, err)
					_ = srv.Close()
				}
			}
			return errors.Join(errs...)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("metrics-addr", "", "Serve /metrics on a separate address")
}
