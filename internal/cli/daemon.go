package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pkgd/internal/engine"
	"pkgd/internal/logging"
	"pkgd/internal/metrics"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

var daemonMetricsAddr string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the transaction daemon",
	Long: `Run the scheduler in the foreground: refresh metadata in the
background, prune old history and serve Prometheus metrics when enabled.
On SIGINT or SIGTERM queued transactions are cancelled and running ones
are given time to finish.

Examples:
  pkgd daemon                               # Run with the configured settings
  pkgd daemon --metrics-addr 127.0.0.1:9419 # Also serve /metrics`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", "", "serve metrics on this address (enables metrics)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if daemonMetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = daemonMetricsAddr
	}

	logger, err := logging.New(cfg.Log, verbose)
	if err != nil {
		return err
	}
	log := logging.Component(logger, "daemon")

	m := metrics.NewCollector()
	e, err := openEngine(cfg, logger, m)
	if err != nil {
		return err
	}
	defer e.Close()

	unwatch := e.Scheduler().Watch(func(tids []string) {
		log.WithField("transactions", tids).Debug("transaction list changed")
	})
	defer unwatch()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The engine outlives ctx so running transactions can finish.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.Run(runCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		defer cancelRun()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	if cfg.Metrics.Enabled {
		srv := metricsServer(cfg.Metrics.Address, e)
		g.Go(func() error {
			log.WithField("address", srv.Addr).Info("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	d := e.BackendDetails()
	log.WithFields(logrus.Fields{
		"backend":  d.Name,
		"parallel": d.Parallel,
	}).Info("daemon started")

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("daemon stopped")
	return nil
}

// metricsServer serves Prometheus metrics and a plain-text scheduler dump.
func metricsServer(addr string, e *engine.Engine) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Metrics().Handler())
	mux.HandleFunc("/debug/transactions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, e.Scheduler().StateDump())
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
