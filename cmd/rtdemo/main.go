package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tickrt/internal/kernel"
)

var (
	configPath  string
	csvPath     string
	duration    time.Duration
	irqEvery    time.Duration
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "rtdemo",
	Short: "Run a producer/consumer workload on the tick kernel",
	Long: `rtdemo starts a producer, a consumer and an alarm watcher as kernel tasks,
fires a simulated timer interrupt at a fixed rate, and logs a summary when
the run ends.`,
	SilenceUsage: true,
	RunE:         runDemo,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "kernel config file (YAML)")
	f.StringVar(&csvPath, "csv", "", "write the kernel event trace to this CSV file")
	f.DurationVar(&duration, "duration", 3*time.Second, "how long to run")
	f.DurationVar(&irqEvery, "irq-every", 25*time.Millisecond, "simulated interrupt period")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :2112")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runDemo(cmd *cobra.Command, _ []string) error {
	cfg, err := kernel.Load(configPath)
	if err != nil {
		return err
	}
	k := kernel.New(cfg)
	defer k.Shutdown()
	log := k.Logger()

	if csvPath != "" {
		if err := k.EnableCSVTrace(csvPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	k.Start()
	d := newDemo(k)
	if err := d.start(); err != nil {
		return err
	}
	log.Info("demo running", "tick_ms", cfg.TickMS, "duration", duration, "irq_every", irqEvery)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.interrupts(gctx, irqEvery)
		return nil
	})
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(k.Registry(), promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}

		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err = g.Wait()
	d.stop()
	d.report(log)
	return err
}
