package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"telemetryhub/internal/task"
	"telemetryhub/internal/telemetry"
	"telemetryhub/internal/worker"
)

func buildWorkCmd(configFile, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Drain the configured queue, dispatching tasks to registered handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(*logLevel)
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := newBrokerClient(cfg)
			defer client.Close()

			guard := newDedupGuard(client, cfg)
			wrk := worker.New(client, cfg.Queue.Name, queueMode(cfg), resolveWorkerID(), guard, worker.Config{
				PollTimeout:    cfg.Worker.PollTimeout,
				BackoffInitial: cfg.Worker.BackoffInitial,
				BackoffMax:     cfg.Worker.BackoffMax,
			})
			registerDemoHandlers(wrk)
			attachTerminalHooks(context.Background(), cfg, wrk)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				ch := make(chan os.Signal, 1)
				signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
				<-ch
				cancel()
			}()

			go func() {
				if err := http.ListenAndServe(cfg.HTTP.MetricsAddr, telemetry.Handler()); err != nil {
					logrus.WithError(err).Warn("metrics server stopped")
				}
			}()

			logrus.WithField("queue", cfg.Queue.Name).WithField("worker_id", resolveWorkerID()).
				Info("worker starting")
			err = wrk.Run(ctx)
			if err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
	return cmd
}

// registerDemoHandlers wires a minimal always-succeeds handler for the
// single "noop" task type; handler bodies for
// real telemetry workloads (anomaly thresholds, aggregation, webhook
// delivery) are out of scope, per spec.md §1's Non-goals.
func registerDemoHandlers(wrk *worker.Worker) {
	wrk.RegisterHandler("noop", func(ctx context.Context, t task.Task) (worker.Outcome, error) {
		return worker.Success, nil
	})
}
