package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"telemetryhub/internal/httpapi"
	"telemetryhub/internal/ratelimit"
	"telemetryhub/internal/worker"
)

func buildServeCmd(configFile, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the producer-facing HTTP API and an in-process worker together",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(*logLevel)
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := newBrokerClient(cfg)
			defer client.Close()

			guard := newDedupGuard(client, cfg)
			mode := queueMode(cfg)
			wrk := worker.New(client, cfg.Queue.Name, mode, resolveWorkerID(), guard, worker.Config{
				PollTimeout:    cfg.Worker.PollTimeout,
				BackoffInitial: cfg.Worker.BackoffInitial,
				BackoffMax:     cfg.Worker.BackoffMax,
			})
			registerDemoHandlers(wrk)
			attachTerminalHooks(context.Background(), cfg, wrk)

			prod := producerFor(client, cfg, mode, guard)
			limiter := ratelimit.NewLocalLimiter(50, 100)
			distributed := newDistributedLimiter(client, cfg)
			srv := httpapi.New(client, cfg.Queue.Name, prod, wrk, limiter, distributed)

			httpServer := &http.Server{
				Addr:    cfg.HTTP.Addr,
				Handler: srv.Router(),
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logrus.WithField("queue", cfg.Queue.Name).Info("worker starting")
				if err := wrk.Run(gctx); err != nil && err != context.Canceled {
					return err
				}
				return nil
			})

			g.Go(func() error {
				logrus.WithField("addr", cfg.HTTP.Addr).Info("http api listening")
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelShutdown()
				return httpServer.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
	return cmd
}
