package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeout-exchange-go/internal/api"
	"timeout-exchange-go/internal/scheduler"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP API and the market keeper",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Bring the market up to date before accepting orders.
	report, err := a.exchange.CatchUp(ctx)
	if err != nil {
		return err
	}
	a.log.Info("Market caught up", zap.Int64("ticks", report.Ticks))

	var keeper *scheduler.Keeper
	if spec := a.cfg.Market.KeepAlive; spec != "" {
		if keeper, err = scheduler.NewKeeper(spec, a.exchange, a.log); err != nil {
			return err
		}
	}

	server := api.NewServer(a.cfg.Server, a.exchange, a.metrics, a.log)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("Shutdown signal received, gracefully shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if keeper != nil {
		g.Go(func() error {
			keeper.Run(ctx)
			return nil
		})
	}

	err = g.Wait()
	a.log.Info("Exchange has been shut down.")
	return err
}
