package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	srv "github.com/mohammad-safakhou/loksabha/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.openStore(ctx); err != nil {
				return err
			}
			a.openCache(ctx)
			if err := a.openMetrics(); err != nil {
				return err
			}
			if err := a.buildPipeline(ctx); err != nil {
				return err
			}

			refresher, err := srv.NewRefresher(a.cfg.Refresh.Schedule, a.store, a.cache, a.index, a.logger.Named("refresh"))
			if err != nil {
				return err
			}
			if err := refresher.Refresh(ctx); err != nil {
				a.logger.Warn("initial refresh failed, serving without value hints", zap.Error(err))
			}
			if a.cfg.Refresh.Enabled {
				refresher.Start(ctx)
			}

			e := srv.New(srv.Deps{
				Store:    a.store,
				Asker:    a.pipeline,
				Cache:    a.cache,
				Logger:   a.logger,
				CORS:     a.cfg.CORS,
				Gatherer: a.registry,
			})
			addr := serveAddr
			if addr == "" {
				addr = a.cfg.General.Listen
			}
			return srv.Run(ctx, e, addr, a.logger)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides general.listen)")

	return serve
}
