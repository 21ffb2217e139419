package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/spamensemble/corpus"
	"github.com/YuminosukeSato/spamensemble/history"
	"github.com/YuminosukeSato/spamensemble/pkg/log"
	"github.com/YuminosukeSato/spamensemble/server"
)

func (a *app) serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := a.setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			if listen != "" {
				rt.cfg.Server.Listen = listen
			}
			return rt.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides server.listen")
	return cmd
}

func (rt *runtime) serve(ctx context.Context) error {
	cfg := rt.cfg
	var hist server.History
	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.DSN, history.WithContentLimit(cfg.History.ContentLimit))
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, store)
		rt.logger.Info("detection log enabled", "engine", string(store.Engine()))
		hist = store
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	// load or train in the background so the listener comes up at once;
	// requests arriving earlier wait on the same initialisation
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rt.manager.EnsureReady(ctx); err != nil {
			rt.logger.Warn("initial ensemble load failed", err)
		}
	}()

	if cfg.Training.WatchCorpus && cfg.Training.CorpusFile != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := corpus.Watch(ctx, cfg.Training.CorpusFile, rt.logger, func(examples []corpus.Example) error {
				rep, err := rt.manager.TrainOn(ctx, examples)
				if err != nil {
					return err
				}
				rt.logger.Info("retrained after corpus change", log.BundleIDKey, rep.BundleID)
				return nil
			})
			if err != nil {
				rt.logger.Error("corpus watcher stopped", err)
			}
		}()
	}

	srv := server.New(server.Config{
		Listen:          cfg.Server.Listen,
		Version:         revision,
		RateLimit:       cfg.Server.RateLimit,
		CacheSize:       cfg.Server.CacheSize,
		CacheTTL:        cfg.Server.CacheTTL,
		MaxContent:      cfg.Server.MaxContent,
		ListLimit:       cfg.History.ListLimit,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, rt.manager, hist, rt.logger)
	return srv.Run(ctx)
}
