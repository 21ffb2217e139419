package main

import (
	"context"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/spamensemble/config"
	"github.com/YuminosukeSato/spamensemble/corpus"
	"github.com/YuminosukeSato/spamensemble/ensemble"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/pkg/log"
)

type app struct {
	configPath string
	out        io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "spamensemble",
		Short:         "Four-model spam ensemble",
		Long:          "spamensemble classifies messages as spam or ham by majority vote of four models\nplus a keyword heuristic, and serves the verdicts over HTTP.",
		Version:       revision,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file, defaults are used when empty")
	root.AddCommand(a.trainCmd(), a.predictCmd(), a.serveCmd(), a.configCmd())
	return root
}

// runtime is everything a command needs, built from the config file.
type runtime struct {
	cfg     *config.Config
	logger  log.Logger
	source  corpus.Source
	manager *ensemble.Manager
	closers []io.Closer
}

func (a *app) setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := log.Setup(cfg.LogOptions())
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	store, err := rt.openStore(ctx)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.source = corpusSource(cfg.Training)
	trainer := ensemble.NewTrainer(cfg.TrainerOptions(logger)...)
	rt.manager = ensemble.NewManager(store, trainer, rt.source, logger)
	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context) (ensemble.Store, error) {
	switch rt.cfg.Models.Backend {
	case "redis":
		store, err := ensemble.DialRedisStore(ctx, rt.cfg.Models.RedisURL, rt.cfg.Models.RedisPrefix)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, store)
		rt.logger.Info("using redis artifact store", log.StoreKey, "redis")
		return store, nil
	case "file", "":
		rt.logger.Info("using file artifact store", log.StoreKey, "file", "dir", rt.cfg.Models.Dir)
		return ensemble.NewFileStore(rt.cfg.Models.Dir), nil
	default:
		return nil, errors.NewValidationError("models.backend", "unknown artifact store", rt.cfg.Models.Backend)
	}
}

func corpusSource(cfg config.TrainingConfig) corpus.Source {
	if cfg.CorpusFile != "" {
		return corpus.FileSource{Path: cfg.CorpusFile}
	}
	return corpus.Static(corpus.Default())
}

// Close releases the runtime resources in reverse order.
func (rt *runtime) Close() error {
	var errs error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}
