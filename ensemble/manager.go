package ensemble

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/YuminosukeSato/spamensemble/corpus"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/pkg/log"
)

// Manager owns the live bundle of a process. Build one at start-up and
// share it. Predict reads the current bundle without locking; EnsureReady
// and Train are serialised and replace the bundle with a single pointer swap.
type Manager struct {
	store   Store
	trainer *Trainer
	source  corpus.Source
	logger  log.Logger

	mu      sync.Mutex // serialises initialisation and training
	current atomic.Pointer[Bundle]
}

// NewManager wires a manager. The bundle is not loaded until EnsureReady.
func NewManager(store Store, trainer *Trainer, source corpus.Source, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{
		store:   store,
		trainer: trainer,
		source:  source,
		logger:  logger.With(log.ComponentKey, "manager"),
	}
}

// IsReady reports whether a bundle is loaded.
func (m *Manager) IsReady() bool { return m.current.Load() != nil }

// Current returns the live bundle or nil.
func (m *Manager) Current() *Bundle { return m.current.Load() }

// EnsureReady loads the stored bundle, or trains and persists one from the
// corpus when the store has none or holds a damaged set. Any other load
// error is returned as is. Once a bundle is
// live further calls return immediately.
func (m *Manager) EnsureReady(ctx context.Context) error {
	if m.IsReady() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IsReady() {
		return nil
	}

	b, err := m.store.Load(ctx)
	if err == nil {
		m.current.Store(b)
		m.logger.Info("bundle loaded",
			log.OperationKey, log.OperationLoad,
			log.BundleIDKey, b.ID,
		)
		return nil
	}
	switch {
	case errors.Is(err, errors.ErrNotFound):
		m.logger.Info("no stored bundle, training from corpus")
	case errors.Is(err, errors.ErrDamagedBundle):
		m.logger.Warn("stored bundle damaged, retraining", err)
	default:
		// I/O and network failures leave the stored set alone
		m.logger.Error("loading bundle failed", err)
		return err
	}
	_, err = m.retrainLocked(ctx)
	return err
}

// Train retrains from the corpus source and replaces the live bundle.
// The previous bundle stays live if anything fails.
func (m *Manager) Train(ctx context.Context) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retrainLocked(ctx)
}

// TrainOn retrains from the given examples, for callers that already hold
// a fresh corpus such as the corpus file watcher.
func (m *Manager) TrainOn(ctx context.Context, examples []corpus.Example) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trainLocked(ctx, examples)
}

func (m *Manager) retrainLocked(ctx context.Context) (Report, error) {
	examples, err := m.source.Load(ctx)
	if err != nil {
		return Report{}, errors.NewTrainingError("corpus", log.PhaseInitialize, err)
	}
	return m.trainLocked(ctx, examples)
}

// trainLocked persists before publishing, so the store never lags behind
// the bundle being served.
func (m *Manager) trainLocked(ctx context.Context, examples []corpus.Example) (Report, error) {
	b, report, err := m.trainer.Train(ctx, examples)
	if err != nil {
		m.logger.Error("training failed", err)
		return Report{}, err
	}
	if err := m.store.Save(ctx, b); err != nil {
		m.logger.Error("saving bundle failed", err, log.PhaseKey, log.PhasePersist, log.BundleIDKey, b.ID)
		return Report{}, err
	}
	m.current.Store(b)
	m.logger.Info("bundle published",
		log.OperationKey, log.OperationSave,
		log.BundleIDKey, b.ID,
	)
	return report, nil
}

// Predict classifies a message with the live bundle. It fails with
// ErrNotTrained until EnsureReady or Train has succeeded.
func (m *Manager) Predict(_ context.Context, email, content string) (*Result, error) {
	b := m.current.Load()
	if b == nil {
		return nil, errors.WithStack(errors.ErrNotTrained)
	}
	res, err := b.Predict(email, content)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("message classified",
		log.OperationKey, log.OperationPredict,
		log.BundleIDKey, b.ID,
		log.VerdictKey, res.FinalPrediction,
		log.SpamVotesKey, res.SpamVotes,
		log.HamVotesKey, res.HamVotes,
		log.ConfidenceKey, res.Confidence,
	)
	return res, nil
}
