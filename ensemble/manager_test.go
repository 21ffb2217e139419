package ensemble

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/YuminosukeSato/spamensemble/corpus"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/pkg/log"
)

// memStore is an in-memory Store that counts calls and can fail on demand.
type memStore struct {
	mu      sync.Mutex
	bundle  *Bundle
	loadErr error
	saveErr error
	loads   int
	saves   int
}

func (s *memStore) Save(_ context.Context, b *Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.bundle = b
	return nil
}

func (s *memStore) Load(_ context.Context) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.bundle == nil {
		return nil, errors.WithStack(errors.ErrNotFound)
	}
	return s.bundle, nil
}

// failingSource always fails to load.
type failingSource struct{}

func (failingSource) Load(context.Context) ([]corpus.Example, error) {
	return nil, errors.New("corpus unavailable")
}

func TestManager_PredictBeforeReady(t *testing.T) {
	m := NewManager(&memStore{}, NewTrainer(), corpus.Static(corpus.Default()), nil)
	if m.IsReady() {
		t.Fatal("new manager reports ready")
	}
	if _, err := m.Predict(context.Background(), "a@b.c", "hello"); !errors.Is(err, errors.ErrNotTrained) {
		t.Errorf("Predict() error = %v, want ErrNotTrained", err)
	}
}

func TestManager_EnsureReady_TrainsWhenStoreEmpty(t *testing.T) {
	store := &memStore{}
	logger, _ := log.NewTestLogger(log.LevelInfo)
	m := NewManager(store, NewTrainer(), corpus.Static(corpus.Default()), logger)
	ctx := context.Background()

	if err := m.EnsureReady(ctx); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}
	if !m.IsReady() {
		t.Fatal("manager not ready after EnsureReady")
	}
	if store.saves != 1 || store.bundle != m.Current() {
		t.Errorf("saves = %d, stored bundle is live: %v", store.saves, store.bundle == m.Current())
	}
	if !logger.ContainsMessage("no stored bundle") {
		t.Error("missing log for the train-on-empty path")
	}

	// second call is a no-op
	if err := m.EnsureReady(ctx); err != nil {
		t.Fatal(err)
	}
	if store.loads != 1 || store.saves != 1 {
		t.Errorf("second EnsureReady touched the store: loads=%d saves=%d", store.loads, store.saves)
	}

	res, err := m.Predict(ctx, "alice@company.com", "Meeting notes attached")
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if res.BundleID != m.Current().ID {
		t.Errorf("result from bundle %s, live is %s", res.BundleID, m.Current().ID)
	}
}

func TestManager_EnsureReady_LoadsStoredBundle(t *testing.T) {
	b, _ := trainedBundle(t)
	store := &memStore{bundle: b}
	// a failing source proves no training happens
	m := NewManager(store, NewTrainer(), failingSource{}, nil)
	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}
	if m.Current() != b {
		t.Error("stored bundle not published")
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0", store.saves)
	}
}

func TestManager_EnsureReady_RetrainsDamagedStore(t *testing.T) {
	b, _ := trainedBundle(t)
	blobs, err := EncodeBundle(b)
	if err != nil {
		t.Fatal(err)
	}
	delete(blobs, ArtifactSVM)
	_, loadErr := DecodeBundle(blobs)
	if !errors.Is(loadErr, errors.ErrDamagedBundle) {
		t.Fatalf("DecodeBundle() error = %v, want ErrDamagedBundle", loadErr)
	}

	store := &memStore{loadErr: loadErr}
	m := NewManager(store, NewTrainer(), corpus.Static(corpus.Default()), nil)
	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}
	if !m.IsReady() || store.saves != 1 {
		t.Errorf("ready=%v saves=%d", m.IsReady(), store.saves)
	}
}

func TestManager_EnsureReady_ReadFailureKeepsStore(t *testing.T) {
	store := &memStore{loadErr: errors.NewStorageError("load", ArtifactSVM, errors.New("input/output error"))}
	m := NewManager(store, NewTrainer(), corpus.Static(corpus.Default()), nil)
	err := m.EnsureReady(context.Background())
	var storageErr *errors.StorageError
	if !errors.As(err, &storageErr) || storageErr.Op != "load" {
		t.Fatalf("EnsureReady() error = %v, want load StorageError", err)
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0", store.saves)
	}
	if m.IsReady() {
		t.Error("manager ready after a failed load")
	}
}

func TestManager_EnsureReady_UnreadableArtifactKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	b, _ := trainedBundle(t)
	fs := NewFileStore(dir)
	if err := fs.Save(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	// an artifact path that is a directory fails to read
	path := filepath.Join(dir, ArtifactLinear+artifactExt)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0o750); err != nil {
		t.Fatal(err)
	}

	m := NewManager(fs, NewTrainer(), corpus.Static(corpus.Default()), nil)
	err := m.EnsureReady(context.Background())
	if err == nil || errors.Is(err, errors.ErrDamagedBundle) {
		t.Fatalf("EnsureReady() error = %v, want a plain read failure", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, ArtifactSVM+artifactExt)); statErr != nil {
		t.Errorf("stored set was replaced: %v", statErr)
	}
	if info, statErr := os.Stat(path); statErr != nil || !info.IsDir() {
		t.Errorf("unreadable artifact was touched: %v", statErr)
	}
}

func TestManager_EnsureReady_OtherLoadError(t *testing.T) {
	store := &memStore{loadErr: context.DeadlineExceeded}
	m := NewManager(store, NewTrainer(), corpus.Static(corpus.Default()), nil)
	if err := m.EnsureReady(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("EnsureReady() error = %v", err)
	}
	if m.IsReady() {
		t.Error("manager ready after a failed load")
	}
}

func TestManager_TrainReplacesBundle(t *testing.T) {
	b, _ := trainedBundle(t)
	store := &memStore{bundle: b}
	m := NewManager(store, NewTrainer(), corpus.Static(corpus.Default()), nil)
	ctx := context.Background()
	if err := m.EnsureReady(ctx); err != nil {
		t.Fatal(err)
	}

	report, err := m.Train(ctx)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if report.BundleID == b.ID || m.Current().ID != report.BundleID {
		t.Errorf("live bundle %s, report %s, old %s", m.Current().ID, report.BundleID, b.ID)
	}
	if store.bundle.ID != report.BundleID {
		t.Error("new bundle was not persisted")
	}
	if len(report.Accuracy) != 4 {
		t.Errorf("report has %d accuracies", len(report.Accuracy))
	}
}

func TestManager_TrainFailureKeepsOldBundle(t *testing.T) {
	b, _ := trainedBundle(t)
	ctx := context.Background()

	t.Run("save fails", func(t *testing.T) {
		store := &memStore{bundle: b}
		m := NewManager(store, NewTrainer(), corpus.Static(corpus.Default()), nil)
		if err := m.EnsureReady(ctx); err != nil {
			t.Fatal(err)
		}
		store.saveErr = errors.NewStorageError("save", "disk", errors.New("full"))

		_, err := m.Train(ctx)
		var storageErr *errors.StorageError
		if !errors.As(err, &storageErr) || storageErr.Op != "save" {
			t.Fatalf("Train() error = %v, want save StorageError", err)
		}
		var te *errors.TrainingError
		if errors.As(err, &te) {
			t.Errorf("save failure reported as TrainingError: %v", err)
		}
		if m.Current() != b {
			t.Error("unpersisted bundle was published")
		}
	})

	t.Run("source fails", func(t *testing.T) {
		m := NewManager(&memStore{bundle: b}, NewTrainer(), failingSource{}, nil)
		if err := m.EnsureReady(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := m.Train(ctx); err == nil {
			t.Fatal("expected error")
		}
		if m.Current() != b {
			t.Error("live bundle changed after a failed retrain")
		}
	})

	t.Run("invalid corpus", func(t *testing.T) {
		m := NewManager(&memStore{bundle: b}, NewTrainer(), corpus.Static(corpus.Default()), nil)
		if err := m.EnsureReady(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := m.TrainOn(ctx, []corpus.Example{{Text: "x", Label: corpus.Spam}}); err == nil {
			t.Fatal("expected error")
		}
		if m.Current() != b {
			t.Error("live bundle changed after a failed retrain")
		}
	})
}

func TestManager_ConcurrentPredictDuringTrain(t *testing.T) {
	b, _ := trainedBundle(t)
	m := NewManager(&memStore{bundle: b}, NewTrainer(), corpus.Static(corpus.Default()), nil)
	ctx := context.Background()
	if err := m.EnsureReady(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res, err := m.Predict(ctx, "bob@gmail.com", "free money, click now")
				if err != nil {
					errs <- err
					return
				}
				if len(res.ModelResults) != 4 {
					errs <- errors.Newf("got %d model results", len(res.ModelResults))
					return
				}
			}
		}()
	}

	_, trainErr := m.Train(ctx)
	close(stop)
	wg.Wait()
	close(errs)
	if trainErr != nil {
		t.Fatalf("Train() error = %v", trainErr)
	}
	for err := range errs {
		t.Errorf("Predict() during Train: %v", err)
	}
}
