package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/spamensemble/corpus"
	"github.com/YuminosukeSato/spamensemble/ensemble"
	"github.com/YuminosukeSato/spamensemble/pkg/log"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.2, cfg.Training.TestSize)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 5000, cfg.Vectorizer.MaxFeatures)
	assert.Equal(t, 3000, cfg.Pipeline.MaxFeatures)
	assert.Equal(t, 10000, cfg.Server.MaxContent)
	assert.Equal(t, 500, cfg.History.ContentLimit)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `
models:
  backend: redis
  redis_url: redis://localhost:6379/0
training:
  seed: 7
svm:
  gamma: "0.25"
server:
  listen: ":9090"
  cache_ttl: 30s
logging:
  level: debug
  backend: slog
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Models.Backend)
	assert.Equal(t, int64(7), cfg.Training.Seed)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.CacheTTL)
	// untouched sections keep their defaults
	assert.Equal(t, 0.2, cfg.Training.TestSize)
	assert.Equal(t, "balanced", cfg.Logistic.ClassWeight)

	opts := cfg.LogOptions()
	assert.Equal(t, log.BackendSlog, opts.Backend)
	assert.Equal(t, "debug", opts.Level)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("models: [unterminated"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yml")
	require.NoError(t, os.WriteFile(invalid, []byte("training:\n  test_size: 1.5\n"), 0o600))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "training.test_size")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Models.Backend = "s3"
	cfg.Training.TestSize = 0
	cfg.Vectorizer.NgramMin = 3
	cfg.SVM.Gamma = "wide"
	cfg.Logistic.ClassWeight = "heavy"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 6)
	for _, field := range []string{"models.backend", "training.test_size", "vectorizer.ngram", "svm.gamma", "logistic.class_weight", "logging.level"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestValidateConditionalFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Training.WatchCorpus = true
	assert.ErrorContains(t, cfg.Validate(), "training.watch_corpus")

	cfg = DefaultConfig()
	cfg.History.Enabled = false
	cfg.History.DSN = ""
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Models.Backend = "redis"
	assert.ErrorContains(t, cfg.Validate(), "models.redis_url")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg := DefaultConfig()
	cfg.Server.Listen = "127.0.0.1:8081"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSVMGamma(t *testing.T) {
	tests := []struct {
		gamma string
		mode  string
		value float64
		ok    bool
	}{
		{"scale", "scale", 0, true},
		{"AUTO", "auto", 0, true},
		{"0.5", "value", 0.5, true},
		{"-1", "", 0, false},
		{"wide", "", 0, false},
	}
	for _, tt := range tests {
		mode, value, err := SVMConfig{Gamma: tt.gamma}.gamma()
		if !tt.ok {
			assert.Error(t, err, tt.gamma)
			continue
		}
		require.NoError(t, err, tt.gamma)
		assert.Equal(t, tt.mode, mode)
		assert.Equal(t, tt.value, value)
	}
}

func TestTrainerOptionsTrain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vectorizer.MaxFeatures = 50
	cfg.Training.TestSize = 0.3

	trainer := ensemble.NewTrainer(cfg.TrainerOptions(log.Nop())...)
	b, report, err := trainer.Train(context.Background(), corpus.Default())
	require.NoError(t, err)
	assert.Equal(t, 15, report.TestSize)
	assert.LessOrEqual(t, b.Vectorizer.NFeatures(), 50)
	assert.Len(t, report.Accuracy, 4)
}
