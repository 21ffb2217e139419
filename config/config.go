// Package config loads the YAML configuration of the spam ensemble.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/spamensemble/ensemble"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/pkg/log"
	"github.com/YuminosukeSato/spamensemble/sklearn/feature_extraction"
	"github.com/YuminosukeSato/spamensemble/sklearn/linear_model"
	"github.com/YuminosukeSato/spamensemble/sklearn/pipeline"
	"github.com/YuminosukeSato/spamensemble/sklearn/svm"
)

// Config is the whole configuration file.
type Config struct {
	Models     ModelsConfig     `yaml:"models"`
	Training   TrainingConfig   `yaml:"training"`
	Vectorizer VectorizerConfig `yaml:"vectorizer"`
	Logistic   LogisticConfig   `yaml:"logistic"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	SVM        SVMConfig        `yaml:"svm"`
	Server     ServerConfig     `yaml:"server"`
	History    HistoryConfig    `yaml:"history"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ModelsConfig selects where the artifact bundle lives.
type ModelsConfig struct {
	Backend     string `yaml:"backend"` // file or redis
	Dir         string `yaml:"dir"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// TrainingConfig controls the split and the corpus.
type TrainingConfig struct {
	TestSize    float64 `yaml:"test_size"`
	Seed        int64   `yaml:"seed"`
	CorpusFile  string  `yaml:"corpus_file"` // empty uses the bundled corpus
	WatchCorpus bool    `yaml:"watch_corpus"`
}

// VectorizerConfig configures the shared vectorizer.
type VectorizerConfig struct {
	MaxFeatures int `yaml:"max_features"`
	NgramMin    int `yaml:"ngram_min"`
	NgramMax    int `yaml:"ngram_max"`
}

// LogisticConfig configures the logistic member.
type LogisticConfig struct {
	C           float64 `yaml:"c"`
	MaxIter     int     `yaml:"max_iter"`
	ClassWeight string  `yaml:"class_weight"`
}

// PipelineConfig configures the pipeline member and its private vectorizer.
type PipelineConfig struct {
	MaxFeatures int     `yaml:"max_features"`
	NgramMin    int     `yaml:"ngram_min"`
	NgramMax    int     `yaml:"ngram_max"`
	C           float64 `yaml:"c"`
	MaxIter     int     `yaml:"max_iter"`
}

// SVMConfig configures the SVM member. Gamma is "scale", "auto" or a positive number.
type SVMConfig struct {
	C           float64 `yaml:"c"`
	Gamma       string  `yaml:"gamma"`
	ClassWeight string  `yaml:"class_weight"`
	Tol         float64 `yaml:"tol"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	RateLimit       float64       `yaml:"rate_limit"` // detect requests per second per client, 0 disables
	CacheSize       int           `yaml:"cache_size"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	MaxContent      int           `yaml:"max_content"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HistoryConfig configures the detection log.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DSN          string `yaml:"dsn"` // sqlite file path or postgres:// url
	ContentLimit int    `yaml:"content_limit"`
	ListLimit    int    `yaml:"list_limit"`
}

// LoggingConfig maps onto log.Options.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Backend    string `yaml:"backend"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Backend:     "file",
			Dir:         "models",
			RedisPrefix: ensemble.DefaultRedisPrefix,
		},
		Training: TrainingConfig{
			TestSize: ensemble.DefaultTestSize,
			Seed:     ensemble.DefaultSeed,
		},
		Vectorizer: VectorizerConfig{MaxFeatures: ensemble.DefaultMaxFeatures, NgramMin: 1, NgramMax: 2},
		Logistic:   LogisticConfig{C: 1.0, MaxIter: 1000, ClassWeight: "balanced"},
		Pipeline: PipelineConfig{
			MaxFeatures: pipeline.DefaultMaxFeatures,
			NgramMin:    1,
			NgramMax:    3,
			C:           0.5,
			MaxIter:     1000,
		},
		SVM: SVMConfig{C: 1.0, Gamma: "scale", ClassWeight: "balanced", Tol: 1e-3},
		Server: ServerConfig{
			Listen:          ":8080",
			RateLimit:       10,
			CacheSize:       1000,
			CacheTTL:        10 * time.Minute,
			MaxContent:      10000,
			ShutdownTimeout: 10 * time.Second,
		},
		History: HistoryConfig{
			Enabled:      true,
			DSN:          "spamensemble.db",
			ContentLimit: 500,
			ListLimit:    100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Backend:    string(log.BackendZerolog),
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

// Load reads path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is given by the operator
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(field, format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%s: "+format, append([]any{field}, args...)...))
	}

	switch c.Models.Backend {
	case "file":
		if c.Models.Dir == "" {
			add("models.dir", "must be set for the file backend")
		}
	case "redis":
		if c.Models.RedisURL == "" {
			add("models.redis_url", "must be set for the redis backend")
		}
	default:
		add("models.backend", "must be 'file' or 'redis', got %q", c.Models.Backend)
	}

	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		add("training.test_size", "must be in (0, 1), got %v", c.Training.TestSize)
	}
	if c.Training.WatchCorpus && c.Training.CorpusFile == "" {
		add("training.watch_corpus", "needs training.corpus_file")
	}

	checkNgram := func(prefix string, maxFeatures, lo, hi int) {
		if maxFeatures < 0 {
			add(prefix+".max_features", "must not be negative")
		}
		if lo < 1 || hi < lo {
			add(prefix+".ngram_min/ngram_max", "must satisfy 1 <= min <= max, got %d..%d", lo, hi)
		}
	}
	checkNgram("vectorizer", c.Vectorizer.MaxFeatures, c.Vectorizer.NgramMin, c.Vectorizer.NgramMax)
	checkNgram("pipeline", c.Pipeline.MaxFeatures, c.Pipeline.NgramMin, c.Pipeline.NgramMax)

	checkPositive := func(field string, v float64) {
		if v <= 0 {
			add(field, "must be positive, got %v", v)
		}
	}
	checkPositive("logistic.c", c.Logistic.C)
	checkPositive("logistic.max_iter", float64(c.Logistic.MaxIter))
	checkPositive("pipeline.c", c.Pipeline.C)
	checkPositive("pipeline.max_iter", float64(c.Pipeline.MaxIter))
	checkPositive("svm.c", c.SVM.C)
	checkPositive("svm.tol", c.SVM.Tol)

	checkWeight := func(field, v string) {
		if v != "balanced" && v != "none" {
			add(field, "must be 'balanced' or 'none', got %q", v)
		}
	}
	checkWeight("logistic.class_weight", c.Logistic.ClassWeight)
	checkWeight("svm.class_weight", c.SVM.ClassWeight)
	if _, _, err := c.SVM.gamma(); err != nil {
		add("svm.gamma", "%v", err)
	}

	if c.Server.Listen == "" {
		add("server.listen", "must be set")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.CacheSize < 0 {
		add("server.cache_size", "must not be negative")
	}
	checkPositive("server.max_content", float64(c.Server.MaxContent))

	if c.History.Enabled {
		if c.History.DSN == "" {
			add("history.dsn", "must be set when history is enabled")
		}
		checkPositive("history.content_limit", float64(c.History.ContentLimit))
		checkPositive("history.list_limit", float64(c.History.ListLimit))
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}
	switch log.Backend(c.Logging.Backend) {
	case log.BackendZerolog, log.BackendSlog:
	default:
		add("logging.backend", "must be 'zerolog' or 'slog', got %q", c.Logging.Backend)
	}

	return result.ErrorOrNil()
}

// gamma returns the SVM gamma as a mode or a fixed value.
func (s SVMConfig) gamma() (mode string, value float64, err error) {
	switch strings.ToLower(s.Gamma) {
	case "scale", "auto":
		return strings.ToLower(s.Gamma), 0, nil
	}
	v, err := strconv.ParseFloat(s.Gamma, 64)
	if err != nil || v <= 0 {
		return "", 0, errors.Newf("must be 'scale', 'auto' or a positive number, got %q", s.Gamma)
	}
	return "value", v, nil
}

// TrainerOptions turns the model sections into trainer options.
func (c *Config) TrainerOptions(logger log.Logger) []ensemble.TrainerOption {
	svmOpts := []svm.Option{
		svm.WithC(c.SVM.C),
		svm.WithClassWeight(c.SVM.ClassWeight),
		svm.WithTol(c.SVM.Tol),
	}
	if mode, value, err := c.SVM.gamma(); err == nil {
		if mode == "value" {
			svmOpts = append(svmOpts, svm.WithGamma(value))
		} else {
			svmOpts = append(svmOpts, svm.WithGammaMode(mode))
		}
	}

	return []ensemble.TrainerOption{
		ensemble.WithTestSize(c.Training.TestSize),
		ensemble.WithSeed(c.Training.Seed),
		ensemble.WithTrainerLogger(logger),
		ensemble.WithVectorizerOptions(
			feature_extraction.WithMaxFeatures(c.Vectorizer.MaxFeatures),
			feature_extraction.WithNgramRange(c.Vectorizer.NgramMin, c.Vectorizer.NgramMax),
		),
		ensemble.WithLogisticOptions(
			linear_model.WithLRC(c.Logistic.C),
			linear_model.WithLRMaxIter(c.Logistic.MaxIter),
			linear_model.WithLRClassWeight(c.Logistic.ClassWeight),
		),
		ensemble.WithPipelineOptions(
			pipeline.WithVectorizerOptions(
				feature_extraction.WithMaxFeatures(c.Pipeline.MaxFeatures),
				feature_extraction.WithNgramRange(c.Pipeline.NgramMin, c.Pipeline.NgramMax),
			),
			pipeline.WithClassifierOptions(
				linear_model.WithLRC(c.Pipeline.C),
				linear_model.WithLRMaxIter(c.Pipeline.MaxIter),
			),
		),
		ensemble.WithSVMOptions(svmOpts...),
	}
}

// LogOptions converts the logging section.
func (c *Config) LogOptions() log.Options {
	return log.Options{
		Level:      c.Logging.Level,
		Backend:    log.Backend(c.Logging.Backend),
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}
