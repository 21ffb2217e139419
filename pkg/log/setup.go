package log

import (
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	serrors "github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// Backend selects the implementation behind Logger.
type Backend string

const (
	BackendZerolog Backend = "zerolog"
	BackendSlog    Backend = "slog"
)

// Options configures Setup.
type Options struct {
	Level      string
	Backend    Backend
	File       string // empty means stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup builds the process logger. With a File the output is rotated by lumberjack.
// The slog backend also becomes slog's default logger. Estimator warnings
// (errors.Warn) are routed into the returned logger until the closer is closed.
func Setup(opts Options) (Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, errors.Wrap(err, "setup logger")
	}

	var w io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		w, closer = lj, lj
	}

	var logger Logger
	switch opts.Backend {
	case BackendSlog:
		sl := slog.New(NewSlogHandler(w, level))
		slog.SetDefault(sl)
		logger = NewSlogLogger(sl)
	case BackendZerolog, "":
		logger = NewZerologLogger(w, level)
	default:
		return nil, nil, errors.Newf("setup logger: unknown backend %q", opts.Backend)
	}

	RouteWarnings(logger)
	return logger, closerFunc(func() error {
		serrors.SetZerologWarnFunc(nil)
		return closer.Close()
	}), nil
}

// RouteWarnings sends errors.Warn output (convergence warnings) to logger.
func RouteWarnings(logger Logger) {
	serrors.SetZerologWarnFunc(func(w error) {
		logger.Warn("estimator warning", ErrAttrKey, w, ErrorCodeKey, ErrorConvergence)
	})
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
