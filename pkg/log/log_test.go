package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	serrors "github.com/YuminosukeSato/spamensemble/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Error("error message", fmt.Errorf("test error"), ErrorCodeKey, ErrorStorage)

	if buffer.Len() == 0 {
		t.Fatal("Expected log output, got empty string")
	}
	for _, msg := range []string{"debug message", "info message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrAttrKey, "test error") {
		t.Error("leading error should be logged under the error key")
	}
}

func TestTestLoggerLevelFilter(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelWarn)
	testLogger.Info("hidden")
	testLogger.Warn("shown")

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0]["message"] != "shown" {
		t.Errorf("unexpected entries: %v", entries)
	}
	if testLogger.Enabled(context.Background(), LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
}

func TestTestLoggerWith(t *testing.T) {
	base, _ := NewTestLogger(LevelDebug)
	child := base.With(ModelNameKey, "svm")
	child.Info("fitted", SamplesKey, 40)
	base.Info("plain")

	if !base.ContainsField(ModelNameKey, "svm") {
		t.Error("child logger field missing")
	}
	entries, _ := base.GetLogEntries()
	if _, ok := entries[1][ModelNameKey]; ok {
		t.Error("parent logger must not inherit child fields")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo).With(ModelNameKey, "logistic_regression")

	logger.Debug("suppressed")
	logger.Info("model fitted", AccuracyKey, 0.9, SamplesKey, 40)
	logger.Error("fit failed", serrors.NewTrainingError("svm", "fit", errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}
	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first[ModelNameKey] != "logistic_regression" || first[AccuracyKey] != 0.9 {
		t.Errorf("unexpected fields: %v", first)
	}
	if !strings.Contains(lines[1], "boom") {
		t.Errorf("error line should contain the cause: %s", lines[1])
	}
}

func TestSlogLoggerAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slogFor(&buf))

	logger.Error("store failed", serrors.NewStorageError("save", "svm_model", errors.New("disk full")))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["severity"] != "ERROR" || entry["message"] != "store failed" {
		t.Errorf("unexpected record: %v", entry)
	}
	if _, ok := entry[StacktraceAttrKey]; !ok {
		t.Errorf("expected %q attribute: %v", StacktraceAttrKey, entry)
	}
}

func TestSetupWithFileRoutesWarnings(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ensemble.log")
	logger, closer, err := Setup(Options{Level: "info", Backend: BackendZerolog, File: file, MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Info("hello")
	serrors.Warn(serrors.NewConvergenceWarning("SVC", 10, ""))

	if _, _, err := Setup(Options{Backend: "logrus"}); err == nil {
		t.Error("unknown backend should fail")
	}
}
