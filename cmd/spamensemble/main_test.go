package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/spamensemble/config"
	"github.com/YuminosukeSato/spamensemble/ensemble"
)

// writeConfig stores a quiet test configuration in a temp dir.
func writeConfig(t *testing.T) (path string, cfg *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg = config.DefaultConfig()
	cfg.Models.Dir = filepath.Join(dir, "models")
	cfg.History.Enabled = false
	cfg.Logging.Level = "error"
	cfg.Vectorizer.MaxFeatures = 200
	path = filepath.Join(dir, "config.yml")
	require.NoError(t, cfg.Save(path))
	return path, cfg
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTrainCommand(t *testing.T) {
	path, cfg := writeConfig(t)
	chart := filepath.Join(t.TempDir(), "accuracy.png")

	out, err := run(t, "--config", path, "train", "--chart", chart)
	require.NoError(t, err)
	for _, name := range ensemble.MemberNames {
		assert.Contains(t, out, ensemble.DisplayName(name))
	}
	assert.Contains(t, out, "chart saved to")
	_, err = os.Stat(chart)
	assert.NoError(t, err)

	for _, name := range ensemble.ArtifactNames {
		_, err := os.Stat(filepath.Join(cfg.Models.Dir, name+".gob"))
		assert.NoError(t, err, name)
	}
}

func TestTrainCommandJSON(t *testing.T) {
	path, _ := writeConfig(t)
	out, err := run(t, "--config", path, "train", "--json")
	require.NoError(t, err)

	var rep ensemble.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 40, rep.TrainSize)
	assert.Equal(t, 10, rep.TestSize)
	assert.Len(t, rep.Accuracy, 4)
	assert.NotEmpty(t, rep.BundleID)
}

func TestPredictCommand(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := run(t, "--config", path, "predict", "--json", "--email", "promo@example.com",
		"--content", "URGENT! You have won a FREE prize. Click here now to claim your cash!")
	require.NoError(t, err)

	var res ensemble.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Contains(t, []string{"SPAM", "HAM"}, res.FinalPrediction)
	assert.Equal(t, 4, res.SpamVotes+res.HamVotes)
	assert.Len(t, res.ModelResults, 4)

	// positional content and the text output
	out, err = run(t, "--config", path, "predict", "see", "you", "at", "lunch")
	require.NoError(t, err)
	assert.Contains(t, out, "votes spam=")
}

func TestPredictCommandRequiresContent(t *testing.T) {
	path, _ := writeConfig(t)
	_, err := run(t, "--config", path, "predict", "--email", "a@b.com")
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yml")
	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), loaded)

	out, err = run(t, "--config", path, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("training:\n  test_size: 2\n"), 0o600))
	_, err = run(t, "--config", bad, "config", "check")
	assert.Error(t, err)
}

func TestUnknownStoreBackend(t *testing.T) {
	path, _ := writeConfig(t)
	rt, err := (&app{configPath: path, out: &bytes.Buffer{}}).setup(t.Context())
	require.NoError(t, err)
	defer rt.Close()

	rt.cfg.Models.Backend = "s3"
	_, err = rt.openStore(t.Context())
	assert.ErrorContains(t, err, "models.backend")
}
