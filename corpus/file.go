package corpus

import (
	"context"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/pkg/log"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileSource はYAMLファイルから学習データを読む Source
//
// ファイルは {text, label} のリスト:
//
//	- text: "Claim your lottery prize now!"
//	  label: spam
//	- text: "The meeting moved to 3pm."
//	  label: ham
type FileSource struct {
	Path string
}

// Load は Source を実装する。読み込むたびにファイルを開き直す
func (f FileSource) Load(ctx context.Context) ([]Example, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, errors.Wrapf(err, "read corpus %s", f.Path)
	}
	return Parse(data)
}

// Parse はYAMLのバイト列を学習データに変換して検証する
func Parse(data []byte) ([]Example, error) {
	var examples []Example
	if err := yaml.Unmarshal(data, &examples); err != nil {
		return nil, errors.Wrap(err, "parse corpus yaml")
	}
	if err := Validate(examples); err != nil {
		return nil, err
	}
	return examples, nil
}

// Write は学習データをYAMLとしてファイルに書き出す
func Write(path string, examples []Example) error {
	data, err := yaml.Marshal(examples)
	if err != nil {
		return errors.Wrap(err, "marshal corpus yaml")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write corpus %s", path)
	}
	return nil
}

// Watch はファイルへの書き込みを監視し、読み直した内容で onChange を呼ぶ。
// 不正な内容や onChange のエラーはログに残して監視を続ける。ctx が終わるまで戻らない。
//
// リネームで保存されるとファイル自身の監視は外れるため、親ディレクトリを監視して
// path へのイベントだけを拾う。
func Watch(ctx context.Context, path string, logger log.Logger, onChange func([]Example) error) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "watch corpus %s", path)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create corpus watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "watch corpus %s", path)
	}
	logger = logger.With(log.CorpusPathKey, path)
	logger.Info("watching corpus for changes")

	source := FileSource{Path: path}
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping corpus watcher", "reason", ctx.Err().Error())
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			examples, err := source.Load(ctx)
			if err != nil {
				logger.Warn("failed to reload corpus", err)
				continue
			}
			if err := onChange(examples); err != nil {
				logger.Warn("corpus change handler failed", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("corpus watcher error", err)
		}
	}
}
