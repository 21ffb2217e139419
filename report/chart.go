// Package report は学習結果の可視化を提供します。
package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/spamensemble/ensemble"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// サポートする出力形式
var supportedFormats = map[string]bool{".png": true, ".svg": true, ".pdf": true, ".jpg": true, ".jpeg": true}

// AccuracyChart はモデルごとの精度を棒グラフにします。
// バーの順序は投票順(ensemble.MemberNames)で、レポートにないモデルは除外されます。
func AccuracyChart(r ensemble.Report) (*plot.Plot, error) {
	names, values := accuracySeries(r)
	if len(values) == 0 {
		return nil, errors.NewValueError("AccuracyChart", "report has no accuracy values")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Test accuracy (train=%d, test=%d)", r.TrainSize, r.TestSize)
	p.Y.Label.Text = "Accuracy"
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, errors.Wrap(err, "build bar chart")
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

// SaveAccuracyChart は精度グラフを path に保存します。形式は拡張子で決まります。
func SaveAccuracyChart(r ensemble.Report, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedFormats[ext] {
		return errors.NewValidationError("path", "unsupported chart format", ext)
	}
	p, err := AccuracyChart(r)
	if err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.NewStorageError("save", path, err)
	}
	return nil
}

// accuracySeries は既知のメンバーを投票順に、未知の名前を辞書順に並べます。
func accuracySeries(r ensemble.Report) ([]string, plotter.Values) {
	seen := make(map[string]bool, len(r.Accuracy))
	var names []string
	var values plotter.Values
	for _, name := range ensemble.MemberNames {
		if acc, ok := r.Accuracy[name]; ok {
			names = append(names, ensemble.DisplayName(name))
			values = append(values, acc)
			seen[name] = true
		}
	}
	var rest []string
	for name := range r.Accuracy {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		names = append(names, name)
		values = append(values, r.Accuracy[name])
	}
	return names, values
}
