// Package corpus は学習用のラベル付きメッセージを提供します。
//
// 同梱データ（Default）、YAMLファイル（FileSource）、任意のスライス（Static）を
// 同じ Source インターフェースで扱えるので、学習側はデータの出どころを知らずに済みます。
package corpus

import (
	"context"
	"fmt"

	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// Label はメッセージのクラスラベル
type Label string

const (
	Spam Label = "spam"
	Ham  Label = "ham"
)

// Valid はラベルが spam か ham なら true を返す
func (l Label) Valid() bool { return l == Spam || l == Ham }

// Example はラベル付きの学習メッセージ
type Example struct {
	Text  string `yaml:"text" json:"text"`
	Label Label  `yaml:"label" json:"label"`
}

// Source は学習データの供給元
type Source interface {
	Load(ctx context.Context) ([]Example, error)
}

// Default は同梱の50件（スパム25件、通常メール25件）のコピーを返す
func Default() []Example {
	return append([]Example(nil), bundled...)
}

// Texts は本文だけを取り出す
func Texts(examples []Example) []string {
	out := make([]string, len(examples))
	for i, e := range examples {
		out[i] = e.Text
	}
	return out
}

// Labels はラベルを文字列として取り出す
func Labels(examples []Example) []string {
	out := make([]string, len(examples))
	for i, e := range examples {
		out[i] = string(e.Label)
	}
	return out
}

// Validate は空のデータ、空の本文、未知のラベルを検出する
func Validate(examples []Example) error {
	if len(examples) == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	seen := make(map[Label]bool, 2)
	for i, e := range examples {
		if e.Text == "" {
			return errors.NewValidationError(fmt.Sprintf("examples[%d].text", i), "must not be empty", e.Text)
		}
		if !e.Label.Valid() {
			return errors.NewValidationError(fmt.Sprintf("examples[%d].label", i), "must be 'spam' or 'ham'", e.Label)
		}
		seen[e.Label] = true
	}
	if !seen[Spam] || !seen[Ham] {
		return errors.NewValueError("corpus.Validate", "examples must contain both spam and ham")
	}
	return nil
}

// Static はメモリ上のスライスをそのまま返す Source
type Static []Example

// Load は Source を実装する
func (s Static) Load(ctx context.Context) ([]Example, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return append([]Example(nil), s...), nil
}
