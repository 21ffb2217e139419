package preprocessing

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/spamensemble/core/model"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

var _ model.Persistable = (*LabelEncoder)(nil)

// LabelEncoder はscikit-learn互換のラベルエンコーダー
// クラスラベル（文字列）と整数コードの全単射を保持する。
// コードはソート済みクラスの位置なので、{"ham","spam"} では ham=0, spam=1 になる。
type LabelEncoder struct {
	state *model.StateManager

	// classes はソート済みのユニークなクラスラベル
	classes []string
	index   map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
//
// 使用例:
//
//	enc := preprocessing.NewLabelEncoder()
//	err := enc.Fit([]string{"spam", "ham", "spam"})
//	code, err := enc.Encode("spam") // 1
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// Fit はラベル列からクラスを学習する
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	set := make(map[string]struct{})
	for _, l := range labels {
		set[l] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for l := range set {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	e.setClasses(classes)
	e.state.SetDimensions(1, len(labels))
	e.state.SetFitted()
	return nil
}

func (e *LabelEncoder) setClasses(classes []string) {
	e.classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
}

// Encode はラベルを整数コードに変換する
func (e *LabelEncoder) Encode(label string) (int, error) {
	if err := e.state.RequireFitted("LabelEncoder", "Encode"); err != nil {
		return 0, err
	}
	code, ok := e.index[label]
	if !ok {
		return 0, errors.NewValueError("LabelEncoder.Encode", fmt.Sprintf("y contains previously unseen label %q", label))
	}
	return code, nil
}

// EncodeAll はラベル列をまとめて変換する
func (e *LabelEncoder) EncodeAll(labels []string) ([]int, error) {
	codes := make([]int, len(labels))
	for i, l := range labels {
		c, err := e.Encode(l)
		if err != nil {
			return nil, err
		}
		codes[i] = c
	}
	return codes, nil
}

// Decode は整数コードをラベルに戻す
func (e *LabelEncoder) Decode(code int) (string, error) {
	if err := e.state.RequireFitted("LabelEncoder", "Decode"); err != nil {
		return "", err
	}
	if code < 0 || code >= len(e.classes) {
		return "", errors.NewValueError("LabelEncoder.Decode", fmt.Sprintf("code %d out of range [0, %d)", code, len(e.classes)))
	}
	return e.classes[code], nil
}

// Classes は学習済みクラスをコード順に返す
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// IsFitted は学習済みかどうかを返す
func (e *LabelEncoder) IsFitted() bool { return e.state.IsFitted() }

type labelSnapshot struct {
	Classes []string
	State   model.ModelState
}

// MarshalBinary は encoding.BinaryMarshaler を実装する
func (e *LabelEncoder) MarshalBinary() ([]byte, error) {
	if err := e.state.RequireFitted("LabelEncoder", "MarshalBinary"); err != nil {
		return nil, err
	}
	return model.EncodeGob(labelSnapshot{Classes: e.classes, State: e.state.GetState()})
}

// UnmarshalBinary は encoding.BinaryUnmarshaler を実装する
func (e *LabelEncoder) UnmarshalBinary(data []byte) error {
	var snap labelSnapshot
	if err := model.DecodeGob(data, &snap); err != nil {
		return err
	}
	if !sort.StringsAreSorted(snap.Classes) {
		return errors.NewValueError("LabelEncoder.UnmarshalBinary", "classes are not sorted")
	}
	e.state = model.NewStateManager()
	e.state.SetState(snap.State)
	e.setClasses(snap.Classes)
	return nil
}
