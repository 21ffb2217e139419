package model

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// SaveModelToWriter はモデルの状態をgob形式でio.Writerに書き出す
//
// パラメータ:
//   - model: 保存する値（エクスポートされたフィールドを持つ構造体）
//   - w: 保存先のWriter
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからgob形式のモデル状態を読み込む
//
// パラメータ:
//   - model: 読み込み先（ポインタ）
//   - r: 読み込み元のReader
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// EncodeGob はモデル状態をバイト列にエンコードする（MarshalBinary の実装用）
func EncodeGob(model interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := SaveModelToWriter(model, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeGob はバイト列からモデル状態をデコードする（UnmarshalBinary の実装用）
func DecodeGob(data []byte, model interface{}) error {
	if len(data) == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	return LoadModelFromReader(model, bytes.NewReader(data))
}
