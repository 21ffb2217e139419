// Package model はアンサンブルを構成する推定器が共有するインターフェース、
// 学習状態の管理、永続化のヘルパーを提供します。
package model

import (
	"encoding"

	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は連続値を出力する回帰モデルです。
type Regressor interface {
	Fitter
	Predictor
}

// Classifier は分類モデルのインターフェースです。
// Predict はクラスコード（列ベクトル）を返し、PredictProba は Classes の順に確率を返します。
type Classifier interface {
	Fitter
	Predictor

	// PredictProba は各クラスの確率を返す (n_samples x n_classes)
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes は学習時に観測したクラスコードを昇順で返す
	Classes() []int
}

// TextClassifier は生テキストを直接受け取る分類器です（内部にベクトライザを持つパイプライン）。
type TextClassifier interface {
	FitText(docs []string, y []int) error
	PredictText(docs []string) ([]int, error)
	PredictProbaText(docs []string) (mat.Matrix, error)
	Classes() []int
}

// ParameterGetter はハイパーパラメータを公開するモデルのインターフェース
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// Persistable はバイト列として保存・復元できるモデルのインターフェースです。
// アーティファクトストアは各アーティファクトをこの形で1つのブロブとして扱います。
type Persistable interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}
