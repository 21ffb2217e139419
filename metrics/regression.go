// Package metrics は学習結果の評価指標を提供します。
package metrics

import (
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// columns は列ベクトル2本の入力を検証してスライスに展開する
func columns(op string, yTrue, yPred mat.Matrix) ([]float64, []float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty input")
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	return mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred), nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range t {
		diff := t[i] - p[i]
		sum += diff * diff
	}
	return sum / float64(len(t)), nil
}

// R2Score は決定係数（R²）を計算する
//
// yTrue が定数のときは scikit-learn と同じく、完全一致なら 1、そうでなければ 0 を返す。
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if stat.Variance(t, nil) == 0 || len(t) == 1 {
		for i := range t {
			if t[i] != p[i] {
				return 0, nil
			}
		}
		return 1, nil
	}
	return stat.RSquaredFrom(p, t, nil), nil
}
