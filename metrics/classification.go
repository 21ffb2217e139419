package metrics

import (
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// AccuracyScore は正解率（一致したラベルの割合）を計算する
func AccuracyScore(yTrue, yPred []int) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("AccuracyScore", "empty input")
	}
	if len(yTrue) != len(yPred) {
		return 0, errors.NewDimensionError("AccuracyScore", len(yTrue), len(yPred), 0)
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// ConfusionMatrix は二値分類の混同行列
type ConfusionMatrix struct {
	TruePositive  int
	FalsePositive int
	TrueNegative  int
	FalseNegative int
}

// BinaryConfusion は positive を正例として混同行列を数える
func BinaryConfusion(yTrue, yPred []int, positive int) (ConfusionMatrix, error) {
	var cm ConfusionMatrix
	if len(yTrue) != len(yPred) {
		return cm, errors.NewDimensionError("BinaryConfusion", len(yTrue), len(yPred), 0)
	}
	for i := range yTrue {
		switch {
		case yTrue[i] == positive && yPred[i] == positive:
			cm.TruePositive++
		case yTrue[i] == positive:
			cm.FalseNegative++
		case yPred[i] == positive:
			cm.FalsePositive++
		default:
			cm.TrueNegative++
		}
	}
	return cm, nil
}

// Precision は TP/(TP+FP)。分母が0なら0
func (c ConfusionMatrix) Precision() float64 {
	return errors.SafeDivide(float64(c.TruePositive), float64(c.TruePositive+c.FalsePositive))
}

// Recall は TP/(TP+FN)。分母が0なら0
func (c ConfusionMatrix) Recall() float64 {
	return errors.SafeDivide(float64(c.TruePositive), float64(c.TruePositive+c.FalseNegative))
}
