package svm

import (
	"math"

	"github.com/YuminosukeSato/spamensemble/core/parallel"
	"github.com/YuminosukeSato/spamensemble/sklearn/feature_extraction"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// カーネル行列をこの行数以下なら逐次計算する
const kernelParallelThreshold = 64

type sparseRower interface {
	Row(i int) feature_extraction.FeatureVector
}

// toRows はmat.Matrixを疎な行ベクトルに変換する
func toRows(X mat.Matrix) []feature_extraction.FeatureVector {
	rows, cols := X.Dims()
	out := make([]feature_extraction.FeatureVector, rows)
	if sp, ok := X.(sparseRower); ok {
		for i := range out {
			out[i] = sp.Row(i)
		}
		return out
	}
	for i := range out {
		v := feature_extraction.FeatureVector{Dim: cols}
		for j := 0; j < cols; j++ {
			if x := X.At(i, j); x != 0 {
				v.Indices = append(v.Indices, j)
				v.Values = append(v.Values, x)
			}
		}
		out[i] = v
	}
	return out
}

func sparseDot(a, b feature_extraction.FeatureVector) float64 {
	var s float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			s += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return s
}

func squaredNorm(v feature_extraction.FeatureVector) float64 {
	var s float64
	for _, x := range v.Values {
		s += x * x
	}
	return s
}

// rbfKernel は exp(-gamma*||a-b||²) を計算する（ノルムは事前計算済み）
type rbfKernel struct {
	gamma float64
}

func (k rbfKernel) eval(a, b feature_extraction.FeatureVector, normA, normB float64) float64 {
	d := normA + normB - 2*sparseDot(a, b)
	if d < 0 {
		d = 0
	}
	return math.Exp(-k.gamma * d)
}

// gram は学習データ全体のカーネル行列を計算する。各ワーカーは自分の行だけを書く。
func (k rbfKernel) gram(rows []feature_extraction.FeatureVector) [][]float64 {
	n := len(rows)
	norms := make([]float64, n)
	for i, r := range rows {
		norms[i] = squaredNorm(r)
	}
	K := make([][]float64, n)
	parallel.ParallelizeWithThreshold(n, kernelParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			row := make([]float64, n)
			for j := 0; j < n; j++ {
				row[j] = k.eval(rows[i], rows[j], norms[i], norms[j])
			}
			K[i] = row
		}
	})
	return K
}

// scaleGamma は gamma="scale" の値 1/(n_features*Var(X)) を返す。
// 分散は零要素を含む全要素の母分散。分散が0なら1を返す。
func scaleGamma(rows []feature_extraction.FeatureVector, nFeatures int) float64 {
	total := float64(len(rows) * nFeatures)
	if total == 0 {
		return 1
	}
	var values, weights []float64
	nnz := 0
	for _, r := range rows {
		for _, v := range r.Values {
			values = append(values, v)
			weights = append(weights, 1)
		}
		nnz += len(r.Values)
	}
	if zeros := total - float64(nnz); zeros > 0 {
		values = append(values, 0)
		weights = append(weights, zeros)
	}
	variance := stat.PopVariance(values, weights)
	if variance == 0 || math.IsNaN(variance) {
		return 1
	}
	return 1 / (float64(nFeatures) * variance)
}
