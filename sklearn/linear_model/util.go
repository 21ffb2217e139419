package linear_model

import (
	"sort"

	"github.com/YuminosukeSato/spamensemble/sklearn/feature_extraction"
	"gonum.org/v1/gonum/mat"
)

const machineEpsilon = 2.220446049250313e-16

// sparseRower is implemented by feature_extraction.SparseMatrix; estimators
// use it to skip zero columns when scoring a row.
type sparseRower interface {
	Row(i int) feature_extraction.FeatureVector
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// dot returns w·x_i (without intercept).
func dot(X mat.Matrix, i int, w []float64) float64 {
	var v float64
	if sp, ok := X.(sparseRower); ok {
		row := sp.Row(i)
		for k, j := range row.Indices {
			v += row.Values[k] * w[j]
		}
		return v
	}
	for j, c := range w {
		v += X.At(i, j) * c
	}
	return v
}

// extractClasses returns the sorted distinct integer labels of the column vector y.
func extractClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	set := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		set[int(y.At(i, 0))] = struct{}{}
	}
	classes := make([]int, 0, len(set))
	for c := range set {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}
