package feature_extraction

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// FeatureVector is a sparse row produced by TfidfVectorizer. Indices are
// strictly increasing and Values[k] is the weight of column Indices[k].
// It is never mutated after creation.
type FeatureVector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// At returns the weight of column j.
func (v FeatureVector) At(j int) float64 {
	k := sort.SearchInts(v.Indices, j)
	if k < len(v.Indices) && v.Indices[k] == j {
		return v.Values[k]
	}
	return 0
}

// NNZ returns the number of non-zero entries.
func (v FeatureVector) NNZ() int { return len(v.Indices) }

// Dense returns the vector as a dense gonum vector.
func (v FeatureVector) Dense() *mat.VecDense {
	out := mat.NewVecDense(max(v.Dim, 1), nil)
	for k, j := range v.Indices {
		out.SetVec(j, v.Values[k])
	}
	return out
}

// SparseMatrix stacks feature vectors row-wise and implements mat.Matrix,
// so estimators accept it wherever they accept a *mat.Dense.
type SparseMatrix struct {
	rows []FeatureVector
	cols int
}

// NewSparseMatrix builds a matrix from rows sharing the dimension cols.
func NewSparseMatrix(rows []FeatureVector, cols int) *SparseMatrix {
	return &SparseMatrix{rows: rows, cols: cols}
}

// Dims implements mat.Matrix.
func (m *SparseMatrix) Dims() (r, c int) { return len(m.rows), m.cols }

// At implements mat.Matrix.
func (m *SparseMatrix) At(i, j int) float64 {
	if i < 0 || i >= len(m.rows) || j < 0 || j >= m.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	return m.rows[i].At(j)
}

// T implements mat.Matrix.
func (m *SparseMatrix) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// Row returns the i-th feature vector.
func (m *SparseMatrix) Row(i int) FeatureVector { return m.rows[i] }

// Rows returns the underlying feature vectors.
func (m *SparseMatrix) Rows() []FeatureVector { return m.rows }

// ToDense materializes the matrix.
func (m *SparseMatrix) ToDense() *mat.Dense {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(r, c, nil)
	for i, row := range m.rows {
		for k, j := range row.Indices {
			out.Set(i, j, row.Values[k])
		}
	}
	return out
}
