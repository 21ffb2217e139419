package svm

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/sklearn/feature_extraction"
	"gonum.org/v1/gonum/mat"
)

// twoClusters は (0,0) と (3,3) 周りに perClass 点ずつ置いたデータを返す
func twoClusters(perClass int) (*mat.Dense, *mat.Dense) {
	offsets := [][2]float64{
		{0, 0}, {0.5, 0}, {0, 0.5}, {-0.5, 0}, {0, -0.5},
		{0.4, 0.4}, {-0.4, 0.4}, {0.4, -0.4}, {-0.4, -0.4}, {0.2, -0.1},
	}
	n := 2 * perClass
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < perClass; i++ {
		o := offsets[i%len(offsets)]
		X.Set(i, 0, o[0])
		X.Set(i, 1, o[1])
		X.Set(perClass+i, 0, 3+o[0])
		X.Set(perClass+i, 1, 3+o[1])
		y.Set(perClass+i, 0, 1)
	}
	return X, y
}

func TestSVC_FitPredict(t *testing.T) {
	X, y := twoClusters(10)
	svc := NewSVC()
	if err := svc.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	score, err := svc.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if score != 1 {
		t.Errorf("Score() = %v, want 1", score)
	}
	if svc.NSupport() == 0 || svc.NSupport() > 20 {
		t.Errorf("NSupport() = %d", svc.NSupport())
	}

	// 等式制約 Σ α_i y_i = 0
	var sum float64
	for _, c := range svc.dualCoef {
		sum += c
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("Σ α_i y_i = %v", sum)
	}
	for _, c := range svc.dualCoef {
		if math.Abs(c) > svc.C+1e-12 {
			t.Errorf("|α| = %v exceeds C", c)
		}
	}
}

func TestSVC_PredictProbaAgreesWithDecision(t *testing.T) {
	X, y := twoClusters(10)
	svc := NewSVC()
	if err := svc.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	probas, err := svc.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	dec, _ := svc.DecisionFunction(X)
	for i := 0; i < 20; i++ {
		p0, p1 := probas.At(i, 0), probas.At(i, 1)
		if math.Abs(p0+p1-1) > 1e-12 || p1 < 0 || p1 > 1 {
			t.Fatalf("row %d: invalid probabilities %v, %v", i, p0, p1)
		}
		if (dec.At(i, 0) > 0) != (y.At(i, 0) == 1) {
			t.Errorf("row %d: decision %v disagrees with label %v", i, dec.At(i, 0), y.At(i, 0))
		}
	}
	// 明確に正例側の点は高い確率になる
	far := mat.NewDense(2, 2, []float64{-1, -1, 4, 4})
	pf, err := svc.PredictProba(far)
	if err != nil {
		t.Fatal(err)
	}
	if pf.At(0, 1) >= 0.5 || pf.At(1, 1) <= 0.5 {
		t.Errorf("far points: P(1)=%v, %v", pf.At(0, 1), pf.At(1, 1))
	}
}

func TestSVC_Deterministic(t *testing.T) {
	X, y := twoClusters(10)
	a, b := NewSVC(), NewSVC()
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	pa, _ := a.PredictProba(X)
	pb, _ := b.PredictProba(X)
	if !mat.Equal(pa, pb) {
		t.Error("two fits on the same data produced different probabilities")
	}
}

func TestSVC_ScaleGamma(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, 0, 0, 3})
	svc := NewSVC(WithProbability(false))
	if err := svc.Fit(X, mat.NewDense(2, 1, []float64{0, 1})); err != nil {
		t.Fatal(err)
	}
	// 要素 {1,0,0,3}: 平均 1, 母分散 (0+1+1+4)/4 = 1.5
	want := 1 / (2 * 1.5)
	if math.Abs(svc.Gamma()-want) > 1e-12 {
		t.Errorf("Gamma() = %v, want %v", svc.Gamma(), want)
	}

	auto := NewSVC(WithGammaMode("auto"), WithProbability(false))
	if err := auto.Fit(X, mat.NewDense(2, 1, []float64{0, 1})); err != nil {
		t.Fatal(err)
	}
	if auto.Gamma() != 0.5 {
		t.Errorf("auto Gamma() = %v", auto.Gamma())
	}
}

func TestSVC_BalancedClassWeight(t *testing.T) {
	// 正例1つに対して負例4つ
	X := mat.NewDense(5, 1, []float64{0, 0.25, 0.5, 0.75, 1})
	y := mat.NewDense(5, 1, []float64{0, 0, 0, 0, 1})
	opts := []Option{WithC(0.1), WithGamma(1), WithProbability(false)}
	plain := NewSVC(opts...)
	balanced := NewSVC(append(opts, WithClassWeight("balanced"))...)
	for _, m := range []*SVC{plain, balanced} {
		if err := m.Fit(X, y); err != nil {
			t.Fatal(err)
		}
	}
	// C が小さいと α は上限に張り付くので、正例の α は各クラスの上限になる
	maxCoef := func(m *SVC) float64 {
		best := 0.0
		for _, c := range m.dualCoef {
			best = math.Max(best, c)
		}
		return best
	}
	if got := maxCoef(plain); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("unweighted positive α = %v, want 0.1", got)
	}
	if got := maxCoef(balanced); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("balanced positive α = %v, want C*n/(2*n_pos) = 0.25", got)
	}
}

func TestSVC_SparseMatchesDense(t *testing.T) {
	X, y := twoClusters(6)
	rows := make([]feature_extraction.FeatureVector, 12)
	for i := range rows {
		v := feature_extraction.FeatureVector{Dim: 2}
		for j := 0; j < 2; j++ {
			if x := X.At(i, j); x != 0 {
				v.Indices = append(v.Indices, j)
				v.Values = append(v.Values, x)
			}
		}
		rows[i] = v
	}
	sparse := feature_extraction.NewSparseMatrix(rows, 2)

	dense, sp := NewSVC(), NewSVC()
	if err := dense.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := sp.Fit(sparse, y); err != nil {
		t.Fatal(err)
	}
	d1, _ := dense.DecisionFunction(X)
	d2, _ := sp.DecisionFunction(sparse)
	if !mat.EqualApprox(d1, d2, 1e-12) {
		t.Error("sparse and dense inputs give different decisions")
	}
}

func TestSVC_Errors(t *testing.T) {
	svc := NewSVC()
	var nf *errors.NotFittedError
	if _, err := svc.Predict(mat.NewDense(1, 2, nil)); !errors.As(err, &nf) {
		t.Errorf("Predict before Fit: got %v", err)
	}

	X, _ := twoClusters(3)
	oneClass := mat.NewDense(6, 1, nil)
	if err := svc.Fit(X, oneClass); err == nil {
		t.Error("single-class data should be rejected")
	}
	if err := NewSVC(WithC(-1)).Fit(X, oneClass); err == nil {
		t.Error("negative C should be rejected")
	}

	noProba := NewSVC(WithProbability(false))
	_, y := twoClusters(3)
	if err := noProba.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if _, err := noProba.PredictProba(X); err == nil {
		t.Error("PredictProba without probability should fail")
	}
	var de *errors.DimensionError
	if _, err := noProba.Predict(mat.NewDense(1, 3, nil)); !errors.As(err, &de) {
		t.Errorf("feature mismatch: got %v", err)
	}
}

func TestSVC_MarshalRoundTrip(t *testing.T) {
	X, y := twoClusters(8)
	svc := NewSVC(WithClassWeight("balanced"))
	if err := svc.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	data, err := svc.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	restored := NewSVC()
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	p1, _ := svc.PredictProba(X)
	p2, err := restored.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(p1, p2) {
		t.Error("restored SVC gives different probabilities")
	}
	if err := NewSVC().UnmarshalBinary(nil); err == nil {
		t.Error("empty data should fail")
	}
}

func TestPlattFit(t *testing.T) {
	dec := []float64{-2, -1.5, -1, -0.5, 0.5, 1, 1.5, 2}
	labels := []float64{-1, -1, -1, -1, 1, 1, 1, 1}
	a, b := plattFit(dec, labels)
	if a >= 0 {
		t.Errorf("A = %v, want negative (probability increases with decision)", a)
	}
	if p := plattPredict(2, a, b); p <= 0.5 {
		t.Errorf("P(+1|2) = %v", p)
	}
	if p := plattPredict(-2, a, b); p >= 0.5 {
		t.Errorf("P(+1|-2) = %v", p)
	}
	// 極端な値でもオーバーフローしない
	for _, f := range []float64{-1e6, 1e6} {
		if p := plattPredict(f, a, b); math.IsNaN(p) || p < 0 || p > 1 {
			t.Errorf("plattPredict(%v) = %v", f, p)
		}
	}
}

func TestCrossValidatedDecisionSingleClassFold(t *testing.T) {
	// 5サンプル5分割: 負例を検証する分割の学習側は正例だけになる
	y := []float64{1, 1, 1, 1, -1}
	kernel := make([][]float64, 5)
	for i := range kernel {
		kernel[i] = make([]float64, 5)
		kernel[i][i] = 1
	}
	dec := crossValidatedDecision(kernel, y, 1, 1, 1e-3, 0, 5, 42)
	if dec[4] != 1 {
		t.Errorf("decision for the negative sample = %v, want 1", dec[4])
	}
}
