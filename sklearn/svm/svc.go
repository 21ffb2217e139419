// Package svm はRBFカーネルのサポートベクター分類器を提供します。
package svm

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/spamensemble/core/model"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/sklearn/feature_extraction"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Classifier      = (*SVC)(nil)
	_ model.ParameterGetter = (*SVC)(nil)
	_ model.Persistable     = (*SVC)(nil)
)

// SVC はRBFカーネルの二値サポートベクター分類器
//
// 双対問題をSMOで解き、確率は5分割交差検証の決定関数値に当てはめた
// Platt scaling で推定する。ラベルは決定関数の符号で決まり、
// 正の側が Classes()[1] になる。
type SVC struct {
	state *model.StateManager

	// ハイパーパラメータ
	C           float64
	gamma       string  // "scale", "auto" または "value"
	gammaValue  float64 // gamma == "value" のときの値
	classWeight string  // "balanced" または "none"
	tol         float64
	maxIter     int // <= 0 なら max(1e7, 100*n)
	probability bool
	cvFolds     int
	randomState int64

	// 学習済みパラメータ
	supportVectors []feature_extraction.FeatureVector
	svNorms        []float64
	dualCoef       []float64 // α_i * y_i
	rho            float64
	gamma_         float64
	probA          float64
	probB          float64
	classes_       []int
	nIter_         int
}

// Option はSVCの設定オプション
type Option func(*SVC)

// WithC は誤分類ペナルティを設定する
func WithC(c float64) Option {
	return func(s *SVC) { s.C = c }
}

// WithGamma はRBFカーネルのgammaを固定値にする
func WithGamma(gamma float64) Option {
	return func(s *SVC) {
		s.gamma = "value"
		s.gammaValue = gamma
	}
}

// WithGammaMode は "scale" か "auto" を設定する
func WithGammaMode(mode string) Option {
	return func(s *SVC) { s.gamma = mode }
}

// WithClassWeight はクラス重み（"balanced" / "none"）を設定する
func WithClassWeight(weight string) Option {
	return func(s *SVC) { s.classWeight = weight }
}

// WithTol はKKT条件の許容値を設定する
func WithTol(tol float64) Option {
	return func(s *SVC) { s.tol = tol }
}

// WithMaxIter はSMOの最大反復回数を設定する
func WithMaxIter(n int) Option {
	return func(s *SVC) { s.maxIter = n }
}

// WithProbability は確率推定の有無を設定する
func WithProbability(enabled bool) Option {
	return func(s *SVC) { s.probability = enabled }
}

// WithRandomState は確率推定用の交差検証分割のシードを設定する
func WithRandomState(seed int64) Option {
	return func(s *SVC) { s.randomState = seed }
}

// NewSVC は新しいSVCを作成する
//
// 使用例:
//
//	svc := svm.NewSVC(svm.WithClassWeight("balanced"))
//	err := svc.Fit(X, y)
//	proba, err := svc.PredictProba(X)
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		state:       model.NewStateManager(),
		C:           1.0,
		gamma:       "scale",
		classWeight: "none",
		tol:         1e-3,
		probability: true,
		cvFolds:     5,
		randomState: 42,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SVC) validateParams() error {
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	if s.tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", s.tol)
	}
	switch s.gamma {
	case "scale", "auto":
	case "value":
		if s.gammaValue <= 0 {
			return errors.NewValidationError("gamma", "must be positive", s.gammaValue)
		}
	default:
		return errors.NewValidationError("gamma", "must be 'scale', 'auto' or a positive number", s.gamma)
	}
	switch s.classWeight {
	case "balanced", "none", "":
	default:
		return errors.NewValidationError("class_weight", "must be 'balanced' or 'none'", s.classWeight)
	}
	return nil
}

// Fit はSVCを学習する。y は2種類の整数クラスコードを持つ列ベクトル。
func (s *SVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVC.Fit")

	if err := s.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("SVC.Fit", nSamples, yRows, 0)
	}

	classes := uniqueClasses(y)
	if len(classes) != 2 {
		return errors.NewValueError("SVC.Fit", fmt.Sprintf("binary classification requires exactly 2 classes, got %d", len(classes)))
	}

	rows := toRows(X)
	signs := make([]float64, nSamples)
	nPos := 0
	for i := range signs {
		if int(y.At(i, 0)) == classes[1] {
			signs[i] = 1
			nPos++
		} else {
			signs[i] = -1
		}
	}

	gamma := s.gammaValue
	switch s.gamma {
	case "scale":
		gamma = scaleGamma(rows, nFeatures)
	case "auto":
		gamma = 1 / float64(nFeatures)
	}

	cPos, cNeg := s.C, s.C
	if s.classWeight == "balanced" {
		cPos = s.C * float64(nSamples) / (2 * float64(nPos))
		cNeg = s.C * float64(nSamples) / (2 * float64(nSamples-nPos))
	}

	kernel := rbfKernel{gamma: gamma}.gram(rows)

	probA, probB := 0.0, 0.0
	if s.probability {
		dec := crossValidatedDecision(kernel, signs, cPos, cNeg, s.tol, s.maxIter, s.cvFolds, s.randomState)
		probA, probB = plattFit(dec, signs)
	}

	index := make([]int, nSamples)
	for i := range index {
		index[i] = i
	}
	problem := &smoProblem{kernel: kernel, index: index, y: signs, cPos: cPos, cNeg: cNeg, eps: s.tol, maxIter: s.maxIter}
	sol := problem.solve()
	if err := errors.CheckScalar("SVC.Fit", sol.rho, sol.iter); err != nil {
		return err
	}

	s.supportVectors = s.supportVectors[:0]
	s.dualCoef = s.dualCoef[:0]
	for i, a := range sol.alpha {
		if a > 0 {
			s.supportVectors = append(s.supportVectors, rows[i])
			s.dualCoef = append(s.dualCoef, a*signs[i])
		}
	}
	s.setNorms()
	s.rho = sol.rho
	s.gamma_ = gamma
	s.probA, s.probB = probA, probB
	s.classes_ = classes
	s.nIter_ = sol.iter
	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	return nil
}

func (s *SVC) setNorms() {
	s.svNorms = make([]float64, len(s.supportVectors))
	for i, sv := range s.supportVectors {
		s.svNorms[i] = squaredNorm(sv)
	}
}

func (s *SVC) checkInput(method string, X mat.Matrix) error {
	if err := s.state.RequireFitted("SVC", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	return s.state.RequireFeatures("SVC."+method, cols)
}

func (s *SVC) decision(x feature_extraction.FeatureVector) float64 {
	k := rbfKernel{gamma: s.gamma_}
	norm := squaredNorm(x)
	var f float64
	for i, sv := range s.supportVectors {
		f += s.dualCoef[i] * k.eval(sv, x, s.svNorms[i], norm)
	}
	return f - s.rho
}

// DecisionFunction は各サンプルの決定関数値（n_samples x 1）を返す。正なら Classes()[1]。
func (s *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := s.checkInput("DecisionFunction", X); err != nil {
		return nil, err
	}
	rows := toRows(X)
	out := mat.NewDense(len(rows), 1, nil)
	for i, r := range rows {
		out.Set(i, 0, s.decision(r))
	}
	return out, nil
}

// Predict は決定関数の符号でクラスコードを返す
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, _ := dec.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := s.classes_[0]
		if dec.At(i, 0) > 0 {
			c = s.classes_[1]
		}
		out.Set(i, 0, float64(c))
	}
	return out, nil
}

// PredictProba はPlatt scalingによる確率（n_samples x 2）を返す
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if s.state.IsFitted() && !s.probability {
		return nil, errors.NewValueError("SVC.PredictProba", "probability estimates are disabled; construct with WithProbability(true)")
	}
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, _ := dec.Dims()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := plattPredict(dec.At(i, 0), s.probA, s.probB)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Score は平均正解率を返す
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := pred.Dims()
	if n == 0 {
		return 0, errors.WithStack(errors.ErrEmptyData)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// Classes は学習済みクラスを昇順で返す
func (s *SVC) Classes() []int { return append([]int(nil), s.classes_...) }

// NSupport はサポートベクターの数を返す
func (s *SVC) NSupport() int { return len(s.supportVectors) }

// Gamma は学習に使ったgammaの値を返す
func (s *SVC) Gamma() float64 { return s.gamma_ }

// NIter はSMOの反復回数を返す
func (s *SVC) NIter() int { return s.nIter_ }

// IsFitted は学習済みかどうかを返す
func (s *SVC) IsFitted() bool { return s.state.IsFitted() }

// GetParams はハイパーパラメータを返す
func (s *SVC) GetParams() map[string]interface{} {
	gamma := interface{}(s.gamma)
	if s.gamma == "value" {
		gamma = s.gammaValue
	}
	return map[string]interface{}{
		"C":            s.C,
		"kernel":       "rbf",
		"gamma":        gamma,
		"class_weight": s.classWeight,
		"tol":          s.tol,
		"max_iter":     s.maxIter,
		"probability":  s.probability,
		"random_state": s.randomState,
	}
}

func (s *SVC) String() string {
	if !s.state.IsFitted() {
		return fmt.Sprintf("SVC(C=%g, kernel=rbf, gamma=%s)", s.C, s.gamma)
	}
	return fmt.Sprintf("SVC(C=%g, kernel=rbf, gamma=%.6g, n_support=%d)", s.C, s.gamma_, len(s.supportVectors))
}

type svcSnapshot struct {
	C              float64
	Gamma          string
	GammaValue     float64
	ClassWeight    string
	Tol            float64
	MaxIter        int
	Probability    bool
	RandomState    int64
	SupportVectors []feature_extraction.FeatureVector
	DualCoef       []float64
	Rho            float64
	FittedGamma    float64
	ProbA, ProbB   float64
	Classes        []int
	State          model.ModelState
}

// MarshalBinary は encoding.BinaryMarshaler を実装する（gob）
func (s *SVC) MarshalBinary() ([]byte, error) {
	if err := s.state.RequireFitted("SVC", "MarshalBinary"); err != nil {
		return nil, err
	}
	return model.EncodeGob(svcSnapshot{
		C: s.C, Gamma: s.gamma, GammaValue: s.gammaValue, ClassWeight: s.classWeight,
		Tol: s.tol, MaxIter: s.maxIter, Probability: s.probability, RandomState: s.randomState,
		SupportVectors: s.supportVectors, DualCoef: s.dualCoef, Rho: s.rho,
		FittedGamma: s.gamma_, ProbA: s.probA, ProbB: s.probB,
		Classes: s.classes_, State: s.state.GetState(),
	})
}

// UnmarshalBinary は encoding.BinaryUnmarshaler を実装する
func (s *SVC) UnmarshalBinary(data []byte) error {
	var snap svcSnapshot
	if err := model.DecodeGob(data, &snap); err != nil {
		return err
	}
	if len(snap.SupportVectors) != len(snap.DualCoef) {
		return errors.NewValueError("SVC.UnmarshalBinary", "support vectors and dual coefficients differ in length")
	}
	if len(snap.Classes) != 2 || math.IsNaN(snap.Rho) {
		return errors.NewValueError("SVC.UnmarshalBinary", "corrupted model state")
	}
	s.C, s.gamma, s.gammaValue, s.classWeight = snap.C, snap.Gamma, snap.GammaValue, snap.ClassWeight
	s.tol, s.maxIter, s.probability, s.randomState = snap.Tol, snap.MaxIter, snap.Probability, snap.RandomState
	s.supportVectors, s.dualCoef, s.rho = snap.SupportVectors, snap.DualCoef, snap.Rho
	s.gamma_, s.probA, s.probB = snap.FittedGamma, snap.ProbA, snap.ProbB
	s.classes_ = snap.Classes
	s.setNorms()
	s.state = model.NewStateManager()
	s.state.SetState(snap.State)
	return nil
}

func uniqueClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	var classes []int
	for i := 0; i < rows; i++ {
		c := int(y.At(i, 0))
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			classes = append(classes, c)
		}
	}
	sort.Ints(classes)
	return classes
}
