package linear_model

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/spamensemble/core/model"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Classifier      = (*LogisticRegression)(nil)
	_ model.ParameterGetter = (*LogisticRegression)(nil)
	_ model.Persistable     = (*LogisticRegression)(nil)
)

// LogisticRegression implements L2-regularised logistic regression.
// Binary problems fit one weight vector; more classes are fitted one-vs-rest.
//
// The objective per binary problem is the scikit-learn one,
//
//	C * Σ s_i * logloss(y_i, w·x_i + b) + ½‖w‖²
//
// where s_i is the class weight of sample i. It is minimised by full-batch
// gradient descent with the step 1/L, L being a bound on the Lipschitz
// constant of the gradient, so training is deterministic.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // "l2" or "none"
	C            float64 // Inverse regularization strength
	fitIntercept bool
	classWeight  string // "balanced" or "none"
	maxIter      int
	tol          float64 // stop when the largest gradient component is below tol

	// Model parameters
	coef_      [][]float64 // 1 x n_features for binary, n_classes x n_features otherwise
	intercept_ []float64
	classes_   []int
	nIter_     []int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		classWeight:  "none",
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type ("l2" or "none")
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRClassWeight sets the class weighting ("balanced" or "none")
func WithLRClassWeight(weight string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.classWeight = weight
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

func (lr *LogisticRegression) validateParams() error {
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}
	switch lr.penalty {
	case "l2", "none":
	default:
		return errors.NewValidationError("penalty", "must be 'l2' or 'none'", lr.penalty)
	}
	switch lr.classWeight {
	case "balanced", "none", "":
	default:
		return errors.NewValidationError("class_weight", "must be 'balanced' or 'none'", lr.classWeight)
	}
	return nil
}

// Fit trains the logistic regression model. y holds integer class codes.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	if err := lr.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}

	classes := extractClasses(y)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes in the data, but the data contains only one class: %v", classes))
	}
	sampleWeight := lr.sampleWeights(y, classes)

	nModels := len(classes)
	if nModels == 2 {
		nModels = 1
	}
	coef := make([][]float64, nModels)
	intercept := make([]float64, nModels)
	nIter := make([]int, nModels)

	for k := 0; k < nModels; k++ {
		positive := classes[len(classes)-1]
		if nModels > 1 {
			positive = classes[k]
		}
		target := make([]float64, nSamples)
		for i := range target {
			if int(y.At(i, 0)) == positive {
				target[i] = 1
			}
		}
		coef[k], intercept[k], nIter[k] = lr.fitBinary(X, target, sampleWeight)
	}

	lr.coef_ = coef
	lr.intercept_ = intercept
	lr.classes_ = classes
	lr.nIter_ = nIter
	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// sampleWeights returns n/(n_classes*count(class)) per sample when balanced, else 1.
func (lr *LogisticRegression) sampleWeights(y mat.Matrix, classes []int) []float64 {
	n, _ := y.Dims()
	weights := make([]float64, n)
	if lr.classWeight != "balanced" {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}
	counts := make(map[int]int, len(classes))
	for i := 0; i < n; i++ {
		counts[int(y.At(i, 0))]++
	}
	for i := 0; i < n; i++ {
		weights[i] = float64(n) / (float64(len(classes)) * float64(counts[int(y.At(i, 0))]))
	}
	return weights
}

// fitBinary minimises the mean weighted log loss plus ‖w‖²/(2Cn) by gradient descent.
func (lr *LogisticRegression) fitBinary(X mat.Matrix, target, sampleWeight []float64) ([]float64, float64, int) {
	nSamples, nFeatures := X.Dims()
	n := float64(nSamples)

	lambda := 0.0
	if lr.penalty == "l2" {
		lambda = 1.0 / (lr.C * n)
	}

	// Lipschitz bound of the gradient: ¼·mean(s_i·(‖x_i‖²+1)) + λ
	var lip float64
	for i := 0; i < nSamples; i++ {
		sq := rowSquaredNorm(X, i)
		if lr.fitIntercept {
			sq++
		}
		lip += sampleWeight[i] * sq
	}
	lip = 0.25*lip/n + lambda
	step := 1.0 / math.Max(lip, machineEpsilon)

	weights := make([]float64, nFeatures)
	intercept := 0.0
	grad := make([]float64, nFeatures)

	iter := 0
	converged := false
	for iter < lr.maxIter {
		iter++
		for j := range grad {
			grad[j] = lambda * weights[j]
		}
		gradIntercept := 0.0
		for i := 0; i < nSamples; i++ {
			p := errors.Sigmoid(intercept + dot(X, i, weights))
			e := sampleWeight[i] * (p - target[i]) / n
			gradIntercept += e
			addScaledRow(grad, X, i, e)
		}

		maxGrad := 0.0
		if lr.fitIntercept {
			maxGrad = math.Abs(gradIntercept)
		}
		for _, g := range grad {
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if maxGrad < lr.tol {
			converged = true
			break
		}

		for j := range weights {
			weights[j] -= step * grad[j]
		}
		if lr.fitIntercept {
			intercept -= step * gradIntercept
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter, ""))
	}
	return weights, intercept, iter
}

func rowSquaredNorm(X mat.Matrix, i int) float64 {
	var s float64
	if sp, ok := X.(sparseRower); ok {
		for _, v := range sp.Row(i).Values {
			s += v * v
		}
		return s
	}
	_, cols := X.Dims()
	for j := 0; j < cols; j++ {
		v := X.At(i, j)
		s += v * v
	}
	return s
}

func addScaledRow(dst []float64, X mat.Matrix, i int, scale float64) {
	if sp, ok := X.(sparseRower); ok {
		row := sp.Row(i)
		for k, j := range row.Indices {
			dst[j] += scale * row.Values[k]
		}
		return
	}
	for j := range dst {
		dst[j] += scale * X.At(i, j)
	}
}

func (lr *LogisticRegression) checkInput(method string, X mat.Matrix) error {
	if err := lr.state.RequireFitted("LogisticRegression", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	return lr.state.RequireFeatures("LogisticRegression."+method, cols)
}

// DecisionFunction returns w·x+b per sample and model (n_samples x n_models).
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkInput("DecisionFunction", X); err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	out := mat.NewDense(nSamples, len(lr.coef_), nil)
	for i := 0; i < nSamples; i++ {
		for k := range lr.coef_ {
			out.Set(i, k, lr.intercept_[k]+dot(X, i, lr.coef_[k]))
		}
	}
	return out, nil
}

// PredictProba returns probability estimates for each class (n_samples x n_classes)
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, len(lr.classes_), nil)

	if len(lr.coef_) == 1 {
		for i := 0; i < nSamples; i++ {
			p1 := errors.Sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1-p1)
			probas.Set(i, 1, p1)
		}
		return probas, nil
	}

	// one-vs-rest: normalise the per-class sigmoids
	for i := 0; i < nSamples; i++ {
		var sum float64
		for k := range lr.coef_ {
			p := errors.Sigmoid(scores.At(i, k))
			probas.Set(i, k, p)
			sum += p
		}
		for k := range lr.coef_ {
			probas.Set(i, k, errors.SafeDivide(probas.At(i, k), sum))
		}
	}
	return probas, nil
}

// Predict returns the class code with the highest probability per sample
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, nClasses := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for k := 1; k < nClasses; k++ {
			if probas.At(i, k) > probas.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	nSamples, _ := X.Dims()
	if nSamples == 0 {
		return 0, errors.WithStack(errors.ErrEmptyData)
	}
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Classes returns the class codes seen during Fit in ascending order
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// NIter returns the number of iterations run per fitted model
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// IsFitted reports whether Fit has completed.
func (lr *LogisticRegression) IsFitted() bool { return lr.state.IsFitted() }

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"class_weight":  lr.classWeight,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "class_weight":
			lr.classWeight, ok = value.(string)
		case "max_iter":
			switch v := value.(type) {
			case int:
				lr.maxIter, ok = v, true
			case float64: // JSON numbers
				lr.maxIter, ok = int(v), true
			}
		case "tol":
			lr.tol, ok = value.(float64)
		default:
			return errors.NewValueError("LogisticRegression.SetParams", fmt.Sprintf("unknown parameter: %s", key))
		}
		if !ok {
			return errors.NewValidationError(key, "has the wrong type", value)
		}
	}
	return nil
}

// ExportWeights exports coefficients, intercepts and classes with a checksum
func (lr *LogisticRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	nFeatures, _ := lr.state.GetDimensions()
	flat := make([]float64, 0, len(lr.coef_)*nFeatures)
	for _, row := range lr.coef_ {
		flat = append(flat, row...)
	}
	w := &model.ModelWeights{
		ModelType:       "LogisticRegression",
		Version:         weightsVersion,
		Coefficients:    flat,
		Intercepts:      append([]float64(nil), lr.intercept_...),
		Classes:         lr.Classes(),
		NFeatures:       nFeatures,
		Hyperparameters: lr.GetParams(),
		IsFitted:        true,
	}
	if err := w.Seal(); err != nil {
		return nil, err
	}
	return w, nil
}

// ImportWeights restores a model exported by ExportWeights
func (lr *LogisticRegression) ImportWeights(w *model.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ModelType != "LogisticRegression" {
		return errors.NewValueError("LogisticRegression.ImportWeights", fmt.Sprintf("unexpected model type %q", w.ModelType))
	}
	nModels := len(w.Intercepts)
	if len(w.Classes) < 2 || (nModels != 1 && nModels != len(w.Classes)) {
		return errors.NewValueError("LogisticRegression.ImportWeights", "intercepts do not match classes")
	}
	if len(w.Coefficients) != nModels*w.NFeatures {
		return errors.NewDimensionError("LogisticRegression.ImportWeights", nModels*w.NFeatures, len(w.Coefficients), 1)
	}
	if err := lr.SetParams(w.Hyperparameters); err != nil {
		return err
	}

	coef := make([][]float64, nModels)
	for k := range coef {
		coef[k] = append([]float64(nil), w.Coefficients[k*w.NFeatures:(k+1)*w.NFeatures]...)
	}
	lr.coef_ = coef
	lr.intercept_ = append([]float64(nil), w.Intercepts...)
	lr.classes_ = append([]int(nil), w.Classes...)
	lr.state = model.NewStateManager()
	lr.state.SetDimensions(w.NFeatures, 0)
	lr.state.SetFitted()
	return nil
}

// MarshalBinary encodes the exported weights as JSON.
func (lr *LogisticRegression) MarshalBinary() ([]byte, error) {
	w, err := lr.ExportWeights()
	if err != nil {
		return nil, err
	}
	return w.ToJSON()
}

// UnmarshalBinary restores weights produced by MarshalBinary.
func (lr *LogisticRegression) UnmarshalBinary(data []byte) error {
	var w model.ModelWeights
	if err := w.FromJSON(data); err != nil {
		return err
	}
	return lr.ImportWeights(&w)
}
