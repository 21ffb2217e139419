package linear_model

import (
	"fmt"

	"github.com/YuminosukeSato/spamensemble/core/model"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const weightsVersion = "1.0.0"

var (
	_ model.Regressor       = (*LinearRegression)(nil)
	_ model.ParameterGetter = (*LinearRegression)(nil)
	_ model.Persistable     = (*LinearRegression)(nil)
)

// LinearRegression is ordinary least squares with an optional intercept.
// It solves the centred problem through a thin SVD and keeps the
// minimum-norm solution, so it is defined when features outnumber samples
// (the usual case for TF-IDF text features).
type LinearRegression struct {
	state *model.StateManager // State management (composition instead of embedding)

	// Hyperparameters
	fitIntercept bool
	rcond        float64 // relative singular value cutoff; <= 0 means eps*max(n, p)

	// Learned parameters
	coef_      []float64
	intercept_ float64
	rank_      int
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithRcond sets the relative cutoff below which singular values are treated as zero.
func WithRcond(rcond float64) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.rcond = rcond
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearRegression.Fit", 1, yCols, 1)
	}

	XWork := mat.DenseCopyOf(X)
	yWork := mat.DenseCopyOf(y)

	xMean := make([]float64, cols)
	var yMean float64
	if lr.fitIntercept {
		for j := 0; j < cols; j++ {
			col := mat.Col(nil, j, XWork)
			xMean[j] = mean(col)
			for i := range col {
				XWork.Set(i, j, col[i]-xMean[j])
			}
		}
		yMean = mean(mat.Col(nil, 0, yWork))
		for i := 0; i < rows; i++ {
			yWork.Set(i, 0, yWork.At(i, 0)-yMean)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(XWork, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "svd factorization failed", errors.New("no convergence"))
	}

	rcond := lr.rcond
	if rcond <= 0 {
		rcond = machineEpsilon * float64(max(rows, cols))
	}
	rank := svd.Rank(rcond)

	coef := make([]float64, cols)
	if rank > 0 {
		var sol mat.Dense
		svd.SolveTo(&sol, yWork, rank)
		for j := 0; j < cols; j++ {
			coef[j] = sol.At(j, 0)
		}
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", coef, 0); err != nil {
		return err
	}

	intercept := 0.0
	if lr.fitIntercept {
		intercept = yMean
		for j := 0; j < cols; j++ {
			intercept -= xMean[j] * coef[j]
		}
	}

	lr.coef_ = coef
	lr.intercept_ = intercept
	lr.rank_ = rank
	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict は学習済みモデルで予測（n_samples x 1）
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := lr.state.RequireFeatures("LinearRegression.Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, lr.predictRow(X, i))
	}
	return out, nil
}

// PredictRow returns the raw regression output for row i of X.
func (lr *LinearRegression) PredictRow(X mat.Matrix, i int) (float64, error) {
	if err := lr.state.RequireFitted("LinearRegression", "PredictRow"); err != nil {
		return 0, err
	}
	if _, cols := X.Dims(); cols != len(lr.coef_) {
		return 0, errors.NewDimensionError("LinearRegression.PredictRow", len(lr.coef_), cols, 1)
	}
	return lr.predictRow(X, i), nil
}

func (lr *LinearRegression) predictRow(X mat.Matrix, i int) float64 {
	return lr.intercept_ + dot(X, i, lr.coef_)
}

// Score はR²（決定係数）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	var ssRes, ssTot float64
	yMean := mean(mat.Col(nil, 0, y))
	for i := 0; i < rows; i++ {
		r := y.At(i, 0) - pred.At(i, 0)
		d := y.At(i, 0) - yMean
		ssRes += r * r
		ssTot += d * d
	}
	if ssTot == 0 {
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

// Coef は学習された係数を返す
func (lr *LinearRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef_...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 { return lr.intercept_ }

// Rank returns the effective rank of the centred design matrix.
func (lr *LinearRegression) Rank() int { return lr.rank_ }

// IsFitted reports whether Fit has completed.
func (lr *LinearRegression) IsFitted() bool { return lr.state.IsFitted() }

// GetParams はハイパーパラメータを取得
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"rcond":         lr.rcond,
	}
}

// ExportWeights はモデルの重みをエクスポート（チェックサム付き）
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("LinearRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	w := &model.ModelWeights{
		ModelType:       "LinearRegression",
		Version:         weightsVersion,
		Coefficients:    lr.Coef(),
		Intercepts:      []float64{lr.intercept_},
		NFeatures:       len(lr.coef_),
		Hyperparameters: lr.GetParams(),
		IsFitted:        true,
	}
	if err := w.Seal(); err != nil {
		return nil, err
	}
	return w, nil
}

// ImportWeights はエクスポートされた重みを復元
func (lr *LinearRegression) ImportWeights(w *model.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ModelType != "LinearRegression" {
		return errors.NewValueError("LinearRegression.ImportWeights", fmt.Sprintf("unexpected model type %q", w.ModelType))
	}
	if len(w.Coefficients) != w.NFeatures {
		return errors.NewDimensionError("LinearRegression.ImportWeights", w.NFeatures, len(w.Coefficients), 1)
	}
	if fit, ok := w.Hyperparameters["fit_intercept"].(bool); ok {
		lr.fitIntercept = fit
	}
	if rcond, ok := w.Hyperparameters["rcond"].(float64); ok {
		lr.rcond = rcond
	}
	lr.coef_ = append([]float64(nil), w.Coefficients...)
	lr.intercept_ = w.Intercepts[0]
	lr.state = model.NewStateManager()
	lr.state.SetDimensions(w.NFeatures, 0)
	lr.state.SetFitted()
	return nil
}

// MarshalBinary encodes the exported weights as JSON.
func (lr *LinearRegression) MarshalBinary() ([]byte, error) {
	w, err := lr.ExportWeights()
	if err != nil {
		return nil, err
	}
	return w.ToJSON()
}

// UnmarshalBinary restores weights produced by MarshalBinary.
func (lr *LinearRegression) UnmarshalBinary(data []byte) error {
	var w model.ModelWeights
	if err := w.FromJSON(data); err != nil {
		return err
	}
	return lr.ImportWeights(&w)
}

// String はモデルの文字列表現を返す
func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, rank=%d)", lr.fitIntercept, len(lr.coef_), lr.rank_)
}
