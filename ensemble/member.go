// Package ensemble trains, persists and serves the four-model spam ensemble.
//
// A Bundle holds the shared vectorizer, the label codec and the four fitted
// members. It is immutable once built, so any number of goroutines may call
// Bundle.Predict while a Manager trains and publishes a replacement.
package ensemble

import (
	"math"

	"github.com/YuminosukeSato/spamensemble/corpus"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/preprocessing"
	"github.com/YuminosukeSato/spamensemble/sklearn/feature_extraction"
	"github.com/YuminosukeSato/spamensemble/sklearn/linear_model"
	"github.com/YuminosukeSato/spamensemble/sklearn/pipeline"
	"github.com/YuminosukeSato/spamensemble/sklearn/svm"
	"gonum.org/v1/gonum/mat"
)

// Member names, used as report keys and in logs.
const (
	NameLinear   = "linear_regression"
	NameLogistic = "logistic_regression"
	NamePipeline = "pipeline"
	NameSVM      = "svm"
)

// MemberNames lists the members in voting order.
var MemberNames = []string{NameLinear, NameLogistic, NamePipeline, NameSVM}

var displayNames = map[string]string{
	NameLinear:   "Linear Regression",
	NameLogistic: "Logistic Regression",
	NamePipeline: "Custom Pipeline",
	NameSVM:      "SVM",
}

// DisplayName returns the human readable name of a member.
func DisplayName(name string) string { return displayNames[name] }

// linear confidence is clamped to this range
const (
	linearMinConfidence = 50
	linearMaxConfidence = 95
	linearThreshold     = 0.5
)

// Input is one message as seen by the members: the raw text for members
// that vectorize on their own and the shared feature vector for the rest.
type Input struct {
	Text     string
	Features feature_extraction.FeatureVector
}

// matrix wraps the shared features as a one-row matrix.
func (in Input) matrix() mat.Matrix {
	return feature_extraction.NewSparseMatrix([]feature_extraction.FeatureVector{in.Features}, in.Features.Dim)
}

// ModelResult is the verdict of a single member.
type ModelResult struct {
	Name       string  `json:"name"`
	Model      string  `json:"model"`
	Prediction string  `json:"prediction"`
	IsSpam     bool    `json:"is_spam"`
	Confidence float64 `json:"confidence"`
}

// Member is a fitted model that can vote.
type Member interface {
	Name() string
	PredictWithConfidence(in Input) (ModelResult, error)
}

func newResult(name string, label corpus.Label, confidence float64) ModelResult {
	return ModelResult{
		Name:       name,
		Model:      DisplayName(name),
		Prediction: string(label),
		IsSpam:     label == corpus.Spam,
		Confidence: confidence,
	}
}

// linearConfidence maps the distance of a raw regression output from the
// threshold to [50, 95].
func linearConfidence(raw float64) float64 {
	return errors.ClipValue(math.Abs(raw-linearThreshold)*200, linearMinConfidence, linearMaxConfidence)
}

type linearMember struct {
	model *linear_model.LinearRegression
	codec *preprocessing.LabelEncoder
}

func (m linearMember) Name() string { return NameLinear }

// PredictWithConfidence thresholds the raw output at 0.5; above means the spam code.
func (m linearMember) PredictWithConfidence(in Input) (ModelResult, error) {
	raw, err := m.model.PredictRow(in.matrix(), 0)
	if err != nil {
		return ModelResult{}, err
	}
	code, err := m.codec.Encode(string(corpus.Ham))
	if err != nil {
		return ModelResult{}, err
	}
	if raw > linearThreshold {
		if code, err = m.codec.Encode(string(corpus.Spam)); err != nil {
			return ModelResult{}, err
		}
	}
	label, err := m.codec.Decode(code)
	if err != nil {
		return ModelResult{}, err
	}
	return newResult(NameLinear, corpus.Label(label), linearConfidence(raw)), nil
}

// probabilistic members report the highest class probability as confidence
func probabilisticResult(name string, codec *preprocessing.LabelEncoder, code int, proba mat.Matrix) (ModelResult, error) {
	label, err := codec.Decode(code)
	if err != nil {
		return ModelResult{}, err
	}
	_, cols := proba.Dims()
	best := 0.0
	for j := 0; j < cols; j++ {
		best = math.Max(best, proba.At(0, j))
	}
	return newResult(name, corpus.Label(label), best*100), nil
}

type logisticMember struct {
	model *linear_model.LogisticRegression
	codec *preprocessing.LabelEncoder
}

func (m logisticMember) Name() string { return NameLogistic }

func (m logisticMember) PredictWithConfidence(in Input) (ModelResult, error) {
	X := in.matrix()
	pred, err := m.model.Predict(X)
	if err != nil {
		return ModelResult{}, err
	}
	proba, err := m.model.PredictProba(X)
	if err != nil {
		return ModelResult{}, err
	}
	return probabilisticResult(NameLogistic, m.codec, int(pred.At(0, 0)), proba)
}

type pipelineMember struct {
	model *pipeline.TextPipeline
	codec *preprocessing.LabelEncoder
}

func (m pipelineMember) Name() string { return NamePipeline }

// PredictWithConfidence ignores the shared features; the pipeline vectorizes the raw text itself.
func (m pipelineMember) PredictWithConfidence(in Input) (ModelResult, error) {
	docs := []string{in.Text}
	pred, err := m.model.PredictText(docs)
	if err != nil {
		return ModelResult{}, err
	}
	proba, err := m.model.PredictProbaText(docs)
	if err != nil {
		return ModelResult{}, err
	}
	return probabilisticResult(NamePipeline, m.codec, pred[0], proba)
}

type svmMember struct {
	model *svm.SVC
	codec *preprocessing.LabelEncoder
}

func (m svmMember) Name() string { return NameSVM }

// PredictWithConfidence takes the label from the decision sign and the
// confidence from the calibrated probabilities, so the two can disagree near the boundary.
func (m svmMember) PredictWithConfidence(in Input) (ModelResult, error) {
	X := in.matrix()
	pred, err := m.model.Predict(X)
	if err != nil {
		return ModelResult{}, err
	}
	proba, err := m.model.PredictProba(X)
	if err != nil {
		return ModelResult{}, err
	}
	return probabilisticResult(NameSVM, m.codec, int(pred.At(0, 0)), proba)
}
