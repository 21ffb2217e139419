// Package pipeline chains a text vectorizer and a classifier into one
// estimator that consumes raw documents.
package pipeline

import (
	"github.com/YuminosukeSato/spamensemble/core/model"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/sklearn/feature_extraction"
	"github.com/YuminosukeSato/spamensemble/sklearn/linear_model"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxFeatures caps the vocabulary of the inner vectorizer.
const DefaultMaxFeatures = 3000

var (
	_ model.TextClassifier = (*TextPipeline)(nil)
	_ model.Persistable    = (*TextPipeline)(nil)
)

// TextPipeline owns a private TfidfVectorizer and a LogisticRegression.
// Its vocabulary is independent of any vectorizer used elsewhere.
type TextPipeline struct {
	state *model.StateManager

	tfidfOpts []feature_extraction.Option
	lrOpts    []linear_model.LogisticRegressionOption

	tfidf *feature_extraction.TfidfVectorizer
	clf   *linear_model.LogisticRegression
}

// Option configures a TextPipeline.
type Option func(*TextPipeline)

// WithVectorizerOptions replaces the options of the inner vectorizer.
func WithVectorizerOptions(opts ...feature_extraction.Option) Option {
	return func(p *TextPipeline) { p.tfidfOpts = opts }
}

// WithClassifierOptions replaces the options of the inner classifier.
func WithClassifierOptions(opts ...linear_model.LogisticRegressionOption) Option {
	return func(p *TextPipeline) { p.lrOpts = opts }
}

// NewTextPipeline creates a pipeline with 1-3 gram TF-IDF capped at 3000
// terms followed by LogisticRegression(C=0.5, max_iter=1000).
func NewTextPipeline(opts ...Option) *TextPipeline {
	p := &TextPipeline{
		state: model.NewStateManager(),
		tfidfOpts: []feature_extraction.Option{
			feature_extraction.WithMaxFeatures(DefaultMaxFeatures),
			feature_extraction.WithNgramRange(1, 3),
		},
		lrOpts: []linear_model.LogisticRegressionOption{
			linear_model.WithLRC(0.5),
			linear_model.WithLRMaxIter(1000),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tfidf = feature_extraction.NewTfidfVectorizer(p.tfidfOpts...)
	p.clf = linear_model.NewLogisticRegression(p.lrOpts...)
	return p
}

// FitText fits the vectorizer on docs and then the classifier on the
// transformed documents. y holds one class code per document.
func (p *TextPipeline) FitText(docs []string, y []int) error {
	if len(docs) == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if len(docs) != len(y) {
		return errors.NewDimensionError("TextPipeline.FitText", len(docs), len(y), 0)
	}
	X, err := p.tfidf.FitTransform(docs)
	if err != nil {
		return errors.Wrap(err, "pipeline: tfidf")
	}
	target := mat.NewDense(len(y), 1, nil)
	for i, c := range y {
		target.Set(i, 0, float64(c))
	}
	if err := p.clf.Fit(X, target); err != nil {
		return errors.Wrap(err, "pipeline: classifier")
	}
	p.state.SetDimensions(p.tfidf.NFeatures(), len(docs))
	p.state.SetFitted()
	return nil
}

func (p *TextPipeline) transform(method string, docs []string) (mat.Matrix, error) {
	if err := p.state.RequireFitted("TextPipeline", method); err != nil {
		return nil, err
	}
	X, err := p.tfidf.TransformAll(docs)
	if err != nil {
		return nil, err
	}
	return X, nil
}

// PredictText returns the class code of each document.
func (p *TextPipeline) PredictText(docs []string) ([]int, error) {
	X, err := p.transform("PredictText", docs)
	if err != nil {
		return nil, err
	}
	pred, err := p.clf.Predict(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(docs))
	for i := range out {
		out[i] = int(pred.At(i, 0))
	}
	return out, nil
}

// PredictProbaText returns class probabilities (n_docs x n_classes) in
// the column order of Classes.
func (p *TextPipeline) PredictProbaText(docs []string) (mat.Matrix, error) {
	X, err := p.transform("PredictProbaText", docs)
	if err != nil {
		return nil, err
	}
	return p.clf.PredictProba(X)
}

// Classes returns the class codes seen during FitText in ascending order.
func (p *TextPipeline) Classes() []int { return p.clf.Classes() }

// Vectorizer exposes the inner vectorizer, mostly for diagnostics.
func (p *TextPipeline) Vectorizer() *feature_extraction.TfidfVectorizer { return p.tfidf }

// IsFitted reports whether FitText has completed.
func (p *TextPipeline) IsFitted() bool { return p.state.IsFitted() }

type pipelineSnapshot struct {
	Vectorizer []byte
	Classifier []byte
	State      model.ModelState
}

// MarshalBinary encodes both steps into one gob blob.
func (p *TextPipeline) MarshalBinary() ([]byte, error) {
	if err := p.state.RequireFitted("TextPipeline", "MarshalBinary"); err != nil {
		return nil, err
	}
	vec, err := p.tfidf.MarshalBinary()
	if err != nil {
		return nil, err
	}
	clf, err := p.clf.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return model.EncodeGob(pipelineSnapshot{Vectorizer: vec, Classifier: clf, State: p.state.GetState()})
}

// UnmarshalBinary restores a pipeline produced by MarshalBinary.
func (p *TextPipeline) UnmarshalBinary(data []byte) error {
	var snap pipelineSnapshot
	if err := model.DecodeGob(data, &snap); err != nil {
		return err
	}
	tfidf := feature_extraction.NewTfidfVectorizer()
	if err := tfidf.UnmarshalBinary(snap.Vectorizer); err != nil {
		return errors.Wrap(err, "pipeline: tfidf")
	}
	clf := linear_model.NewLogisticRegression()
	if err := clf.UnmarshalBinary(snap.Classifier); err != nil {
		return errors.Wrap(err, "pipeline: classifier")
	}
	p.tfidf, p.clf = tfidf, clf
	p.state = model.NewStateManager()
	p.state.SetState(snap.State)
	return nil
}
