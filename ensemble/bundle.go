package ensemble

import (
	"strings"
	"time"

	"github.com/YuminosukeSato/spamensemble/corpus"
	"github.com/YuminosukeSato/spamensemble/heuristic"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/preprocessing"
	"github.com/YuminosukeSato/spamensemble/sklearn/feature_extraction"
	"github.com/YuminosukeSato/spamensemble/sklearn/linear_model"
	"github.com/YuminosukeSato/spamensemble/sklearn/pipeline"
	"github.com/YuminosukeSato/spamensemble/sklearn/svm"
)

// Bundle is one consistent set of fitted artifacts. Every field is set once
// by the trainer or the store and never mutated afterwards.
type Bundle struct {
	ID        string
	TrainedAt time.Time

	Vectorizer *feature_extraction.TfidfVectorizer
	Codec      *preprocessing.LabelEncoder

	Linear   *linear_model.LinearRegression
	Logistic *linear_model.LogisticRegression
	Pipeline *pipeline.TextPipeline
	SVM      *svm.SVC
}

// Result is the ensemble verdict with the heuristic explanation merged in.
type Result struct {
	BundleID        string        `json:"bundle_id"`
	FinalPrediction string        `json:"final_prediction"`
	IsSpam          bool          `json:"is_spam"`
	Confidence      float64       `json:"confidence"`
	SpamVotes       int           `json:"spam_votes"`
	HamVotes        int           `json:"ham_votes"`
	SpamScore       int           `json:"spam_score"`
	HamScore        int           `json:"ham_score"`
	Reasons         []string      `json:"reasons"`
	ModelResults    []ModelResult `json:"model_results"`
}

// validate checks that every artifact is present and fitted.
func (b *Bundle) validate() error {
	if b == nil {
		return errors.WithStack(errors.ErrNotTrained)
	}
	checks := []struct {
		name   string
		fitted bool
	}{
		{"vectorizer", b.Vectorizer != nil && b.Vectorizer.IsFitted()},
		{"label_encoder", b.Codec != nil && b.Codec.IsFitted()},
		{NameLinear, b.Linear != nil && b.Linear.IsFitted()},
		{NameLogistic, b.Logistic != nil && b.Logistic.IsFitted()},
		{NamePipeline, b.Pipeline != nil && b.Pipeline.IsFitted()},
		{NameSVM, b.SVM != nil && b.SVM.IsFitted()},
	}
	for _, c := range checks {
		if !c.fitted {
			return errors.NewNotFittedError(c.name, "Bundle")
		}
	}
	return nil
}

// Members returns the four voters in voting order.
func (b *Bundle) Members() []Member {
	return []Member{
		linearMember{model: b.Linear, codec: b.Codec},
		logisticMember{model: b.Logistic, codec: b.Codec},
		pipelineMember{model: b.Pipeline, codec: b.Codec},
		svmMember{model: b.SVM, codec: b.Codec},
	}
}

// Predict classifies one message. The sender address is part of the
// classified text. A 2-2 tie resolves to ham, and the ensemble confidence
// is the plain mean of the four member confidences.
func (b *Bundle) Predict(email, content string) (*Result, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	text := email + " " + content
	features, err := b.Vectorizer.Transform(text)
	if err != nil {
		return nil, errors.Wrap(err, "vectorize message")
	}
	in := Input{Text: text, Features: features}

	members := b.Members()
	results := make([]ModelResult, 0, len(members))
	for _, m := range members {
		mr, err := m.PredictWithConfidence(in)
		if err != nil {
			return nil, errors.NewModelError("Bundle.Predict", m.Name(), err)
		}
		results = append(results, mr)
	}
	res := vote(results)
	res.BundleID = b.ID

	analysis := heuristic.Analyzer{}.Analyze(email, content)
	res.Reasons = analysis.Reasons
	res.SpamScore = analysis.SpamScore
	res.HamScore = analysis.HamScore
	return res, nil
}

// vote tallies member verdicts. Spam needs strictly more votes than ham, so
// a tie is ham. Confidence is the mean over all members, agreeing or not.
func vote(results []ModelResult) *Result {
	res := &Result{ModelResults: results}
	if len(results) == 0 {
		res.FinalPrediction = strings.ToUpper(string(corpus.Ham))
		return res
	}
	var total float64
	for _, mr := range results {
		if mr.IsSpam {
			res.SpamVotes++
		} else {
			res.HamVotes++
		}
		total += mr.Confidence
	}
	final := corpus.Ham
	if res.SpamVotes > res.HamVotes {
		final = corpus.Spam
	}
	res.FinalPrediction = strings.ToUpper(string(final))
	res.IsSpam = final == corpus.Spam
	res.Confidence = total / float64(len(results))
	return res
}
