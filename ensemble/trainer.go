package ensemble

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/spamensemble/core/model"
	"github.com/YuminosukeSato/spamensemble/corpus"
	"github.com/YuminosukeSato/spamensemble/metrics"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/pkg/log"
	"github.com/YuminosukeSato/spamensemble/preprocessing"
	"github.com/YuminosukeSato/spamensemble/sklearn/feature_extraction"
	"github.com/YuminosukeSato/spamensemble/sklearn/linear_model"
	"github.com/YuminosukeSato/spamensemble/sklearn/model_selection"
	"github.com/YuminosukeSato/spamensemble/sklearn/pipeline"
	"github.com/YuminosukeSato/spamensemble/sklearn/svm"
)

// Defaults used by NewTrainer.
const (
	DefaultTestSize    = 0.2
	DefaultSeed        = 42
	DefaultMaxFeatures = 5000
)

// Report summarises one training run. Accuracy is keyed by member name.
type Report struct {
	BundleID  string             `json:"bundle_id"`
	Accuracy  map[string]float64 `json:"accuracy"`
	TrainSize int                `json:"train_size"`
	TestSize  int                `json:"test_size"`
	Features  int                `json:"features"`
	LinearMSE float64            `json:"linear_mse"`
	LinearR2  float64            `json:"linear_r2"`
	Duration  time.Duration      `json:"duration"`
}

// Trainer fits a complete Bundle from labelled examples.
type Trainer struct {
	testSize    float64
	seed        int64
	vectorizer  []feature_extraction.Option
	logistic    []linear_model.LogisticRegressionOption
	pipeline    []pipeline.Option
	svm         []svm.Option
	logger      log.Logger
	now         func() time.Time
	newBundleID func() string
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithTestSize sets the held-out fraction.
func WithTestSize(size float64) TrainerOption {
	return func(t *Trainer) { t.testSize = size }
}

// WithSeed sets the seed of the split and of the SVM calibration folds.
func WithSeed(seed int64) TrainerOption {
	return func(t *Trainer) { t.seed = seed }
}

// WithVectorizerOptions replaces the options of the shared vectorizer.
func WithVectorizerOptions(opts ...feature_extraction.Option) TrainerOption {
	return func(t *Trainer) { t.vectorizer = opts }
}

// WithLogisticOptions replaces the options of the logistic member.
func WithLogisticOptions(opts ...linear_model.LogisticRegressionOption) TrainerOption {
	return func(t *Trainer) { t.logistic = opts }
}

// WithPipelineOptions replaces the options of the pipeline member.
func WithPipelineOptions(opts ...pipeline.Option) TrainerOption {
	return func(t *Trainer) { t.pipeline = opts }
}

// WithSVMOptions replaces the options of the SVM member.
func WithSVMOptions(opts ...svm.Option) TrainerOption {
	return func(t *Trainer) { t.svm = opts }
}

// WithTrainerLogger sets the logger.
func WithTrainerLogger(logger log.Logger) TrainerOption {
	return func(t *Trainer) { t.logger = logger }
}

// NewTrainer returns a trainer with the production configuration:
// 80/20 split with seed 42, a 5000-term unigram+bigram vectorizer,
// balanced logistic regression, the default text pipeline and a balanced RBF SVM.
func NewTrainer(opts ...TrainerOption) *Trainer {
	t := &Trainer{
		testSize: DefaultTestSize,
		seed:     DefaultSeed,
		vectorizer: []feature_extraction.Option{
			feature_extraction.WithMaxFeatures(DefaultMaxFeatures),
			feature_extraction.WithNgramRange(1, 2),
		},
		logistic: []linear_model.LogisticRegressionOption{
			linear_model.WithLRMaxIter(1000),
			linear_model.WithLRClassWeight("balanced"),
		},
		svm: []svm.Option{
			svm.WithClassWeight("balanced"),
		},
		logger:      log.Nop(),
		now:         time.Now,
		newBundleID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// split holds one partition of the corpus.
type split struct {
	texts  []string
	labels []string
	codes  []int
}

func (s split) target() *mat.Dense {
	y := mat.NewDense(len(s.codes), 1, nil)
	for i, c := range s.codes {
		y.Set(i, 0, float64(c))
	}
	return y
}

// Train fits the vectorizer, the label codec and the four members on the
// training partition and scores them on the held-out partition. Any fit
// failure aborts the run and no bundle is returned.
func (t *Trainer) Train(ctx context.Context, examples []corpus.Example) (*Bundle, Report, error) {
	start := t.now()
	if err := corpus.Validate(examples); err != nil {
		return nil, Report{}, errors.NewTrainingError("corpus", log.PhaseInitialize, err)
	}

	train, test, err := t.split(examples)
	if err != nil {
		return nil, Report{}, errors.NewTrainingError("corpus", log.PhaseSplit, err)
	}
	logger := t.logger.With(log.ComponentKey, "trainer")
	logger.Info("corpus split",
		log.SamplesKey, len(examples),
		log.TrainSizeKey, len(train.texts),
		log.TestSizeKey, len(test.texts),
		log.RandomSeedKey, t.seed,
	)

	b := &Bundle{
		ID:         t.newBundleID(),
		Codec:      preprocessing.NewLabelEncoder(),
		Vectorizer: feature_extraction.NewTfidfVectorizer(t.vectorizer...),
		Linear:     linear_model.NewLinearRegression(),
		Logistic:   linear_model.NewLogisticRegression(t.logistic...),
		Pipeline:   pipeline.NewTextPipeline(t.pipeline...),
		SVM:        svm.NewSVC(append([]svm.Option{svm.WithRandomState(t.seed)}, t.svm...)...),
	}

	if err := t.fit(ctx, "label_encoder", log.PhaseVectorize, func() error {
		err := b.Codec.Fit(train.labels)
		if err != nil {
			return err
		}
		if train.codes, err = b.Codec.EncodeAll(train.labels); err != nil {
			return err
		}
		test.codes, err = b.Codec.EncodeAll(test.labels)
		return err
	}); err != nil {
		return nil, Report{}, err
	}

	var XTrain, XTest *feature_extraction.SparseMatrix
	if err := t.fit(ctx, "vectorizer", log.PhaseVectorize, func() (err error) {
		if XTrain, err = b.Vectorizer.FitTransform(train.texts); err != nil {
			return err
		}
		XTest, err = b.Vectorizer.TransformAll(test.texts)
		return err
	}); err != nil {
		return nil, Report{}, err
	}
	logger.Info("vectorizer fitted", log.FeaturesKey, b.Vectorizer.NFeatures())

	yTrain := train.target()
	fits := []struct {
		name  string
		model any
		fn    func() error
	}{
		{NameLinear, b.Linear, func() error { return b.Linear.Fit(XTrain, yTrain) }},
		{NameLogistic, b.Logistic, func() error { return b.Logistic.Fit(XTrain, yTrain) }},
		{NamePipeline, b.Pipeline, func() error { return b.Pipeline.FitText(train.texts, train.codes) }},
		{NameSVM, b.SVM, func() error { return b.SVM.Fit(XTrain, yTrain) }},
	}
	for _, f := range fits {
		fitStart := t.now()
		if err := t.fit(ctx, f.name, log.PhaseTraining, f.fn); err != nil {
			return nil, Report{}, err
		}
		fields := []any{log.ModelNameKey, f.name, log.DurationMsKey, t.now().Sub(fitStart).Milliseconds()}
		if pg, ok := f.model.(model.ParameterGetter); ok {
			fields = append(fields, "params", pg.GetParams())
		}
		logger.Debug("member fitted", fields...)
	}

	report := Report{
		BundleID:  b.ID,
		Accuracy:  make(map[string]float64, len(MemberNames)),
		TrainSize: len(train.texts),
		TestSize:  len(test.texts),
		Features:  b.Vectorizer.NFeatures(),
	}
	if err := t.evaluate(b, XTest, test, &report); err != nil {
		return nil, Report{}, err
	}

	b.TrainedAt = t.now()
	report.Duration = b.TrainedAt.Sub(start)
	for _, name := range MemberNames {
		logger.Info("held-out accuracy",
			log.ModelNameKey, name,
			log.AccuracyKey, report.Accuracy[name],
		)
	}
	logger.Info("training finished",
		log.BundleIDKey, b.ID,
		log.MSEKey, report.LinearMSE,
		log.R2ScoreKey, report.LinearR2,
		log.DurationMsKey, report.Duration.Milliseconds(),
	)
	return b, report, nil
}

// fit runs one fitting step, turning panics and errors into a TrainingError.
func (t *Trainer) fit(ctx context.Context, name, phase string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTrainingError(name, phase, err)
	}
	if err := errors.SafeExecute(name+".Fit", fn); err != nil {
		return errors.NewTrainingError(name, phase, err)
	}
	return nil
}

// split partitions the examples, stratified by label.
func (t *Trainer) split(examples []corpus.Example) (train, test split, err error) {
	strata := make([]int, len(examples))
	for i, e := range examples {
		if e.Label == corpus.Spam {
			strata[i] = 1
		}
	}
	trainIdx, testIdx, err := model_selection.TrainTestSplit(len(examples),
		model_selection.WithTestSize(t.testSize),
		model_selection.WithRandomState(t.seed),
		model_selection.WithStratify(strata),
	)
	if err != nil {
		return split{}, split{}, err
	}
	pick := func(idx []int) split {
		s := split{texts: make([]string, len(idx)), labels: make([]string, len(idx))}
		for i, j := range idx {
			s.texts[i] = examples[j].Text
			s.labels[i] = string(examples[j].Label)
		}
		return s
	}
	return pick(trainIdx), pick(testIdx), nil
}

// evaluate fills the held-out accuracy of every member. The linear member is
// scored by thresholding its raw output at 0.5.
func (t *Trainer) evaluate(b *Bundle, XTest *feature_extraction.SparseMatrix, test split, report *Report) error {
	spamCode, err := b.Codec.Encode(string(corpus.Spam))
	if err != nil {
		return errors.NewTrainingError("label_encoder", log.PhaseEvaluation, err)
	}
	hamCode, err := b.Codec.Encode(string(corpus.Ham))
	if err != nil {
		return errors.NewTrainingError("label_encoder", log.PhaseEvaluation, err)
	}

	raw, err := b.Linear.Predict(XTest)
	if err != nil {
		return errors.NewTrainingError(NameLinear, log.PhaseEvaluation, err)
	}
	linearPred := make([]int, len(test.codes))
	for i := range linearPred {
		linearPred[i] = hamCode
		if raw.At(i, 0) > linearThreshold {
			linearPred[i] = spamCode
		}
	}
	if report.LinearMSE, err = metrics.MSE(test.target(), raw); err != nil {
		return errors.NewTrainingError(NameLinear, log.PhaseEvaluation, err)
	}
	if report.LinearR2, err = metrics.R2Score(test.target(), raw); err != nil {
		return errors.NewTrainingError(NameLinear, log.PhaseEvaluation, err)
	}

	logisticPred, err := b.Logistic.Predict(XTest)
	if err != nil {
		return errors.NewTrainingError(NameLogistic, log.PhaseEvaluation, err)
	}
	pipelinePred, err := b.Pipeline.PredictText(test.texts)
	if err != nil {
		return errors.NewTrainingError(NamePipeline, log.PhaseEvaluation, err)
	}
	svmPred, err := b.SVM.Predict(XTest)
	if err != nil {
		return errors.NewTrainingError(NameSVM, log.PhaseEvaluation, err)
	}

	preds := map[string][]int{
		NameLinear:   linearPred,
		NameLogistic: codesOf(logisticPred),
		NamePipeline: pipelinePred,
		NameSVM:      codesOf(svmPred),
	}
	for _, name := range MemberNames {
		acc, err := metrics.AccuracyScore(test.codes, preds[name])
		if err != nil {
			return errors.NewTrainingError(name, log.PhaseEvaluation, err)
		}
		report.Accuracy[name] = acc
	}
	return nil
}

// codesOf reads an n x 1 prediction matrix as class codes.
func codesOf(m mat.Matrix) []int {
	rows, _ := m.Dims()
	out := make([]int, rows)
	for i := range out {
		out[i] = int(m.At(i, 0))
	}
	return out
}
