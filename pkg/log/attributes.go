package log

// Model and operation context.
const (
	// ModelNameKey identifies the ensemble member or estimator.
	// Examples: "linear_regression", "svm", "TfidfVectorizer"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey    = "data.samples"
	FeaturesKey   = "data.features"
	TrainSizeKey  = "data.train_size"
	TestSizeKey   = "data.test_size"
	CorpusPathKey = "data.corpus_path"
)

// Metrics and timing.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	LossKey       = "metrics.loss"
	MSEKey        = "metrics.mse"
	R2ScoreKey    = "metrics.r2_score"
	IterationKey  = "training.iteration"
	RandomSeedKey = "config.random_seed"
)

// Ensemble and prediction context.
const (
	BundleIDKey   = "ensemble.bundle_id"
	SpamVotesKey  = "ensemble.spam_votes"
	HamVotesKey   = "ensemble.ham_votes"
	VerdictKey    = "ensemble.verdict"
	ConfidenceKey = "preds.confidence"
	StoreKey      = "store.backend"
	ArtifactKey   = "store.artifact"
)

// Error context.
const (
	ErrorCodeKey = "error.code"
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationLoad      = "load"
	OperationSave      = "save"

	PhaseSplit      = "split"
	PhaseVectorize  = "vectorize"
	PhaseTraining   = "training"
	PhaseEvaluation = "evaluation"
	PhasePersist    = "persist"
	PhaseInference  = "inference"
	PhaseInitialize = "initialize"

	ErrorNotFitted   = "NOT_FITTED"
	ErrorNotTrained  = "NOT_TRAINED"
	ErrorEmptyData   = "EMPTY_DATA"
	ErrorConvergence = "CONVERGENCE_FAILURE"
	ErrorStorage     = "STORAGE_FAILURE"
)
