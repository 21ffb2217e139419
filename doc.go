// Package spamensemble is a spam detection service built from four
// scikit-learn style estimators written in Go.
//
// A message (sender address plus body) is vectorized once with TF-IDF and
// classified by linear regression, logistic regression, a private
// vectorizer + logistic regression pipeline and an RBF support vector
// machine. The majority vote decides the verdict (a tie is ham), the mean
// member confidence is reported, and a keyword heuristic adds human
// readable reasons.
//
// # Installation
//
//	go install github.com/YuminosukeSato/spamensemble/cmd/spamensemble@latest
//
// # Quick Start
//
//	spamensemble config init config.yml
//	spamensemble --config config.yml train --chart accuracy.png
//	spamensemble --config config.yml predict --email promo@example.com "You won a FREE prize"
//	spamensemble --config config.yml serve
//
// From Go:
//
//	store := ensemble.NewFileStore("models")
//	m := ensemble.NewManager(store, ensemble.NewTrainer(), corpus.Static(corpus.Default()), logger)
//	if err := m.EnsureReady(ctx); err != nil {
//	    return err
//	}
//	res, err := m.Predict(ctx, "promo@example.com", "Click here to claim your prize")
//
// # Packages
//
//   - ensemble: training, voting, artifact bundles and their stores (files, Redis)
//   - corpus: the labelled training corpus, YAML corpus files and change watching
//   - heuristic: keyword based spam/ham scores and reasons
//   - sklearn/feature_extraction: TF-IDF vectorizer over sparse rows
//   - sklearn/linear_model: LinearRegression, LogisticRegression
//   - sklearn/pipeline: vectorizer + classifier text pipeline
//   - sklearn/svm: RBF SVC with Platt probabilities
//   - sklearn/model_selection: stratified train/test split
//   - preprocessing: LabelEncoder
//   - metrics: accuracy, MSE, R²
//   - history: detection log on SQLite or PostgreSQL
//   - server: JSON HTTP API
//   - report: accuracy charts
//   - config: YAML configuration
//   - core/model, core/parallel: estimator interfaces, state, persistence and parallel helpers
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # HTTP API
//
//	POST /api/detect   {"email": "...", "content": "..."}
//	GET  /api/detect   usage description
//	GET  /api/logs     last detections, newest first
//	POST /api/train    retrain and report held-out accuracy
//	GET  /api/health   liveness and readiness
//	GET  /ping         pong
package spamensemble
