package ensemble

import (
	"context"
	"sync"
	"testing"

	"github.com/YuminosukeSato/spamensemble/corpus"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/pkg/log"
	"github.com/YuminosukeSato/spamensemble/sklearn/svm"
)

var (
	sharedOnce   sync.Once
	sharedBundle *Bundle
	sharedReport Report
	sharedErr    error
)

// trainedBundle trains once on the bundled corpus and shares the result
// between tests. Tests must not modify it.
func trainedBundle(t *testing.T) (*Bundle, Report) {
	t.Helper()
	sharedOnce.Do(func() {
		sharedBundle, sharedReport, sharedErr = NewTrainer().Train(context.Background(), corpus.Default())
	})
	if sharedErr != nil {
		t.Fatalf("Train() error = %v", sharedErr)
	}
	return sharedBundle, sharedReport
}

func TestTrainer_Train_DefaultCorpus(t *testing.T) {
	b, report := trainedBundle(t)

	if err := b.validate(); err != nil {
		t.Fatalf("trained bundle is incomplete: %v", err)
	}
	if b.ID == "" || report.BundleID != b.ID {
		t.Errorf("bundle id = %q, report id = %q", b.ID, report.BundleID)
	}
	if b.TrainedAt.IsZero() {
		t.Error("TrainedAt is not set")
	}
	if report.TrainSize != 40 || report.TestSize != 10 {
		t.Errorf("split = %d/%d, want 40/10", report.TrainSize, report.TestSize)
	}
	if report.Features != b.Vectorizer.NFeatures() || report.Features == 0 {
		t.Errorf("Features = %d, vectorizer has %d", report.Features, b.Vectorizer.NFeatures())
	}
	if report.Features > DefaultMaxFeatures {
		t.Errorf("Features = %d exceeds the cap", report.Features)
	}
	if len(report.Accuracy) != len(MemberNames) {
		t.Fatalf("Accuracy has %d entries, want %d", len(report.Accuracy), len(MemberNames))
	}
	for _, name := range MemberNames {
		acc, ok := report.Accuracy[name]
		if !ok {
			t.Errorf("no accuracy for %s", name)
			continue
		}
		// 10 test rows, so every accuracy is a multiple of 0.1
		if acc < 0 || acc > 1 {
			t.Errorf("accuracy of %s = %v, outside [0, 1]", name, acc)
		}
	}
	if report.LinearMSE < 0 {
		t.Errorf("LinearMSE = %v", report.LinearMSE)
	}
	if got := b.Codec.Classes(); len(got) != 2 || got[0] != "ham" || got[1] != "spam" {
		t.Errorf("codec classes = %v", got)
	}
}

func TestTrainer_Train_Deterministic(t *testing.T) {
	fixed := func(tr *Trainer) { tr.newBundleID = func() string { return "fixed" } }

	b1, r1, err := NewTrainer(fixed).Train(context.Background(), corpus.Default())
	if err != nil {
		t.Fatal(err)
	}
	b2, r2, err := NewTrainer(fixed).Train(context.Background(), corpus.Default())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range MemberNames {
		if r1.Accuracy[name] != r2.Accuracy[name] {
			t.Errorf("%s accuracy differs: %v vs %v", name, r1.Accuracy[name], r2.Accuracy[name])
		}
	}

	msg := "Claim your free prize money now"
	p1, err := b1.Predict("promo@lottery.com", msg)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := b2.Predict("promo@lottery.com", msg)
	if err != nil {
		t.Fatal(err)
	}
	if p1.Confidence != p2.Confidence || p1.FinalPrediction != p2.FinalPrediction {
		t.Errorf("predictions differ: %+v vs %+v", p1, p2)
	}
}

func TestTrainer_Train_InvalidCorpus(t *testing.T) {
	tests := []struct {
		name     string
		examples []corpus.Example
	}{
		{"empty", nil},
		{"single class", []corpus.Example{{Text: "a", Label: corpus.Spam}, {Text: "b", Label: corpus.Spam}}},
		{"unknown label", []corpus.Example{{Text: "a", Label: "eggs"}, {Text: "b", Label: corpus.Ham}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, err := NewTrainer().Train(context.Background(), tt.examples)
			if err == nil {
				t.Fatal("expected error")
			}
			if b != nil {
				t.Error("bundle returned alongside an error")
			}
			var te *errors.TrainingError
			if !errors.As(err, &te) {
				t.Fatalf("error %v is not a TrainingError", err)
			}
		})
	}
}

func TestTrainer_Train_TooFewRowsToSplit(t *testing.T) {
	examples := []corpus.Example{
		{Text: "win money", Label: corpus.Spam},
		{Text: "team meeting", Label: corpus.Ham},
	}
	_, _, err := NewTrainer().Train(context.Background(), examples)
	var te *errors.TrainingError
	if !errors.As(err, &te) {
		t.Fatalf("error %v is not a TrainingError", err)
	}
	if te.Phase != log.PhaseSplit {
		t.Errorf("Phase = %q, want %q", te.Phase, log.PhaseSplit)
	}
}

func TestTrainer_Train_MemberFailureAborts(t *testing.T) {
	tr := NewTrainer(WithSVMOptions(svm.WithC(-1)))
	b, _, err := tr.Train(context.Background(), corpus.Default())
	if b != nil {
		t.Error("bundle returned after a failed fit")
	}
	var te *errors.TrainingError
	if !errors.As(err, &te) {
		t.Fatalf("error %v is not a TrainingError", err)
	}
	if te.Model != NameSVM || te.Phase != log.PhaseTraining {
		t.Errorf("TrainingError = %s/%s, want %s/%s", te.Model, te.Phase, NameSVM, log.PhaseTraining)
	}
}

func TestTrainer_Train_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewTrainer().Train(ctx, corpus.Default())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestTrainer_Train_Logs(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	_, report, err := NewTrainer(WithTrainerLogger(logger)).Train(context.Background(), corpus.Default())
	if err != nil {
		t.Fatal(err)
	}
	if !logger.ContainsMessage("training finished") {
		t.Error("missing completion log")
	}
	if !logger.ContainsField(log.BundleIDKey, report.BundleID) {
		t.Error("completion log lacks the bundle id")
	}
	if !logger.ContainsField(log.ModelNameKey, NameSVM) {
		t.Error("no per-model accuracy log for svm")
	}
}
