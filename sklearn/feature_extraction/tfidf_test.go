package feature_extraction

import (
	"math"
	"reflect"
	"testing"

	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

var testCorpus = []string{
	"Win a free prize now",
	"Free money, click now!",
	"Team meeting moved to Monday",
	"Please review the project plan",
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"I am a x_y token", []string{"am", "x_y", "token"}},
		{"won $1,000,000!", []string{"won", "000", "000"}},
		{"", nil},
		{"Café déjà vu", []string{"café", "déjà", "vu"}},
	}
	for _, tt := range tests {
		if got := Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTransformBeforeFit(t *testing.T) {
	v := NewTfidfVectorizer()
	_, err := v.Transform("free money")
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
	if _, err := v.TransformAll([]string{"x"}); err == nil {
		t.Error("TransformAll before Fit should fail")
	}
}

func TestFitVocabularyAndIDF(t *testing.T) {
	v := NewTfidfVectorizer(WithNgramRange(1, 2))
	if err := v.Fit(testCorpus); err != nil {
		t.Fatal(err)
	}

	vocab := v.Vocabulary()
	for i := 1; i < len(vocab); i++ {
		if vocab[i-1] >= vocab[i] {
			t.Fatalf("vocabulary not sorted: %q >= %q", vocab[i-1], vocab[i])
		}
	}
	for _, term := range vocab {
		if _, stop := v.stopSet[term]; stop {
			t.Errorf("stop word %q leaked into vocabulary", term)
		}
	}

	idx := indexOf(vocab, "free")
	if idx < 0 {
		t.Fatal("expected 'free' in vocabulary")
	}
	if indexOf(vocab, "free prize") < 0 {
		t.Error("expected bigram 'free prize'")
	}
	// 'free' occurs in 2 of 4 documents
	want := math.Log(5.0/3.0) + 1
	if got := v.IDF()[idx]; math.Abs(got-want) > 1e-12 {
		t.Errorf("idf(free) = %v, want %v", got, want)
	}
}

func TestMaxFeaturesKeepsMostFrequent(t *testing.T) {
	v := NewTfidfVectorizer(WithMaxFeatures(2))
	err := v.Fit([]string{"spam spam spam eggs", "spam eggs ham", "toast"})
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Vocabulary(); !reflect.DeepEqual(got, []string{"eggs", "spam"}) {
		t.Errorf("Vocabulary() = %v, want [eggs spam]", got)
	}
}

func TestTransformIsNormalizedAndDeterministic(t *testing.T) {
	v := NewTfidfVectorizer(WithNgramRange(1, 2))
	if err := v.Fit(testCorpus); err != nil {
		t.Fatal(err)
	}

	a, err := v.Transform("free prize meeting")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := v.Transform("free prize meeting")
	if !reflect.DeepEqual(a, b) {
		t.Error("Transform is not deterministic")
	}

	var norm float64
	for _, x := range a.Values {
		norm += x * x
	}
	if math.Abs(norm-1) > 1e-12 {
		t.Errorf("squared L2 norm = %v, want 1", norm)
	}

	empty, err := v.Transform("")
	if err != nil {
		t.Fatal(err)
	}
	if empty.NNZ() != 0 || empty.Dim != v.NFeatures() {
		t.Errorf("empty text should give a zero vector of dim %d, got %+v", v.NFeatures(), empty)
	}
}

func TestFitErrors(t *testing.T) {
	if err := NewTfidfVectorizer().Fit(nil); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("empty corpus: got %v", err)
	}
	if err := NewTfidfVectorizer().Fit([]string{"the and of", "a"}); err == nil {
		t.Error("stop-word-only corpus should fail")
	}
	if err := NewTfidfVectorizer(WithNgramRange(2, 1)).Fit(testCorpus); err == nil {
		t.Error("invalid n-gram range should fail")
	}
}

func TestSparseMatrixMatchesDense(t *testing.T) {
	v := NewTfidfVectorizer()
	X, err := v.FitTransform(testCorpus)
	if err != nil {
		t.Fatal(err)
	}
	dense := X.ToDense()
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if X.At(i, j) != dense.At(i, j) {
				t.Fatalf("mismatch at (%d,%d)", i, j)
			}
		}
	}
	if X.T().At(0, 1) != X.At(1, 0) {
		t.Error("transpose view mismatch")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	v := NewTfidfVectorizer(WithMaxFeatures(50), WithNgramRange(1, 2))
	if err := v.Fit(testCorpus); err != nil {
		t.Fatal(err)
	}
	data, err := v.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	restored := NewTfidfVectorizer()
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	for _, doc := range append(testCorpus, "unseen words free") {
		a, _ := v.Transform(doc)
		b, err := restored.Transform(doc)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("restored vectorizer differs on %q", doc)
		}
	}

	if _, err := NewTfidfVectorizer().MarshalBinary(); err == nil {
		t.Error("marshalling an unfitted vectorizer should fail")
	}
}

func indexOf(terms []string, term string) int {
	for i, t := range terms {
		if t == term {
			return i
		}
	}
	return -1
}
