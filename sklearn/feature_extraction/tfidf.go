// Package feature_extraction turns raw text into TF-IDF weighted sparse vectors.
// It follows scikit-learn's TfidfVectorizer defaults: lower-casing, tokens of
// two or more word characters, stop words removed before n-gram generation,
// smooth idf and L2-normalised rows.
package feature_extraction

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/YuminosukeSato/spamensemble/core/model"
	"github.com/YuminosukeSato/spamensemble/core/parallel"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

const (
	modelName = "TfidfVectorizer"

	// rows above which TransformAll fans out across cores
	parallelThreshold = 256
)

var (
	_ model.ParameterGetter = (*TfidfVectorizer)(nil)
	_ model.Persistable     = (*TfidfVectorizer)(nil)
)

// TfidfVectorizer converts documents to TF-IDF feature vectors.
type TfidfVectorizer struct {
	state *model.StateManager

	// Hyperparameters
	maxFeatures int // 0 means unlimited
	ngramMin    int
	ngramMax    int
	stopWords   []string

	// Fitted attributes
	vocabulary map[string]int
	terms      []string // column index -> term
	idf        []float64
	stopSet    map[string]struct{}
}

// Option configures a TfidfVectorizer.
type Option func(*TfidfVectorizer)

// WithMaxFeatures keeps only the n most frequent terms of the corpus.
func WithMaxFeatures(n int) Option {
	return func(v *TfidfVectorizer) { v.maxFeatures = n }
}

// WithNgramRange sets the inclusive n-gram range.
func WithNgramRange(minN, maxN int) Option {
	return func(v *TfidfVectorizer) {
		v.ngramMin = minN
		v.ngramMax = maxN
	}
}

// WithStopWords replaces the stop word list. Pass nil to keep every token.
func WithStopWords(words []string) Option {
	return func(v *TfidfVectorizer) { v.stopWords = words }
}

// EnglishStopWords returns a copy of the built-in English stop word list.
func EnglishStopWords() []string {
	return append([]string(nil), englishStopWords...)
}

// NewTfidfVectorizer creates a vectorizer with unigrams, English stop words
// and no vocabulary cap.
func NewTfidfVectorizer(opts ...Option) *TfidfVectorizer {
	v := &TfidfVectorizer{
		state:     model.NewStateManager(),
		ngramMin:  1,
		ngramMax:  1,
		stopWords: englishStopWords,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.stopSet = stopWordSet(v.stopWords)
	return v
}

// Fit learns the vocabulary and idf weights from corpus.
func (v *TfidfVectorizer) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if v.ngramMin < 1 || v.ngramMax < v.ngramMin {
		return errors.NewValidationError("ngram_range", "must satisfy 1 <= min <= max", [2]int{v.ngramMin, v.ngramMax})
	}
	if v.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be non-negative", v.maxFeatures)
	}

	termCount := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]struct{})
		for _, term := range v.analyze(doc) {
			termCount[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				docFreq[term]++
			}
		}
	}
	if len(termCount) == 0 {
		return errors.NewValueError("TfidfVectorizer.Fit", "empty vocabulary; perhaps the documents only contain stop words")
	}

	terms := make([]string, 0, len(termCount))
	for term := range termCount {
		terms = append(terms, term)
	}
	if v.maxFeatures > 0 && len(terms) > v.maxFeatures {
		// most frequent first, ties alphabetical
		sort.Slice(terms, func(i, j int) bool {
			ci, cj := termCount[terms[i]], termCount[terms[j]]
			if ci != cj {
				return ci > cj
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.maxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for j, term := range terms {
		vocabulary[term] = j
		idf[j] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	v.terms = terms
	v.vocabulary = vocabulary
	v.idf = idf
	v.state.SetDimensions(len(terms), len(corpus))
	v.state.SetFitted()
	return nil
}

// Transform maps one document to its L2-normalised TF-IDF vector.
// Terms outside the vocabulary are ignored; an empty document yields a zero vector.
func (v *TfidfVectorizer) Transform(text string) (FeatureVector, error) {
	if err := v.state.RequireFitted(modelName, "Transform"); err != nil {
		return FeatureVector{}, err
	}
	return v.transform(text), nil
}

// TransformAll vectorizes every document into a SparseMatrix.
func (v *TfidfVectorizer) TransformAll(docs []string) (*SparseMatrix, error) {
	if err := v.state.RequireFitted(modelName, "TransformAll"); err != nil {
		return nil, err
	}
	rows := make([]FeatureVector, len(docs))
	parallel.ParallelizeWithThreshold(len(docs), parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			rows[i] = v.transform(docs[i])
		}
	})
	return NewSparseMatrix(rows, len(v.terms)), nil
}

// FitTransform fits on docs and returns their vectors.
func (v *TfidfVectorizer) FitTransform(docs []string) (*SparseMatrix, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	return v.TransformAll(docs)
}

func (v *TfidfVectorizer) transform(text string) FeatureVector {
	counts := make(map[int]float64)
	for _, term := range v.analyze(text) {
		if j, ok := v.vocabulary[term]; ok {
			counts[j]++
		}
	}

	indices := make([]int, 0, len(counts))
	for j := range counts {
		indices = append(indices, j)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var norm float64
	for k, j := range indices {
		w := counts[j] * v.idf[j]
		values[k] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range values {
			values[k] /= norm
		}
	}
	return FeatureVector{Dim: len(v.terms), Indices: indices, Values: values}
}

// analyze lower-cases text, extracts tokens, drops stop words and emits n-grams.
func (v *TfidfVectorizer) analyze(text string) []string {
	tokens := Tokenize(text)
	if len(v.stopSet) > 0 {
		kept := tokens[:0]
		for _, tok := range tokens {
			if _, stop := v.stopSet[tok]; !stop {
				kept = append(kept, tok)
			}
		}
		tokens = kept
	}

	if v.ngramMax == 1 {
		return tokens
	}
	grams := make([]string, 0, len(tokens)*(v.ngramMax-v.ngramMin+1))
	for n := v.ngramMin; n <= v.ngramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			grams = append(grams, strings.Join(tokens[i:i+n], " "))
		}
	}
	return grams
}

// Tokenize lower-cases text and returns its runs of letters, digits and
// underscores that are at least two characters long.
func Tokenize(text string) []string {
	var tokens []string
	isWord := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !isWord(r) }) {
		if len([]rune(field)) >= 2 {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// Vocabulary returns the fitted terms in column order.
func (v *TfidfVectorizer) Vocabulary() []string {
	return append([]string(nil), v.terms...)
}

// IDF returns the fitted inverse document frequencies in column order.
func (v *TfidfVectorizer) IDF() []float64 {
	return append([]float64(nil), v.idf...)
}

// NFeatures returns the vocabulary size.
func (v *TfidfVectorizer) NFeatures() int { return len(v.terms) }

// IsFitted reports whether Fit has completed.
func (v *TfidfVectorizer) IsFitted() bool { return v.state.IsFitted() }

// GetParams returns the hyperparameters.
func (v *TfidfVectorizer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_features": v.maxFeatures,
		"ngram_range":  [2]int{v.ngramMin, v.ngramMax},
		"stop_words":   len(v.stopWords),
	}
}

type tfidfSnapshot struct {
	MaxFeatures int
	NgramMin    int
	NgramMax    int
	StopWords   []string
	Terms       []string
	IDF         []float64
	State       model.ModelState
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (v *TfidfVectorizer) MarshalBinary() ([]byte, error) {
	if err := v.state.RequireFitted(modelName, "MarshalBinary"); err != nil {
		return nil, err
	}
	return model.EncodeGob(tfidfSnapshot{
		MaxFeatures: v.maxFeatures,
		NgramMin:    v.ngramMin,
		NgramMax:    v.ngramMax,
		StopWords:   v.stopWords,
		Terms:       v.terms,
		IDF:         v.idf,
		State:       v.state.GetState(),
	})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (v *TfidfVectorizer) UnmarshalBinary(data []byte) error {
	var snap tfidfSnapshot
	if err := model.DecodeGob(data, &snap); err != nil {
		return err
	}
	if len(snap.Terms) != len(snap.IDF) {
		return errors.NewDimensionError("TfidfVectorizer.UnmarshalBinary", len(snap.Terms), len(snap.IDF), 1)
	}
	vocabulary := make(map[string]int, len(snap.Terms))
	for j, term := range snap.Terms {
		vocabulary[term] = j
	}
	v.state = model.NewStateManager()
	v.state.SetState(snap.State)
	v.maxFeatures = snap.MaxFeatures
	v.ngramMin = snap.NgramMin
	v.ngramMax = snap.NgramMax
	v.stopWords = snap.StopWords
	v.stopSet = stopWordSet(snap.StopWords)
	v.terms = snap.Terms
	v.idf = snap.IDF
	v.vocabulary = vocabulary
	return nil
}
