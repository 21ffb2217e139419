package ensemble

import (
	"time"

	"github.com/YuminosukeSato/spamensemble/core/model"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/preprocessing"
	"github.com/YuminosukeSato/spamensemble/sklearn/feature_extraction"
	"github.com/YuminosukeSato/spamensemble/sklearn/linear_model"
	"github.com/YuminosukeSato/spamensemble/sklearn/pipeline"
	"github.com/YuminosukeSato/spamensemble/sklearn/svm"
)

// Artifact names. A stored bundle is exactly these six blobs.
const (
	ArtifactLinear       = "linear_model"
	ArtifactLogistic     = "logistic_model"
	ArtifactPipeline     = "pipeline_model"
	ArtifactSVM          = "svm_model"
	ArtifactVectorizer   = "vectorizer"
	ArtifactLabelEncoder = "label_encoder"
)

// ArtifactNames lists every artifact of a bundle.
var ArtifactNames = []string{
	ArtifactLinear, ArtifactLogistic, ArtifactPipeline, ArtifactSVM, ArtifactVectorizer, ArtifactLabelEncoder,
}

// envelope stamps each blob with its bundle so a mixed set is detected on load.
type envelope struct {
	BundleID  string
	TrainedAt time.Time
	Kind      string
	Payload   []byte
}

// artifacts maps each artifact name to its value in b.
func (b *Bundle) artifacts() map[string]model.Persistable {
	return map[string]model.Persistable{
		ArtifactLinear:       b.Linear,
		ArtifactLogistic:     b.Logistic,
		ArtifactPipeline:     b.Pipeline,
		ArtifactSVM:          b.SVM,
		ArtifactVectorizer:   b.Vectorizer,
		ArtifactLabelEncoder: b.Codec,
	}
}

// EncodeBundle serialises b into its six named blobs.
func EncodeBundle(b *Bundle) (map[string][]byte, error) {
	if err := b.validate(); err != nil {
		return nil, errors.NewStorageError("encode", "bundle", err)
	}
	blobs := make(map[string][]byte, len(ArtifactNames))
	for name, a := range b.artifacts() {
		payload, err := a.MarshalBinary()
		if err != nil {
			return nil, errors.NewStorageError("encode", name, err)
		}
		data, err := model.EncodeGob(envelope{BundleID: b.ID, TrainedAt: b.TrainedAt, Kind: name, Payload: payload})
		if err != nil {
			return nil, errors.NewStorageError("encode", name, err)
		}
		blobs[name] = data
	}
	return blobs, nil
}

// damaged reports a stored set that was read but cannot be rebuilt.
func damaged(name string, err error) error {
	return errors.Mark(errors.NewStorageError("decode", name, err), errors.ErrDamagedBundle)
}

// DecodeBundle rebuilds a bundle from its blobs. No blobs at all is
// ErrNotFound. A partial set, a corrupt blob or blobs from different bundles
// is a StorageError marked with ErrDamagedBundle.
func DecodeBundle(blobs map[string][]byte) (*Bundle, error) {
	present := 0
	for _, name := range ArtifactNames {
		if len(blobs[name]) > 0 {
			present++
		}
	}
	if present == 0 {
		return nil, errors.WithStack(errors.ErrNotFound)
	}

	b := &Bundle{
		Vectorizer: feature_extraction.NewTfidfVectorizer(),
		Codec:      preprocessing.NewLabelEncoder(),
		Linear:     linear_model.NewLinearRegression(),
		Logistic:   linear_model.NewLogisticRegression(),
		Pipeline:   pipeline.NewTextPipeline(),
		SVM:        svm.NewSVC(),
	}
	targets := b.artifacts()
	for i, name := range ArtifactNames {
		data := blobs[name]
		if len(data) == 0 {
			return nil, damaged(name, errors.New("artifact missing from a partial bundle"))
		}
		var env envelope
		if err := model.DecodeGob(data, &env); err != nil {
			return nil, damaged(name, err)
		}
		if env.Kind != name {
			return nil, damaged(name, errors.Newf("blob holds %q", env.Kind))
		}
		if i == 0 {
			b.ID, b.TrainedAt = env.BundleID, env.TrainedAt
		} else if env.BundleID != b.ID {
			return nil, damaged(name,
				errors.Newf("belongs to bundle %s, expected %s", env.BundleID, b.ID))
		}
		if err := targets[name].UnmarshalBinary(env.Payload); err != nil {
			return nil, damaged(name, err)
		}
	}
	if err := b.validate(); err != nil {
		return nil, damaged("bundle", err)
	}
	return b, nil
}
