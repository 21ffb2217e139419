package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// ModelWeights は線形モデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（LinearRegression, LogisticRegression）
	ModelType string `json:"model_type"`

	// Version は重みフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は重み係数。多クラスのロジスティック回帰では行優先で連結される
	Coefficients []float64 `json:"coefficients"`

	// Intercepts は切片。二値・回帰モデルでは1要素
	Intercepts []float64 `json:"intercepts"`

	// Classes は学習時のクラスコード（分類器のみ）
	Classes []int `json:"classes,omitempty"`

	// NFeatures は特徴量の数
	NFeatures int `json:"n_features"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Checksum は係数と切片のSHA-256（破損検出用）
	Checksum string `json:"checksum,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	data, err := json.Marshal(mw)
	if err != nil {
		return nil, errors.Wrap(err, "marshal model weights")
	}
	return data, nil
}

// FromJSON はJSON形式からModelWeightsをデシリアライズし、妥当性とチェックサムを検証する
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "unmarshal model weights")
	}
	return mw.Validate()
}

// Seal はチェックサムを計算して設定する
func (mw *ModelWeights) Seal() error {
	sum, err := mw.computeChecksum()
	if err != nil {
		return err
	}
	mw.Checksum = sum
	return nil
}

func (mw *ModelWeights) computeChecksum() (string, error) {
	data, err := json.Marshal(struct {
		C []float64 `json:"c"`
		I []float64 `json:"i"`
	}{mw.Coefficients, mw.Intercepts})
	if err != nil {
		return "", errors.Wrap(err, "checksum")
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return errors.NewValidationError("coefficients", "unfitted model should not have coefficients", len(mw.Coefficients))
	}
	if mw.IsFitted && len(mw.Intercepts) == 0 {
		return errors.NewValidationError("intercepts", "fitted model must have intercepts", 0)
	}
	if mw.Checksum != "" {
		sum, err := mw.computeChecksum()
		if err != nil {
			return err
		}
		if sum != mw.Checksum {
			return errors.NewValueError("ModelWeights.Validate", "checksum mismatch: weights may be corrupted")
		}
	}
	return nil
}
