// Package pipeline holds the fitted regression pipeline: a feature scaler,
// a regressor and the ordered feature columns that bind request fields to
// vector positions. It also owns the on-disk artifact format.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel kinds for pipeline errors.
var (
	ErrNotFitted         = errors.New("estimator not fitted")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrEmptyDataset      = errors.New("empty dataset")
	ErrNoConvergence     = errors.New("least squares did not converge")
	ErrUnknownType       = errors.New("unknown estimator type")
	ErrInvalidArtifact   = errors.New("invalid artifact")
)

// Transformer maps a raw feature vector to the space the model was fitted in.
type Transformer interface {
	Transform(x []float64) ([]float64, error)
	// NFeatures is the fitted input width, 0 when unfitted.
	NFeatures() int
}

// Predictor maps a transformed feature vector to a single value.
type Predictor interface {
	Predict(x []float64) (float64, error)
	// NFeatures is the fitted input width, 0 when unfitted.
	NFeatures() int
}

// Kinded is implemented by estimators that can be written to an artifact.
type Kinded interface {
	Kind() string
}

// Metadata describes how an artifact was produced. All fields are optional.
type Metadata struct {
	CreatedAt *time.Time        `json:"created_at,omitempty"`
	NSamples  int               `json:"n_samples,omitempty"`
	TrainR2   *float64          `json:"train_r2,omitempty"`
	TestR2    *float64          `json:"test_r2,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

// Artifact is the loaded pipeline. It is never mutated after construction.
type Artifact struct {
	Model          Predictor
	Scaler         Transformer
	FeatureColumns []string
	Metadata       Metadata
}

// Validate checks the structural invariants every artifact must satisfy.
// Width agreement between columns, scaler and model is checked separately
// by CheckWidths.
func (a *Artifact) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil artifact", ErrInvalidArtifact)
	}
	if a.Model == nil {
		return fmt.Errorf("%w: model is missing", ErrInvalidArtifact)
	}
	if a.Scaler == nil {
		return fmt.Errorf("%w: scaler is missing", ErrInvalidArtifact)
	}
	if len(a.FeatureColumns) == 0 {
		return fmt.Errorf("%w: feature_columns is empty", ErrInvalidArtifact)
	}
	seen := make(map[string]struct{}, len(a.FeatureColumns))
	for i, col := range a.FeatureColumns {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("%w: feature_columns[%d] is blank", ErrInvalidArtifact, i)
		}
		if _, dup := seen[col]; dup {
			return fmt.Errorf("%w: duplicate feature column %q", ErrInvalidArtifact, col)
		}
		seen[col] = struct{}{}
	}
	return nil
}

// CheckWidths reports whether the scaler and model were fitted on as many
// columns as FeatureColumns lists.
func (a *Artifact) CheckWidths() error {
	n := len(a.FeatureColumns)
	if w := a.Scaler.NFeatures(); w != n {
		return fmt.Errorf("%w: scaler fitted on %d features, artifact lists %d", ErrDimensionMismatch, w, n)
	}
	if w := a.Model.NFeatures(); w != n {
		return fmt.Errorf("%w: model fitted on %d features, artifact lists %d", ErrDimensionMismatch, w, n)
	}
	return nil
}

// Vector orders values by FeatureColumns. Columns absent from values are
// reported in missing; their slots hold 0.
func (a *Artifact) Vector(values map[string]float64) (x []float64, missing []string) {
	x = make([]float64, len(a.FeatureColumns))
	for i, col := range a.FeatureColumns {
		v, ok := values[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		x[i] = v
	}
	return x, missing
}

// KindOf returns the serialized type name of an estimator, or its Go type
// when it cannot be serialized.
func KindOf(v any) string {
	if k, ok := v.(Kinded); ok {
		return k.Kind()
	}
	return fmt.Sprintf("%T", v)
}
