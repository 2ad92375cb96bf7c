package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FormatVersion is the artifact layout written by Encode.
const FormatVersion = 1

type component struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

type document struct {
	FormatVersion  int        `json:"format_version"`
	Model          *component `json:"model"`
	Scaler         *component `json:"scaler"`
	FeatureColumns []string   `json:"feature_columns"`
	Metadata       Metadata   `json:"metadata"`
}

var modelDecoders = map[string]func(json.RawMessage) (Predictor, error){
	KindDecisionTree: func(raw json.RawMessage) (Predictor, error) {
		t := &DecisionTreeRegressor{}
		if err := json.Unmarshal(raw, t); err != nil {
			return nil, err
		}
		if err := t.validate(); err != nil {
			return nil, err
		}
		return t, nil
	},
	KindLinearRegression: func(raw json.RawMessage) (Predictor, error) {
		m := &LinearRegression{}
		if err := json.Unmarshal(raw, m); err != nil {
			return nil, err
		}
		if len(m.Coefficients) == 0 {
			return nil, fmt.Errorf("%w: linear model has no coefficients", ErrInvalidArtifact)
		}
		return m, nil
	},
}

var scalerDecoders = map[string]func(json.RawMessage) (Transformer, error){
	KindStandardScaler: func(raw json.RawMessage) (Transformer, error) {
		s := &StandardScaler{}
		if err := json.Unmarshal(raw, s); err != nil {
			return nil, err
		}
		if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
			return nil, fmt.Errorf("%w: scaler mean and scale must be non-empty and equal length", ErrInvalidArtifact)
		}
		for j, v := range s.Scale {
			if v == 0 {
				return nil, fmt.Errorf("%w: scaler scale[%d] is zero", ErrInvalidArtifact, j)
			}
		}
		return s, nil
	},
}

// Encode serializes a.
func Encode(a *Artifact) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	model, err := encodeComponent(a.Model)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	scaler, err := encodeComponent(a.Scaler)
	if err != nil {
		return nil, fmt.Errorf("scaler: %w", err)
	}
	return json.MarshalIndent(document{
		FormatVersion:  FormatVersion,
		Model:          model,
		Scaler:         scaler,
		FeatureColumns: a.FeatureColumns,
		Metadata:       a.Metadata,
	}, "", "  ")
}

// Decode parses an artifact produced by Encode.
func Decode(data []byte) (*Artifact, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	if doc.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format_version %d", ErrInvalidArtifact, doc.FormatVersion)
	}
	if doc.Model == nil {
		return nil, fmt.Errorf("%w: model is missing", ErrInvalidArtifact)
	}
	if doc.Scaler == nil {
		return nil, fmt.Errorf("%w: scaler is missing", ErrInvalidArtifact)
	}

	decodeModel, ok := modelDecoders[doc.Model.Type]
	if !ok {
		return nil, fmt.Errorf("%w: model %q", ErrUnknownType, doc.Model.Type)
	}
	model, err := decodeModel(doc.Model.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: model: %w", ErrInvalidArtifact, err)
	}

	decodeScaler, ok := scalerDecoders[doc.Scaler.Type]
	if !ok {
		return nil, fmt.Errorf("%w: scaler %q", ErrUnknownType, doc.Scaler.Type)
	}
	scaler, err := decodeScaler(doc.Scaler.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: scaler: %w", ErrInvalidArtifact, err)
	}

	a := &Artifact{
		Model:          model,
		Scaler:         scaler,
		FeatureColumns: doc.FeatureColumns,
		Metadata:       doc.Metadata,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Save writes a to path, creating parent directories as needed. The file
// is written to a temporary sibling first and renamed into place.
func Save(path string, a *Artifact) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Load reads and decodes the artifact at path. A missing file is reported
// with an error matching os.ErrNotExist.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("model file not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	a, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return a, nil
}

func encodeComponent(v any) (*component, error) {
	k, ok := v.(Kinded)
	if !ok {
		return nil, fmt.Errorf("%w: %T cannot be serialized", ErrUnknownType, v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &component{Type: k.Kind(), Params: raw}, nil
}
