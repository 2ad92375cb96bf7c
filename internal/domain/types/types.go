// Package types contains common types used across the application
package types

import "time"

// Health is the liveness view of the prediction service.
type Health struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Ready reports whether predictions can be served.
func (h Health) Ready() bool { return h.ModelLoaded }

// ModelInfo describes a loaded model artifact.
type ModelInfo struct {
	Path           string            `json:"path"`
	ModelType      string            `json:"model_type"`
	ScalerType     string            `json:"scaler_type"`
	FeatureColumns []string          `json:"feature_columns"`
	NFeatures      int               `json:"n_features"`
	LoadedAt       time.Time         `json:"loaded_at"`
	CreatedAt      *time.Time        `json:"created_at,omitempty"`
	TrainR2        *float64          `json:"train_r2,omitempty"`
	TestR2         *float64          `json:"test_r2,omitempty"`
	Params         map[string]string `json:"params,omitempty"`
}

// Prediction is the successful result of one inference.
type Prediction struct {
	Prediction float64 `json:"prediction"`
	Status     string  `json:"status"`
}

// PredictionSuccess is the status carried by every successful Prediction.
const PredictionSuccess = "success"

// NewPrediction wraps a model output as a successful Prediction.
func NewPrediction(v float64) Prediction {
	return Prediction{Prediction: v, Status: PredictionSuccess}
}
