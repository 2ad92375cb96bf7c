package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// KindStandardScaler is the artifact type name of StandardScaler.
const KindStandardScaler = "standard_scaler"

// StandardScaler centers each column on its mean and divides by its
// population standard deviation. Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Kind implements Kinded.
func (s *StandardScaler) Kind() string { return KindStandardScaler }

// NFeatures implements Transformer.
func (s *StandardScaler) NFeatures() int { return len(s.Mean) }

// Fit computes per-column mean and scale from X.
func (s *StandardScaler) Fit(X [][]float64) error {
	width, err := checkMatrix(X)
	if err != nil {
		return err
	}
	m := dense(X)
	mean := make([]float64, width)
	scale := make([]float64, width)
	col := make([]float64, len(X))
	for j := 0; j < width; j++ {
		mat.Col(col, j, m)
		mean[j], scale[j] = stat.PopMeanStdDev(col, nil)
		if scale[j] < 10*math.SmallestNonzeroFloat64 || math.IsNaN(scale[j]) {
			scale[j] = 1
		}
	}

	s.Mean = mean
	s.Scale = scale
	return nil
}

// Transform implements Transformer.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(s.Mean) == 0 {
		return nil, ErrNotFitted
	}
	if len(s.Scale) != len(s.Mean) {
		return nil, fmt.Errorf("%w: scaler has %d means and %d scales", ErrDimensionMismatch, len(s.Mean), len(s.Scale))
	}
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrDimensionMismatch, len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	floats.SubTo(out, x, s.Mean)
	floats.Div(out, s.Scale)
	return out, nil
}

// TransformAll applies Transform to every row.
func (s *StandardScaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		t, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// checkMatrix returns the common row width of X.
func checkMatrix(X [][]float64) (int, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return 0, ErrEmptyDataset
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d features, expected %d", ErrDimensionMismatch, i, len(row), width)
		}
	}
	return width, nil
}

// dense copies X into a row-major matrix. X must be rectangular.
func dense(X [][]float64) *mat.Dense {
	m := mat.NewDense(len(X), len(X[0]), nil)
	for i, row := range X {
		m.SetRow(i, row)
	}
	return m
}
