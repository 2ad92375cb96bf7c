package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// KindLinearRegression is the artifact type name of LinearRegression.
const KindLinearRegression = "linear_regression"

// Singular values below rankTolerance times the largest are treated as zero.
const rankTolerance = 1e-12

// LinearRegression is an ordinary least squares model with an intercept.
type LinearRegression struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// Kind implements Kinded.
func (m *LinearRegression) Kind() string { return KindLinearRegression }

// NFeatures implements Predictor.
func (m *LinearRegression) NFeatures() int { return len(m.Coefficients) }

// Fit centers X and y and solves the least squares problem through a thin
// SVD. Rank deficient data, such as a constant or duplicated column, gets
// the minimum-norm solution.
func (m *LinearRegression) Fit(X [][]float64, y []float64) error {
	width, err := checkMatrix(X)
	if err != nil {
		return err
	}
	if len(y) != len(X) {
		return fmt.Errorf("%w: %d rows but %d targets", ErrDimensionMismatch, len(X), len(y))
	}

	a := dense(X)
	xMean := make([]float64, width)
	col := make([]float64, len(X))
	for j := 0; j < width; j++ {
		mat.Col(col, j, a)
		xMean[j] = stat.Mean(col, nil)
		floats.AddConst(-xMean[j], col)
		a.SetCol(j, col)
	}
	yMean := stat.Mean(y, nil)
	b := mat.NewVecDense(len(y), nil)
	for i, v := range y {
		b.SetVec(i, v-yMean)
	}

	coef := make([]float64, width)
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return ErrNoConvergence
	}
	if rank := svd.Rank(rankTolerance); rank > 0 {
		var beta mat.VecDense
		svd.SolveVecTo(&beta, b, rank)
		for j := range coef {
			coef[j] = beta.AtVec(j)
		}
	}

	m.Coefficients = coef
	m.Intercept = yMean - floats.Dot(xMean, coef)
	return nil
}

// Predict implements Predictor.
func (m *LinearRegression) Predict(x []float64) (float64, error) {
	if len(m.Coefficients) == 0 {
		return 0, ErrNotFitted
	}
	if len(x) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: model expects %d features, got %d", ErrDimensionMismatch, len(m.Coefficients), len(x))
	}
	return m.Intercept + floats.Dot(m.Coefficients, x), nil
}
