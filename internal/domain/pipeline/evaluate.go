package pipeline

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// R2Score is the coefficient of determination of predictions against y.
// A constant y scores 1 when matched exactly and 0 otherwise.
func R2Score(y, predicted []float64) (float64, error) {
	if len(y) == 0 {
		return 0, ErrEmptyDataset
	}
	if len(y) != len(predicted) {
		return 0, fmt.Errorf("%w: %d targets but %d predictions", ErrDimensionMismatch, len(y), len(predicted))
	}
	if _, variance := stat.PopMeanVariance(y, nil); variance == 0 {
		if floats.Equal(y, predicted) {
			return 1, nil
		}
		return 0, nil
	}
	return stat.RSquaredFrom(predicted, y, nil), nil
}

// Evaluate scores model on X after scaling each row with scaler.
func Evaluate(model Predictor, scaler Transformer, X [][]float64, y []float64) (float64, error) {
	predicted := make([]float64, len(X))
	for i, row := range X {
		t, err := scaler.Transform(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		p, err := model.Predict(t)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		predicted[i] = p
	}
	return R2Score(y, predicted)
}

// Split shuffles rows with rng and holds out testRatio of them. A positive
// ratio keeps at least one row on each side when there are two or more rows.
func Split(X [][]float64, y []float64, testRatio float64, rng *rand.Rand) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	perm := rng.Perm(len(X))
	nTest := int(float64(len(X)) * testRatio)
	switch {
	case testRatio <= 0 || len(X) < 2:
		nTest = 0
	default:
		nTest = min(max(nTest, 1), len(X)-1)
	}
	for k, i := range perm {
		if k < nTest {
			testX = append(testX, X[i])
			testY = append(testY, y[i])
			continue
		}
		trainX = append(trainX, X[i])
		trainY = append(trainY, y[i])
	}
	return trainX, trainY, testX, testY
}
