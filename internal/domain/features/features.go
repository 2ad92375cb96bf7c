// Package features describes the request features the service accepts and
// generates synthetic training rows over them.
package features

import "math/rand"

// Feature is a named input column with an inclusive accepted range.
type Feature struct {
	Name string
	Min  float64
	Max  float64
}

// Contains reports whether v lies within the accepted range.
func (f Feature) Contains(v float64) bool { return v >= f.Min && v <= f.Max }

// Schema lists the request features in artifact column order.
var Schema = []Feature{
	{Name: "Age", Min: 0, Max: 120},
	{Name: "DiastolicBP", Min: 40, Max: 150},
	{Name: "BS", Min: 0, Max: 30},
	{Name: "BodyTemp", Min: 95, Max: 106},
	{Name: "HeartRate", Min: 30, Max: 200},
}

// Names returns the column names of Schema in order.
func Names() []string {
	out := make([]string, len(Schema))
	for i, f := range Schema {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the feature called name.
func Lookup(name string) (Feature, bool) {
	for _, f := range Schema {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// Sample draws one in-range row keyed by feature name.
func Sample(rng *rand.Rand) map[string]float64 {
	out := make(map[string]float64, len(Schema))
	for _, f := range Schema {
		out[f.Name] = f.Min + rng.Float64()*(f.Max-f.Min)
	}
	return out
}

// Synthetic draws n in-range rows in Schema order with a noisy linear
// target. The same seed always yields the same dataset.
func Synthetic(n int, rng *rand.Rand) (X [][]float64, y []float64) {
	X = make([][]float64, n)
	y = make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(Schema))
		for j, f := range Schema {
			row[j] = f.Min + rng.Float64()*(f.Max-f.Min)
		}
		X[i] = row
		y[i] = target(row) + rng.NormFloat64()*2
	}
	return X, y
}

func target(row []float64) float64 {
	age, dbp, bs, temp, hr := row[0], row[1], row[2], row[3], row[4]
	return 0.3*age + 0.2*dbp + 1.5*bs + 0.8*(temp-98) + 0.05*hr
}
