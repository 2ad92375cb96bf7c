package testpredict

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/okian/regpredict/internal/domain/features"
	"github.com/okian/regpredict/pkg/logger"
)

// Distance outside a bound used by the out-of-range checks.
const boundOffset = 1.0

// generateRequests creates in-bounds requests tagged with the run id.
// The same seed always yields the same requests.
func generateRequests(ctx context.Context, config *Config, stats *Stats) ([]Request, error) {
	if config.NumRequests <= 0 {
		return nil, fmt.Errorf("number of requests must be positive, got %d", config.NumRequests)
	}
	logger.Get().Info(ctx, "generating requests",
		logger.Int("numRequests", config.NumRequests),
		logger.Any("seed", config.Seed))

	rng := rand.New(rand.NewSource(config.Seed))
	requests := make([]Request, config.NumRequests)
	for i := range requests {
		requests[i] = Request{
			ID:     fmt.Sprintf("%s-%d", stats.RunID, i),
			Values: features.Sample(rng),
		}
	}
	stats.RequestsGenerated = len(requests)
	return requests, nil
}

// generateRangeChecks builds two requests per feature, one just below its
// minimum and one just above its maximum. Other features keep the
// in-bounds values of base.
func generateRangeChecks(base map[string]float64) []RangeCheck {
	checks := make([]RangeCheck, 0, 2*len(features.Schema))
	for _, f := range features.Schema {
		for _, v := range []float64{f.Min - boundOffset, f.Max + boundOffset} {
			body := make(map[string]float64, len(base))
			for k, bv := range base {
				body[k] = bv
			}
			body[f.Name] = v
			checks = append(checks, RangeCheck{Feature: f.Name, Value: v, Body: body})
		}
	}
	return checks
}
