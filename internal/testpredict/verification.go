package testpredict

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/regpredict/pkg/logger"
)

// verifyIdempotence resubmits the first successful results and requires
// bit-identical predictions.
func verifyIdempotence(ctx context.Context, config *Config, client *HTTPClient, results []Result, stats *Stats) error {
	logger.Get().Info(ctx, "verifying idempotence", logger.Int("recheck", config.Recheck))

	url := config.BaseURL + "/predict"
	for _, first := range results {
		if stats.Rechecked >= config.Recheck {
			break
		}
		if first.Err != "" {
			continue
		}
		again := submitSingleRequest(ctx, client, url, first.Request)
		stats.Rechecked++
		if again.Err != "" {
			return fmt.Errorf("recheck of %s failed: %s", first.Request.ID, again.Err)
		}
		if again.Prediction != first.Prediction {
			stats.Mismatches++
			logger.Get().Warn(ctx, "prediction changed between identical requests",
				logger.String("id", first.Request.ID),
				logger.Float64("first", first.Prediction),
				logger.Float64("second", again.Prediction))
		}
	}

	if stats.Mismatches > 0 {
		return fmt.Errorf("%d of %d rechecked predictions differed", stats.Mismatches, stats.Rechecked)
	}
	logger.Get().Info(ctx, "idempotence verified", logger.Int("rechecked", stats.Rechecked))
	return nil
}

// verifyRangeChecks sends every out-of-range check and requires a 422 for each.
func verifyRangeChecks(ctx context.Context, config *Config, client *HTTPClient, checks []RangeCheck, stats *Stats) error {
	logger.Get().Info(ctx, "verifying range validation", logger.Int("checks", len(checks)))

	url := config.BaseURL + "/predict"
	var accepted []string
	for _, p := range checks {
		status, err := client.Post(ctx, url, "", p.Body, nil)
		if err != nil {
			return fmt.Errorf("range check %s=%g: %w", p.Feature, p.Value, err)
		}
		stats.RangeChecksSent++
		if status == http.StatusUnprocessableEntity {
			stats.RangeChecksRejected++
			continue
		}
		accepted = append(accepted, fmt.Sprintf("%s=%g (status %d)", p.Feature, p.Value, status))
	}

	if len(accepted) > 0 {
		return fmt.Errorf("out-of-range values were not rejected: %v", accepted)
	}
	logger.Get().Info(ctx, "range validation verified", logger.Int("rejected", stats.RangeChecksRejected))
	return nil
}
