package testpredict

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/okian/regpredict/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete prediction smoke test.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	if config.Recheck <= 0 {
		config.Recheck = DefaultRecheck
	}

	logger.Get().Info(ctx, "starting prediction smoke test",
		logger.String("runID", stats.RunID),
		logger.String("baseURL", config.BaseURL),
		logger.Int("requests", config.NumRequests),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	client := newHTTPClient(config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate requests
	requests, err := generateRequests(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("request generation failed: %w", err)
	}

	// Step 3: Submit requests concurrently
	results := submitRequests(ctx, config, client, requests, stats)
	if stats.RequestsFailed > 0 {
		return stats, fmt.Errorf("%d of %d requests failed", stats.RequestsFailed, stats.RequestsSubmitted)
	}

	// Step 4: Resubmit a sample and compare
	if err := verifyIdempotence(ctx, config, client, results, stats); err != nil {
		return stats, fmt.Errorf("idempotence check failed: %w", err)
	}

	// Step 5: Exercise the range validation
	if err := verifyRangeChecks(ctx, config, client, generateRangeChecks(requests[0].Values), stats); err != nil {
		return stats, fmt.Errorf("range validation check failed: %w", err)
	}

	// Step 6: Save results to file
	if config.OutputFile != "" {
		if err := saveResultsToFile(ctx, config.OutputFile, results); err != nil {
			logger.Get().Warn(ctx, "failed to save results to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	out := config.Out
	if out == nil {
		out = os.Stdout
	}
	displayFinalStats(out, stats)

	logger.Get().Info(ctx, "test completed successfully", logger.String("runID", stats.RunID))
	return stats, nil
}

// checkServiceHealth verifies the service is running with a model loaded.
func checkServiceHealth(ctx context.Context, config *Config, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")

	var health HealthResponse
	status, err := client.Get(ctx, config.BaseURL+"/health", &health)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", status)
	}
	if !health.ModelLoaded {
		return fmt.Errorf("service is %s: model not loaded", health.Status)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveResultsToFile writes the results as an indented JSON array.
func saveResultsToFile(ctx context.Context, filename string, results []Result) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "results saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics as a table.
func displayFinalStats(w io.Writer, stats *Stats) {
	var successRate, requestsPerSecond float64
	if stats.RequestsSubmitted > 0 {
		successRate = float64(stats.RequestsSuccessful) / float64(stats.RequestsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.RequestsSubmitted) / stats.Duration.Seconds()
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Prediction smoke test " + stats.RunID)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Requests generated", stats.RequestsGenerated},
		{"Requests submitted", stats.RequestsSubmitted},
		{"Successful", stats.RequestsSuccessful},
		{"Failed", stats.RequestsFailed},
		{"Rechecked", stats.Rechecked},
		{"Mismatches", stats.Mismatches},
		{"Range checks rejected", fmt.Sprintf("%d/%d", stats.RangeChecksRejected, stats.RangeChecksSent)},
		{"Success rate", fmt.Sprintf("%.2f%%", successRate)},
		{"Requests/s", fmt.Sprintf("%.1f", requestsPerSecond)},
		{"Duration", stats.Duration.Round(time.Millisecond).String()},
	})
	t.SetStyle(table.StyleLight)
	t.Render()
}
