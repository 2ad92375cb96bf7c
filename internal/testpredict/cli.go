package testpredict

import (
	"fmt"
	"os"

	"github.com/okian/regpredict/pkg/logger"
)

// SetupLogging configures the logger, mirroring output into logFile when set.
func SetupLogging(logFile string, verbose bool) error {
	var opts []logger.Option
	if logFile != "" {
		opts = append(opts, logger.WithFile(logFile))
	}
	if err := logger.Init(opts...); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the smoke test tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Prediction Smoke Test
=====================

Submits random in-range requests to a running prediction service, then
checks that repeated requests give identical predictions and that
out-of-range values are rejected.

Usage:
  go run ./cmd/test-predict [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8000")
  -requests int
        Number of requests to submit (default 1000)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -seed int
        Seed for request generation (default 42)
  -recheck int
        Number of requests resubmitted for the idempotence check (default 20)
  -timeout duration
        HTTP request timeout (default 10s)
  -output string
        Write requests and predictions to this JSON file
  -log string
        Mirror log output into this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/test-predict
  go run ./cmd/test-predict -requests 10000 -workers 16 -url http://localhost:8080
`)
}
