package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/regpredict/internal/testpredict"
)

// Default configuration constants.
const (
	defaultNumRequests = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultSeed        = 42
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8000", "Base URL of the service")
		numRequests = flag.Int("requests", defaultNumRequests, "Number of requests to submit")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		seed        = flag.Int64("seed", defaultSeed, "Seed for request generation")
		recheck     = flag.Int("recheck", testpredict.DefaultRecheck, "Number of requests resubmitted for the idempotence check")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile  = flag.String("output", "", "Write requests and predictions to this JSON file")
		logFile     = flag.String("log", "", "Mirror log output into this file")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testpredict.ShowHelp()
		return
	}

	if err := testpredict.SetupLogging(*logFile, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testpredict.Config{
		BaseURL:     *baseURL,
		NumRequests: *numRequests,
		Workers:     *workers,
		Timeout:     *timeout,
		Seed:        *seed,
		Recheck:     *recheck,
		OutputFile:  *outputFile,
		Verbose:     *verbose,
	}

	if _, err := testpredict.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
