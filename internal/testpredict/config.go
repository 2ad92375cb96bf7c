package testpredict

import (
	"io"
	"time"
)

// Config holds configuration for the prediction smoke test
type Config struct {
	BaseURL     string        // Base URL of the service
	NumRequests int           // Number of in-bounds requests to submit
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	Seed        int64         // Seed for request generation
	Recheck     int           // Number of requests resubmitted for the idempotence check
	OutputFile  string        // Output file for generated requests and predictions
	Verbose     bool          // Enable verbose logging
	Out         io.Writer     // Destination of the summary table, stdout when nil
}

// Request is one generated prediction request.
type Request struct {
	ID     string             `json:"id"`
	Values map[string]float64 `json:"values"`
}

// Result pairs a request with what the service answered.
type Result struct {
	Request    Request `json:"request"`
	StatusCode int     `json:"status_code"`
	Prediction float64 `json:"prediction"`
	Err        string  `json:"error,omitempty"`
}

// RangeCheck is a request that violates one feature bound.
type RangeCheck struct {
	Feature string
	Value   float64
	Body    map[string]float64
}

// PredictResponse is the success body of POST /predict.
type PredictResponse struct {
	Prediction float64 `json:"prediction"`
	Status     string  `json:"status"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Stats holds test statistics
type Stats struct {
	RunID               string
	RequestsGenerated   int
	RequestsSubmitted   int
	RequestsSuccessful  int
	RequestsFailed      int
	Rechecked           int
	Mismatches          int
	RangeChecksSent     int
	RangeChecksRejected int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
