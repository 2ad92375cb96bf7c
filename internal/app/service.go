// Package service provides the core prediction service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/regpredict/internal/domain/pipeline"
	"github.com/okian/regpredict/internal/domain/types"
	"github.com/okian/regpredict/pkg/logger"
	"github.com/okian/regpredict/pkg/metrics"
)

// Health statuses reported by the service.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// LoadResult records the single attempt to load the model artifact.
type LoadResult struct {
	Path     string
	Err      error
	LoadedAt time.Time
	Duration time.Duration
}

// Service implements the API dependencies for the prediction system.
type Service struct {
	mu sync.RWMutex

	// Configuration
	modelPath   string
	zeroMissing bool
	name        string
	version     string

	// State
	artifact *pipeline.Artifact
	load     LoadResult
	started  bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithModelPath sets where the artifact is read from.
func WithModelPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.modelPath = path
		}
	}
}

// WithZeroFillMissing substitutes 0.0 for model columns a request lacks
// instead of rejecting the request.
func WithZeroFillMissing(enabled bool) Option {
	return func(s *Service) {
		s.zeroMissing = enabled
	}
}

// WithInfo sets the name and version reported by the service.
func WithInfo(name, version string) Option {
	return func(s *Service) {
		if name != "" {
			s.name = name
		}
		if version != "" {
			s.version = version
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		modelPath: "model.json",
		name:      "Regression Model Prediction API",
		version:   "1.0.0",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the artifact once. A load failure leaves the service
// degraded rather than failing startup.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting prediction service...", logger.String("modelPath", s.modelPath))

	begin := time.Now()
	artifact, err := pipeline.Load(s.modelPath)
	s.load = LoadResult{Path: s.modelPath, Err: err, Duration: time.Since(begin)}
	metrics.UpdateModelLoadDuration(float64(s.load.Duration.Microseconds()) / 1000)

	if err != nil {
		s.logger.Warn(ctx, "model not loaded, serving in degraded mode",
			logger.String("modelPath", s.modelPath),
			logger.Error(err),
		)
		metrics.UpdateModelLoaded(false)
		metrics.UpdateModelFeatures(0)
	} else {
		s.artifact = artifact
		s.load.LoadedAt = time.Now()
		metrics.UpdateModelLoaded(true)
		metrics.UpdateModelFeatures(len(artifact.FeatureColumns))
		if werr := artifact.CheckWidths(); werr != nil {
			s.logger.Warn(ctx, "artifact widths disagree, predictions will fail", logger.Error(werr))
		}
		s.logger.Info(ctx, "model loaded",
			logger.String("modelType", pipeline.KindOf(artifact.Model)),
			logger.String("scalerType", pipeline.KindOf(artifact.Scaler)),
			logger.Any("featureColumns", artifact.FeatureColumns),
			logger.Duration("took", s.load.Duration),
		)
	}

	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.String("status", s.status()),
		logger.Bool("zeroFillMissing", s.zeroMissing),
	)
	return nil
}

// Stop marks the service stopped. The loaded artifact is kept.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "prediction service stopped")
}

// LoadResult returns the outcome of the startup load.
func (s *Service) LoadResult() LoadResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load
}

// Name returns the service display name.
func (s *Service) Name() string { return s.name }

// Version returns the service version.
func (s *Service) Version() string { return s.version }

// Health reports whether a model is loaded. It never fails.
func (s *Service) Health(_ context.Context) types.Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Health{Status: s.status(), ModelLoaded: s.artifact != nil}
}

// ModelInfo describes the loaded artifact or returns ErrModelUnavailable.
func (s *Service) ModelInfo(_ context.Context) (types.ModelInfo, error) {
	const op = "model info"

	s.mu.RLock()
	a, load := s.artifact, s.load
	s.mu.RUnlock()

	if a == nil {
		return types.ModelInfo{}, s.unavailable(op)
	}
	cols := make([]string, len(a.FeatureColumns))
	copy(cols, a.FeatureColumns)
	return types.ModelInfo{
		Path:           load.Path,
		ModelType:      pipeline.KindOf(a.Model),
		ScalerType:     pipeline.KindOf(a.Scaler),
		FeatureColumns: cols,
		NFeatures:      len(cols),
		LoadedAt:       load.LoadedAt,
		CreatedAt:      a.Metadata.CreatedAt,
		TrainR2:        a.Metadata.TrainR2,
		TestR2:         a.Metadata.TestR2,
		Params:         a.Metadata.Params,
	}, nil
}

// Predict orders values by the artifact's feature columns, scales them and
// runs the model. Identical values always produce the identical result.
func (s *Service) Predict(ctx context.Context, values map[string]float64) (float64, error) {
	const op = "predict"
	begin := time.Now()

	s.mu.RLock()
	a := s.artifact
	s.mu.RUnlock()

	if a == nil {
		metrics.RecordPredictionError("unavailable")
		return 0, s.unavailable(op)
	}

	x, missing := a.Vector(values)
	if len(missing) > 0 {
		if !s.zeroMissing {
			metrics.RecordPredictionError("missing_feature")
			return 0, wrapKind(op, ErrValidation, &MissingFeatureError{Fields: missing})
		}
		s.log().Debug(ctx, "filling missing features with zero", logger.Any("missing", missing))
	}

	scaled, err := a.Scaler.Transform(x)
	if err != nil {
		return 0, s.inferenceFailed(ctx, op, fmt.Errorf("scale: %w", err))
	}
	prediction, err := a.Model.Predict(scaled)
	if err != nil {
		return 0, s.inferenceFailed(ctx, op, fmt.Errorf("model: %w", err))
	}
	if math.IsNaN(prediction) || math.IsInf(prediction, 0) {
		return 0, s.inferenceFailed(ctx, op, fmt.Errorf("model returned %v", prediction))
	}

	metrics.RecordPrediction()
	metrics.RecordInferenceLatency(float64(time.Since(begin).Microseconds()) / 1000)
	return prediction, nil
}

func (s *Service) inferenceFailed(ctx context.Context, op string, err error) error {
	metrics.RecordPredictionError("inference")
	s.log().Error(ctx, "inference failed", logger.Error(err))
	return wrapKind(op, ErrInference, err)
}

func (s *Service) unavailable(op string) error {
	return wrapKind(op, ErrModelUnavailable,
		fmt.Errorf("ensure %s exists and contains a valid artifact", s.modelPath))
}

func (s *Service) status() string {
	if s.artifact != nil {
		return StatusHealthy
	}
	return StatusDegraded
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}
