package main

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/okian/regpredict/internal/domain/features"
	"github.com/okian/regpredict/internal/domain/pipeline"
	"github.com/okian/regpredict/pkg/logger"
	"github.com/spf13/cobra"
)

// Model names accepted by --model.
const (
	modelDecisionTree = "decision_tree"
	modelLinear       = "linear"
)

// minSamples keeps at least one training row after the split.
const minSamples = 2

type createOptions struct {
	out             string
	model           string
	samples         int
	seed            int64
	maxDepth        int
	minSamplesSplit int
	testRatio       float64
}

func newCreateCmd() *cobra.Command {
	opts := createOptions{}
	defaults := pipeline.DefaultTreeParams()

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Train a placeholder model on synthetic data and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifact, err := buildArtifact(opts)
			if err != nil {
				return err
			}
			if err := pipeline.Save(opts.out, artifact); err != nil {
				return err
			}
			logger.Get().Info(cmd.Context(), "model saved",
				logger.String("path", opts.out),
				logger.String("model_type", pipeline.KindOf(artifact.Model)))

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Model saved to %s\n", opts.out)
			if r2 := artifact.Metadata.TrainR2; r2 != nil {
				fmt.Fprintf(w, "Train R2: %.4f\n", *r2)
			}
			if r2 := artifact.Metadata.TestR2; r2 != nil {
				fmt.Fprintf(w, "Test R2:  %.4f\n", *r2)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.out, "out", "model.json", "output path")
	f.StringVar(&opts.model, "model", modelDecisionTree, "model type: decision_tree or linear")
	f.IntVar(&opts.samples, "samples", 200, "number of synthetic samples")
	f.Int64Var(&opts.seed, "seed", 42, "random seed")
	f.IntVar(&opts.maxDepth, "max-depth", defaults.MaxDepth, "decision tree maximum depth, 0 for unlimited")
	f.IntVar(&opts.minSamplesSplit, "min-samples-split", defaults.MinSamplesSplit, "decision tree minimum samples to split a node")
	f.Float64Var(&opts.testRatio, "test-ratio", 0.2, "fraction of samples held out for the test score")
	return cmd
}

// buildArtifact generates the dataset, fits the scaler and model, and
// scores both splits.
func buildArtifact(opts createOptions) (*pipeline.Artifact, error) {
	if opts.samples < minSamples {
		return nil, fmt.Errorf("samples must be at least %d, got %d", minSamples, opts.samples)
	}
	if opts.testRatio < 0 || opts.testRatio >= 1 {
		return nil, fmt.Errorf("test-ratio must be in [0, 1), got %g", opts.testRatio)
	}

	var model interface {
		pipeline.Predictor
		Fit(X [][]float64, y []float64) error
	}
	switch opts.model {
	case modelDecisionTree:
		params := pipeline.DefaultTreeParams()
		params.MaxDepth = opts.maxDepth
		params.MinSamplesSplit = opts.minSamplesSplit
		model = pipeline.NewDecisionTreeRegressor(params)
	case modelLinear:
		model = &pipeline.LinearRegression{}
	default:
		return nil, fmt.Errorf("unknown model %q: want %s or %s", opts.model, modelDecisionTree, modelLinear)
	}

	rng := rand.New(rand.NewSource(opts.seed))
	X, y := features.Synthetic(opts.samples, rng)
	trainX, trainY, testX, testY := pipeline.Split(X, y, opts.testRatio, rng)

	scaler := &pipeline.StandardScaler{}
	if err := scaler.Fit(trainX); err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := scaler.TransformAll(trainX)
	if err != nil {
		return nil, fmt.Errorf("scale training data: %w", err)
	}
	if err := model.Fit(scaled, trainY); err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	trainR2, err := pipeline.Evaluate(model, scaler, trainX, trainY)
	if err != nil {
		return nil, fmt.Errorf("score training data: %w", err)
	}
	created := time.Now().UTC()
	meta := pipeline.Metadata{
		CreatedAt: &created,
		NSamples:  opts.samples,
		TrainR2:   &trainR2,
		Params: map[string]string{
			"model":      opts.model,
			"seed":       strconv.FormatInt(opts.seed, 10),
			"test_ratio": strconv.FormatFloat(opts.testRatio, 'g', -1, 64),
		},
	}
	if opts.model == modelDecisionTree {
		meta.Params["max_depth"] = strconv.Itoa(opts.maxDepth)
		meta.Params["min_samples_split"] = strconv.Itoa(opts.minSamplesSplit)
	}
	if len(testX) > 0 {
		testR2, err := pipeline.Evaluate(model, scaler, testX, testY)
		if err != nil {
			return nil, fmt.Errorf("score test data: %w", err)
		}
		meta.TestR2 = &testR2
	}

	return &pipeline.Artifact{
		Model:          model,
		Scaler:         scaler,
		FeatureColumns: features.Names(),
		Metadata:       meta,
	}, nil
}
