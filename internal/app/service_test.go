package service_test

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/regpredict/internal/app"
	"github.com/okian/regpredict/internal/domain/features"
	"github.com/okian/regpredict/internal/domain/pipeline"
	"github.com/okian/regpredict/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var sampleRequest = map[string]float64{
	"Age":         29.5,
	"DiastolicBP": 76.0,
	"BS":          8.5,
	"BodyTemp":    98.6,
	"HeartRate":   74.0,
}

// writeArtifact fits a small pipeline on synthetic data and saves it.
func writeArtifact(t *testing.T) string {
	t.Helper()
	X, y := features.Synthetic(120, rand.New(rand.NewSource(42)))
	scaler := &pipeline.StandardScaler{}
	if err := scaler.Fit(X); err != nil {
		t.Fatal(err)
	}
	scaled, err := scaler.TransformAll(X)
	if err != nil {
		t.Fatal(err)
	}
	tree := pipeline.NewDecisionTreeRegressor(pipeline.DefaultTreeParams())
	if err := tree.Fit(scaled, y); err != nil {
		t.Fatal(err)
	}
	return saveArtifact(t, &pipeline.Artifact{Model: tree, Scaler: scaler, FeatureColumns: features.Names()})
}

func saveArtifact(t *testing.T, a *pipeline.Artifact) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	if err := pipeline.Save(path, a); err != nil {
		t.Fatal(err)
	}
	return path
}

func identityScaler(n int) *pipeline.StandardScaler {
	s := &pipeline.StandardScaler{Mean: make([]float64, n), Scale: make([]float64, n)}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Name(), ShouldEqual, "Regression Model Prediction API")
			So(svc.Version(), ShouldEqual, "1.0.0")
		})

		Convey("And it should be degraded before starting", func() {
			So(svc.Health(context.Background()).Status, ShouldEqual, service.StatusDegraded)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithModelPath("elsewhere.json"),
			service.WithInfo("demo", "2.1.0"),
			service.WithLogger(logger.Nop()),
		)

		Convey("Then the options should apply", func() {
			So(svc.Name(), ShouldEqual, "demo")
			So(svc.Version(), ShouldEqual, "2.1.0")
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service pointing at a valid artifact", t, func() {
		svc := service.New(service.WithModelPath(writeArtifact(t)))
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should be healthy", func() {
				So(err, ShouldBeNil)
				h := svc.Health(ctx)
				So(h.Status, ShouldEqual, service.StatusHealthy)
				So(h.ModelLoaded, ShouldBeTrue)
			})

			Convey("And the load result should be recorded", func() {
				res := svc.LoadResult()
				So(res.Err, ShouldBeNil)
				So(res.LoadedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And model info should describe the artifact", func() {
				info, err := svc.ModelInfo(ctx)
				So(err, ShouldBeNil)
				So(info.ModelType, ShouldEqual, pipeline.KindDecisionTree)
				So(info.ScalerType, ShouldEqual, pipeline.KindStandardScaler)
				So(info.FeatureColumns, ShouldResemble, features.Names())
				So(info.NFeatures, ShouldEqual, 5)
			})

			Convey("And starting again should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
				So(svc.Health(ctx).ModelLoaded, ShouldBeTrue)
			})
		})
	})

	Convey("Given a service pointing at a missing artifact", t, func() {
		svc := service.New(service.WithModelPath(filepath.Join(t.TempDir(), "absent.json")))
		ctx := context.Background()
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then startup should still succeed in degraded mode", func() {
				So(err, ShouldBeNil)
				h := svc.Health(ctx)
				So(h.Status, ShouldEqual, service.StatusDegraded)
				So(h.ModelLoaded, ShouldBeFalse)
				So(svc.LoadResult().Err, ShouldNotBeNil)
			})

			Convey("And predictions should report the model as unavailable", func() {
				_, err := svc.Predict(ctx, sampleRequest)
				So(errors.Is(err, service.ErrModelUnavailable), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "absent.json")
			})

			Convey("And model info should be unavailable", func() {
				_, err := svc.ModelInfo(ctx)
				So(errors.Is(err, service.ErrModelUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestService_Predict(t *testing.T) {
	Convey("Given a started service", t, func() {
		path := writeArtifact(t)
		ctx := context.Background()

		Convey("When predicting a valid request", func() {
			svc := service.New(service.WithModelPath(path))
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			first, err := svc.Predict(ctx, sampleRequest)

			Convey("Then it should return a finite prediction", func() {
				So(err, ShouldBeNil)
				So(first, ShouldBeGreaterThan, 0)
			})

			Convey("And the same input should give the same output", func() {
				again, err := svc.Predict(ctx, sampleRequest)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, first)
			})

			Convey("And extra keys should be ignored", func() {
				withExtra := map[string]float64{"Unused": 1}
				for k, v := range sampleRequest {
					withExtra[k] = v
				}
				p, err := svc.Predict(ctx, withExtra)
				So(err, ShouldBeNil)
				So(p, ShouldEqual, first)
			})
		})

		Convey("When a feature is missing under the strict policy", func() {
			svc := service.New(service.WithModelPath(path))
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			_, err := svc.Predict(ctx, map[string]float64{"Age": 30, "DiastolicBP": 80, "BS": 7, "BodyTemp": 98})

			Convey("Then it should be a validation error naming the column", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, service.ErrMissingFeature), ShouldBeTrue)
				var mf *service.MissingFeatureError
				So(errors.As(err, &mf), ShouldBeTrue)
				So(mf.Fields, ShouldResemble, []string{"HeartRate"})
			})
		})

		Convey("When a feature is missing under the zero fill policy", func() {
			svc := service.New(service.WithModelPath(path), service.WithZeroFillMissing(true))
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			p, err := svc.Predict(ctx, map[string]float64{"Age": 30})

			Convey("Then it should predict with zeros in place", func() {
				So(err, ShouldBeNil)
				again, _ := svc.Predict(ctx, map[string]float64{"Age": 30, "HeartRate": 0, "BS": 0, "BodyTemp": 0, "DiastolicBP": 0})
				So(p, ShouldEqual, again)
			})
		})
	})

	Convey("Given an artifact whose widths disagree", t, func() {
		path := saveArtifact(t, &pipeline.Artifact{
			Model:          &pipeline.LinearRegression{Coefficients: []float64{1, 2}},
			Scaler:         identityScaler(5),
			FeatureColumns: features.Names(),
		})
		svc := service.New(service.WithModelPath(path))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When predicting", func() {
			_, err := svc.Predict(ctx, sampleRequest)

			Convey("Then it should be an inference error", func() {
				So(errors.Is(err, service.ErrInference), ShouldBeTrue)
				So(errors.Is(err, pipeline.ErrDimensionMismatch), ShouldBeTrue)
				So(errors.Is(err, service.ErrValidation), ShouldBeFalse)
			})
		})
	})

	Convey("Given a model that overflows", t, func() {
		path := saveArtifact(t, &pipeline.Artifact{
			Model:          &pipeline.LinearRegression{Coefficients: []float64{1e308, 1e308, 1e308, 1e308, 1e308}},
			Scaler:         identityScaler(5),
			FeatureColumns: features.Names(),
		})
		svc := service.New(service.WithModelPath(path))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When predicting", func() {
			_, err := svc.Predict(ctx, sampleRequest)

			Convey("Then the non-finite result should be an inference error", func() {
				So(errors.Is(err, service.ErrInference), ShouldBeTrue)
			})
		})
	})
}
