package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/regpredict/internal/adapters/http/api"
	service "github.com/okian/regpredict/internal/app"
	"github.com/okian/regpredict/internal/domain/types"
	"github.com/okian/regpredict/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDeps is a scripted stand-in for the prediction service.
type mockDeps struct {
	loaded     bool
	prediction float64
	predictErr error
	calls      int
	lastValues map[string]float64
}

func (m *mockDeps) Predict(_ context.Context, values map[string]float64) (float64, error) {
	m.calls++
	m.lastValues = values
	if m.predictErr != nil {
		return 0, m.predictErr
	}
	return m.prediction, nil
}

func (m *mockDeps) Health(context.Context) api.Health {
	if m.loaded {
		return api.Health{Status: service.StatusHealthy, ModelLoaded: true}
	}
	return api.Health{Status: service.StatusDegraded}
}

func (m *mockDeps) ModelInfo(context.Context) (api.ModelInfo, error) {
	if !m.loaded {
		return api.ModelInfo{}, fmt.Errorf("model info: %w", service.ErrModelUnavailable)
	}
	return api.ModelInfo{
		Path:           "model.json",
		ModelType:      "decision_tree_regressor",
		ScalerType:     "standard_scaler",
		FeatureColumns: []string{"Age", "DiastolicBP", "BS", "BodyTemp", "HeartRate"},
		NFeatures:      5,
		LoadedAt:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockDeps) Name() string    { return "Regression Model Prediction API" }
func (m *mockDeps) Version() string { return "1.0.0" }

const validBody = `{"Age":29.5,"DiastolicBP":76.0,"BS":8.5,"BodyTemp":98.6,"HeartRate":74.0}`

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details []struct {
		Field      string `json:"field"`
		Constraint string `json:"constraint"`
		Param      string `json:"param"`
		Message    string `json:"message"`
	} `json:"details"`
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(rec *httptest.ResponseRecorder) errorBody {
	var out errorBody
	So(json.Unmarshal(rec.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestRootAndHealth(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{loaded: true}
		mux := newMux(deps)

		Convey("When requesting the root path", func() {
			rec := do(mux, http.MethodGet, "/", "")

			Convey("Then it should describe the service", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body map[string]string
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["message"], ShouldEqual, "Welcome to the Regression Model Prediction API")
				So(body["docs"], ShouldEqual, "/docs")
				So(body["redoc"], ShouldEqual, "/redoc")
				So(body["version"], ShouldEqual, "1.0.0")
			})
		})

		Convey("When checking health with a loaded model", func() {
			rec := do(mux, http.MethodGet, "/health", "")

			Convey("Then it should be healthy", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"status":"healthy"`)
				So(rec.Body.String(), ShouldContainSubstring, `"model_loaded":true`)
			})
		})

		Convey("When checking health without a model", func() {
			deps.loaded = false
			rec := do(mux, http.MethodGet, "/health", "")

			Convey("Then it should still answer 200 as degraded", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"status":"degraded"`)
				So(rec.Body.String(), ShouldContainSubstring, `"model_loaded":false`)
			})
		})

		Convey("When an unknown path is requested", func() {
			rec := do(mux, http.MethodGet, "/nope", "")

			Convey("Then it should be 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a known path is called with the wrong method", func() {
			rec := do(mux, http.MethodGet, "/predict", "")

			Convey("Then it should be 405", func() {
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(deps.calls, ShouldEqual, 0)
			})
		})
	})
}

func TestPredict(t *testing.T) {
	Convey("Given an API server with a loaded model", t, func() {
		deps := &mockDeps{loaded: true, prediction: 41.25}
		mux := newMux(deps)

		Convey("When posting a valid request", func() {
			rec := do(mux, http.MethodPost, "/predict", validBody)

			Convey("Then it should return the prediction", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body types.Prediction
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body.Prediction, ShouldEqual, 41.25)
				So(body.Status, ShouldEqual, "success")
			})

			Convey("And the service should receive every feature by name", func() {
				So(deps.lastValues, ShouldResemble, map[string]float64{
					"Age": 29.5, "DiastolicBP": 76, "BS": 8.5, "BodyTemp": 98.6, "HeartRate": 74,
				})
			})
		})

		Convey("When posting values exactly on the bounds", func() {
			rec := do(mux, http.MethodPost, "/predict", `{"Age":0,"DiastolicBP":150,"BS":0,"BodyTemp":95,"HeartRate":200}`)

			Convey("Then it should be accepted", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastValues["Age"], ShouldEqual, 0)
			})
		})

		Convey("When posting extra fields", func() {
			rec := do(mux, http.MethodPost, "/predict", `{"Age":30,"DiastolicBP":80,"BS":7,"BodyTemp":98,"HeartRate":70,"Note":"x"}`)

			Convey("Then they should be ignored", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastValues, ShouldNotContainKey, "Note")
			})
		})

		Convey("When Age is negative", func() {
			rec := do(mux, http.MethodPost, "/predict", strings.Replace(validBody, `"Age":29.5`, `"Age":-1`, 1))

			Convey("Then it should be rejected without inference", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(deps.calls, ShouldEqual, 0)
				body := decodeError(rec)
				So(body.Code, ShouldEqual, "validation_error")
				So(body.Details, ShouldHaveLength, 1)
				So(body.Details[0].Field, ShouldEqual, "Age")
				So(body.Details[0].Constraint, ShouldEqual, "gte")
				So(body.Details[0].Param, ShouldEqual, "0")
			})
		})

		Convey("When several fields are out of range", func() {
			rec := do(mux, http.MethodPost, "/predict", `{"Age":121,"DiastolicBP":76,"BS":8.5,"BodyTemp":98.6,"HeartRate":250}`)

			Convey("Then every violation should be listed", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(deps.calls, ShouldEqual, 0)
				body := decodeError(rec)
				So(body.Details, ShouldHaveLength, 2)
				So(body.Details[0].Field, ShouldEqual, "Age")
				So(body.Details[0].Constraint, ShouldEqual, "lte")
				So(body.Details[1].Field, ShouldEqual, "HeartRate")
				So(body.Details[1].Message, ShouldEqual, "HeartRate must be less than or equal to 200")
			})
		})

		Convey("When HeartRate is missing", func() {
			rec := do(mux, http.MethodPost, "/predict", `{"Age":29.5,"DiastolicBP":76,"BS":8.5,"BodyTemp":98.6}`)

			Convey("Then it should be reported as required", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				body := decodeError(rec)
				So(body.Details, ShouldHaveLength, 1)
				So(body.Details[0].Field, ShouldEqual, "HeartRate")
				So(body.Details[0].Constraint, ShouldEqual, "required")
			})
		})

		Convey("When a field is null", func() {
			rec := do(mux, http.MethodPost, "/predict", strings.Replace(validBody, `"BS":8.5`, `"BS":null`, 1))

			Convey("Then it should count as missing", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeError(rec).Details[0].Field, ShouldEqual, "BS")
			})
		})

		Convey("When the body is malformed JSON", func() {
			rec := do(mux, http.MethodPost, "/predict", `{"Age":`)

			Convey("Then it should be a validation error on the body", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				body := decodeError(rec)
				So(body.Details[0].Field, ShouldEqual, "body")
				So(deps.calls, ShouldEqual, 0)
			})
		})

		Convey("When the body is empty", func() {
			rec := do(mux, http.MethodPost, "/predict", "")

			Convey("Then it should be a validation error", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeError(rec).Details[0].Message, ShouldEqual, "request body is empty")
			})
		})

		Convey("When a field has the wrong type", func() {
			rec := do(mux, http.MethodPost, "/predict", strings.Replace(validBody, `"Age":29.5`, `"Age":"old"`, 1))

			Convey("Then the field should be named", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				body := decodeError(rec)
				So(body.Details[0].Field, ShouldEqual, "Age")
				So(body.Details[0].Constraint, ShouldEqual, "type")
			})
		})

		Convey("When every key is lowercase", func() {
			rec := do(mux, http.MethodPost, "/predict", `{"age":29.5,"diastolicbp":76,"bs":8.5,"bodytemp":98.6,"heartrate":74}`)

			Convey("Then every field should be reported as required", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(deps.calls, ShouldEqual, 0)
				body := decodeError(rec)
				So(body.Details, ShouldHaveLength, 5)
				for _, d := range body.Details {
					So(d.Constraint, ShouldEqual, "required")
				}
			})
		})

		Convey("When a lowercase key repeats an out-of-range field", func() {
			rec := do(mux, http.MethodPost, "/predict", `{"Age":500,"age":30,"DiastolicBP":76,"BS":8.5,"BodyTemp":98.6,"HeartRate":74}`)

			Convey("Then the exact key should be validated", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(deps.calls, ShouldEqual, 0)
				body := decodeError(rec)
				So(body.Details, ShouldHaveLength, 1)
				So(body.Details[0].Field, ShouldEqual, "Age")
				So(body.Details[0].Constraint, ShouldEqual, "lte")
			})
		})

		Convey("When a lowercase key sits beside a valid exact key", func() {
			rec := do(mux, http.MethodPost, "/predict", `{"age":500,"Age":30,"DiastolicBP":76,"BS":8.5,"BodyTemp":98.6,"HeartRate":74}`)

			Convey("Then only the exact key should reach the service", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastValues["Age"], ShouldEqual, 30)
			})
		})

		Convey("When garbage follows the JSON object", func() {
			rec := do(mux, http.MethodPost, "/predict", validBody+"garbage{")

			Convey("Then it should be a validation error on the body", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(deps.calls, ShouldEqual, 0)
				body := decodeError(rec)
				So(body.Details[0].Field, ShouldEqual, "body")
				So(body.Details[0].Constraint, ShouldEqual, "json")
			})
		})

		Convey("When a second JSON object follows the first", func() {
			rec := do(mux, http.MethodPost, "/predict", validBody+validBody)

			Convey("Then it should be rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(deps.calls, ShouldEqual, 0)
			})
		})

		Convey("When only whitespace follows the JSON object", func() {
			rec := do(mux, http.MethodPost, "/predict", validBody+"\n  ")

			Convey("Then it should be accepted", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the body is a JSON array", func() {
			rec := do(mux, http.MethodPost, "/predict", `[1,2,3]`)

			Convey("Then it should be a validation error on the body", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeError(rec).Details[0].Field, ShouldEqual, "body")
			})
		})

		Convey("When the body exceeds the configured limit", func() {
			small := newMux(deps, api.WithMaxBodyBytes(16))
			rec := do(small, http.MethodPost, "/predict", validBody)

			Convey("Then it should be rejected as too large", func() {
				So(rec.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(deps.calls, ShouldEqual, 0)
			})
		})
	})

	Convey("Given service failures", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When the model is not loaded", func() {
			deps.predictErr = fmt.Errorf("predict: %w: ensure model.json exists", service.ErrModelUnavailable)
			rec := do(mux, http.MethodPost, "/predict", validBody)

			Convey("Then it should be 503 naming the model file", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
				body := decodeError(rec)
				So(body.Code, ShouldEqual, "model_unavailable")
				So(body.Message, ShouldContainSubstring, "model.json")
			})
		})

		Convey("When inference fails", func() {
			deps.predictErr = fmt.Errorf("predict: %w: %w", service.ErrInference, errors.New("dimension mismatch"))
			rec := do(mux, http.MethodPost, "/predict", validBody)

			Convey("Then it should be 500", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(rec).Code, ShouldEqual, "prediction_failed")
			})
		})

		Convey("When the model needs a column the request cannot carry", func() {
			deps.predictErr = fmt.Errorf("predict: %w: %w", service.ErrValidation,
				&service.MissingFeatureError{Fields: []string{"Weight"}})
			rec := do(mux, http.MethodPost, "/predict", validBody)

			Convey("Then it should be 422 naming the column", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				body := decodeError(rec)
				So(body.Details, ShouldHaveLength, 1)
				So(body.Details[0].Field, ShouldEqual, "Weight")
			})
		})
	})
}

func TestModelAndMetrics(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{loaded: true}
		mux := newMux(deps)

		Convey("When the model is loaded", func() {
			rec := do(mux, http.MethodGet, "/model", "")

			Convey("Then model info should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var info api.ModelInfo
				So(json.Unmarshal(rec.Body.Bytes(), &info), ShouldBeNil)
				So(info.ModelType, ShouldEqual, "decision_tree_regressor")
				So(info.NFeatures, ShouldEqual, 5)
			})
		})

		Convey("When no model is loaded", func() {
			deps.loaded = false
			rec := do(mux, http.MethodGet, "/model", "")

			Convey("Then it should be 503", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When scraping metrics after a request", func() {
			_ = do(mux, http.MethodGet, "/health", "")
			rec := do(mux, http.MethodGet, "/metrics", "")

			Convey("Then the HTTP counters should be exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "regpredict_api_http_requests_total")
			})
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given the middleware chain", t, func() {
		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(api.RequestIDFromContext(r.Context())))
		})
		h := api.Chain(ok, api.Recovery(logger.Nop()), api.RequestID, api.CORS([]string{"*"}), api.RequestLog(logger.Nop()))

		Convey("When a request carries no id", func() {
			rec := do(h, http.MethodGet, "/", "")

			Convey("Then one should be generated and echoed", func() {
				id := rec.Header().Get(api.HeaderRequestID)
				So(id, ShouldHaveLength, 36)
				So(rec.Body.String(), ShouldEqual, id)
			})
		})

		Convey("When a request carries an id", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(api.HeaderRequestID, "abc-123")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			Convey("Then it should be kept", func() {
				So(rec.Header().Get(api.HeaderRequestID), ShouldEqual, "abc-123")
			})
		})

		Convey("When a browser sends a preflight", func() {
			req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
			req.Header.Set("Origin", "https://ui.example")
			req.Header.Set("Access-Control-Request-Method", "POST")
			req.Header.Set("Access-Control-Request-Headers", "content-type")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			Convey("Then it should be allowed from any origin", func() {
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
				So(rec.Header().Get("Access-Control-Allow-Headers"), ShouldEqual, "content-type")
			})
		})

		Convey("When only specific origins are allowed", func() {
			strict := api.CORS([]string{"https://ui.example"})(ok)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", "https://evil.example")
			rec := httptest.NewRecorder()
			strict.ServeHTTP(rec, req)

			Convey("Then other origins should get no allow header", func() {
				So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
			})
		})

		Convey("When a handler panics", func() {
			boom := api.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			}), api.Recovery(logger.Nop()))
			rec := do(boom, http.MethodGet, "/", "")

			Convey("Then it should answer 500 with a JSON error", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(rec).Code, ShouldEqual, "internal_error")
			})
		})

		Convey("When a handler panics after starting its response", func() {
			partial := api.Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte("partial"))
				panic("boom")
			}), api.Recovery(logger.Nop()))
			rec := do(partial, http.MethodGet, "/", "")

			Convey("Then the started response should be left untouched", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(rec.Body.String(), ShouldEqual, "partial")
			})
		})
	})
}
