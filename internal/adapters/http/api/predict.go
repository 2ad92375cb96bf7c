package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	service "github.com/okian/regpredict/internal/app"
	"github.com/okian/regpredict/internal/domain/features"
	"github.com/okian/regpredict/internal/domain/types"
	"github.com/okian/regpredict/pkg/metrics"
)

// Predictor runs inference for the predict route.
type Predictor interface {
	Predict(ctx context.Context, values map[string]float64) (float64, error)
}

// predictRequest mirrors the OpenAPI schema for POST /predict. Pointers
// distinguish an absent field from an explicit zero.
type predictRequest struct {
	Age         *float64 `json:"Age" validate:"required,gte=0,lte=120"`
	DiastolicBP *float64 `json:"DiastolicBP" validate:"required,gte=40,lte=150"`
	BS          *float64 `json:"BS" validate:"required,gte=0,lte=30"`
	BodyTemp    *float64 `json:"BodyTemp" validate:"required,gte=95,lte=106"`
	HeartRate   *float64 `json:"HeartRate" validate:"required,gte=30,lte=200"`
}

func (p predictRequest) values() map[string]float64 {
	return map[string]float64{
		"Age":         *p.Age,
		"DiastolicBP": *p.DiastolicBP,
		"BS":          *p.BS,
		"BodyTemp":    *p.BodyTemp,
		"HeartRate":   *p.HeartRate,
	}
}

// fields maps each feature name to the field it fills.
func (p *predictRequest) fields() map[string]**float64 {
	return map[string]**float64{
		"Age":         &p.Age,
		"DiastolicBP": &p.DiastolicBP,
		"BS":          &p.BS,
		"BodyTemp":    &p.BodyTemp,
		"HeartRate":   &p.HeartRate,
	}
}

var validate = newValidator()

var errTrailingData = errors.New("unexpected data after JSON object")

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// PredictHandler handles prediction requests.
type PredictHandler struct {
	predictor    Predictor
	maxBodyBytes int64
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(predictor Predictor, maxBodyBytes int64) *PredictHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &PredictHandler{predictor: predictor, maxBodyBytes: maxBodyBytes}
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"

	req, detail, err := decodeRequest(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", WrapKind(op, ErrBodyTooLarge, err))
			return
		}
		metrics.RecordValidationFailure(detail.Field, detail.Constraint)
		writeValidationError(w, WrapKind(op, ErrInvalidBody, err).Error(), []fieldDetail{detail})
		return
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
			return
		}
		details := make([]fieldDetail, 0, len(verrs))
		for _, fe := range verrs {
			metrics.RecordValidationFailure(fe.Field(), fe.Tag())
			details = append(details, fieldDetail{
				Field:      fe.Field(),
				Constraint: fe.Tag(),
				Param:      fe.Param(),
				Message:    describe(fe),
			})
		}
		writeValidationError(w, "request validation failed", details)
		return
	}

	prediction, err := h.predictor.Predict(r.Context(), req.values())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, types.NewPrediction(prediction))
	case errors.Is(err, service.ErrValidation):
		var mf *service.MissingFeatureError
		var details []fieldDetail
		if errors.As(err, &mf) {
			for _, f := range mf.Fields {
				details = append(details, fieldDetail{Field: f, Constraint: "required", Message: f + " is required"})
			}
		}
		writeValidationError(w, err.Error(), details)
	case errors.Is(err, service.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "model_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "prediction_failed", err)
	}
}

// decodeRequest reads exactly one JSON object and fills each feature only
// from its exact-case key. Keys that differ in case are unknown and ignored.
func decodeRequest(body io.Reader) (predictRequest, fieldDetail, error) {
	var req predictRequest
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(body)
	if err := dec.Decode(&raw); err != nil {
		return req, decodeDetail(err), err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errTrailingData
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, fieldDetail{}, err
		}
		return req, fieldDetail{Field: "body", Constraint: "json", Message: "request body must contain a single JSON object"}, err
	}

	fields := req.fields()
	for _, f := range features.Schema {
		value, ok := raw[f.Name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, fields[f.Name]); err != nil {
			return req, fieldDetail{
				Field:      f.Name,
				Constraint: "type",
				Param:      "number",
				Message:    fmt.Sprintf("%s must be a number, got %s", f.Name, value),
			}, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return req, fieldDetail{}, nil
}

// decodeDetail explains why the body could not be decoded.
func decodeDetail(err error) fieldDetail {
	msg := "request body must be a JSON object"
	if errors.Is(err, io.EOF) {
		msg = "request body is empty"
	}
	return fieldDetail{Field: "body", Constraint: "json", Message: msg}
}

// describe renders a validator failure as a sentence.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s constraint", fe.Field(), fe.Tag())
	}
}
