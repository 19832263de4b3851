package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/extraction-workbench/internal/config"
	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
	"github.com/kirillkom/extraction-workbench/internal/observability/metrics"
)

const (
	serviceName      = "api"
	backpressureWait = 250 * time.Millisecond
	maxJSONBodyBytes = 8 << 20
)

// Services are the inbound ports served over HTTP.
type Services struct {
	Ingest     ports.DocumentIngestor
	Documents  ports.DocumentReader
	Extraction ports.ExtractionService
	Feedback   ports.FeedbackService
	Rules      ports.RuleLibrary
	Evolver    ports.RuleEvolver
}

type Router struct {
	services  Services
	metrics   *metrics.HTTPServerMetrics
	validator *requestValidator

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	rt := &Router{
		services:       services,
		metrics:        httpMetrics,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
	}
	if cfg.APIValidateRequests {
		validator, err := newRequestValidator()
		if err != nil {
			slog.Error("openapi_validator_disabled", "error", err)
		} else {
			rt.validator = validator
		}
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	rt.registerDocumentRoutes(mux)
	rt.registerRuleRoutes(mux)

	var handler http.Handler = mux
	if rt.validator != nil {
		handler = rt.validator.middleware(handler)
	}
	handler = backpressureWithReject(handler, rt.maxInFlight, backpressureWait, rt.reject)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.reject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) reject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: errorMessage(err, status)})
}

// decodeJSON reads the request body into dst. An empty body is accepted when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	err := json.NewDecoder(body).Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && optional:
		return nil
	case errors.Is(err, io.EOF):
		return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("request body is required"))
	default:
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
}

// pathParam binds a path segment with the same rules the OpenAPI document declares.
func pathParam[T any](r *http.Request, name string) (T, error) {
	var out T
	err := runtime.BindStyledParameterWithOptions("simple", name, r.PathValue(name), &out, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return out, domain.WrapError(domain.ErrInvalidInput, "bind path", fmt.Errorf("parameter %s: %w", name, err))
	}
	return out, nil
}

func queryParam(r *http.Request, name string) (string, error) {
	var out string
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &out); err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind query", fmt.Errorf("parameter %s: %w", name, err))
	}
	return out, nil
}

// docTypeParam keeps unrecognised names as-is so the use case can reject them.
func docTypeParam(raw string) domain.DocType {
	raw = strings.TrimSpace(raw)
	if parsed := domain.ParseDocType(raw); parsed != domain.DocTypeUnknown {
		return parsed
	}
	if raw == "" || strings.EqualFold(raw, string(domain.DocTypeUnknown)) || raw == domain.DocTypeUnknown.Label() {
		return domain.DocTypeUnknown
	}
	return domain.DocType(raw)
}
