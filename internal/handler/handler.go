package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/nutrition-proxy/internal/httpserver"
	"github.com/angeloszaimis/nutrition-proxy/internal/metrics"
	"github.com/angeloszaimis/nutrition-proxy/internal/nutrition"
	"github.com/angeloszaimis/nutrition-proxy/internal/upstream"
)

// MaxBodyBytes caps request bodies. Images arrive base64 encoded.
const MaxBodyBytes = 10 << 20

const probeTimeout = 10 * time.Second

type MacroEstimator interface {
	EstimateMacros(ctx context.Context, q nutrition.TextQuery) (nutrition.MacroResult, error)
}

type ImageRecognizer interface {
	RecognizeImage(ctx context.Context, q nutrition.ImageQuery) (nutrition.ImageRecognitionResult, error)
}

type Upstream interface {
	MacroEstimator
	ImageRecognizer
}

// Prober is implemented by upstreams that can check reachability on demand.
type Prober interface {
	Ping(ctx context.Context) (int, error)
}

// EnvInfo is the static part of the diagnostic report.
type EnvInfo struct {
	Environment string
	Model       string
	HasAPIKey   bool
	StartedAt   time.Time
}

type NutritionHandler struct {
	logger   *slog.Logger
	upstream Upstream
	stats    *metrics.Collector
	info     EnvInfo
}

type macrosRequest struct {
	Query string `json:"query"`
}

type imageRequest struct {
	Image string `json:"image"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func New(logger *slog.Logger, up Upstream, stats *metrics.Collector, info EnvInfo) *NutritionHandler {
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}

	return &NutritionHandler{
		logger:   logger,
		upstream: up,
		stats:    stats,
		info:     info,
	}
}

// GetMacros handles POST /api/get-macros.
func (h *NutritionHandler) GetMacros(w http.ResponseWriter, r *http.Request) {
	var body macrosRequest
	if !h.decode(w, r, &body) {
		return
	}

	q := nutrition.TextQuery{Text: body.Query}
	if err := q.Validate(); err != nil {
		h.writeError(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.logger.Info("Estimating macros",
		slog.Int("query_length", len(q.Text)),
		slog.String("request_id", httpserver.RequestIDFromContext(r.Context())))

	res, err := h.upstream.EstimateMacros(context.WithoutCancel(r.Context()), q)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// AnalyzeImage handles POST /api/analyze-image.
func (h *NutritionHandler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	var body imageRequest
	if !h.decode(w, r, &body) {
		return
	}

	q := nutrition.NewImageQuery(body.Image)
	if err := q.Validate(); err != nil {
		h.writeError(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.logger.Info("Recognizing image",
		slog.String("mime_type", q.MIMEType),
		slog.Int("image_bytes", len(q.ImageData)),
		slog.String("request_id", httpserver.RequestIDFromContext(r.Context())))

	res, err := h.upstream.RecognizeImage(context.WithoutCancel(r.Context()), q)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// Health handles GET /health.
func (h *NutritionHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Fallback answers requests no route accepted. Paths in allowed get a 405
// listing the accepted methods, everything else a 404.
func (h *NutritionHandler) Fallback(allowed map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow, ok := allowed[r.URL.Path]; ok {
			w.Header().Set("Allow", allow)
			h.writeError(w, r, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
			return
		}

		h.writeError(w, r, http.StatusNotFound, errorResponse{Error: "Not found"})
	}
}

// Static serves files for GET and HEAD and rejects other methods with JSON.
func (h *NutritionHandler) Static(files http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			h.writeError(w, r, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
			return
		}

		files.ServeHTTP(w, r)
	}
}

type probeReport struct {
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

type envReport struct {
	Status        string           `json:"status"`
	Environment   string           `json:"environment"`
	HasAPIKey     bool             `json:"hasApiKey"`
	Model         string           `json:"model"`
	UptimeSeconds float64          `json:"uptimeSeconds"`
	Timestamp     string           `json:"timestamp"`
	Upstream      metrics.Snapshot `json:"upstream"`
	Probe         *probeReport     `json:"probe,omitempty"`
}

// TestEnv handles GET /api/test-env. With ?probe=true it also makes one
// unretried call to the provider.
func (h *NutritionHandler) TestEnv(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	report := envReport{
		Status:        "ok",
		Environment:   h.info.Environment,
		HasAPIKey:     h.info.HasAPIKey,
		Model:         h.info.Model,
		UptimeSeconds: now.Sub(h.info.StartedAt).Seconds(),
		Timestamp:     now.UTC().Format(time.RFC3339),
		Upstream:      h.stats.Snapshot(),
	}

	if r.URL.Query().Get("probe") == "true" {
		report.Probe = h.probe(r.Context())
	}

	h.writeJSON(w, http.StatusOK, report)
}

func (h *NutritionHandler) probe(ctx context.Context) *probeReport {
	prober, ok := h.upstream.(Prober)
	if !ok {
		return &probeReport{Error: "probe not supported"}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status, err := prober.Ping(ctx)
	if err != nil {
		return &probeReport{Error: err.Error()}
	}

	return &probeReport{
		Reachable:  status >= 200 && status < 300,
		StatusCode: status,
	}
}

// decode reads a JSON body into dst and writes the error response itself
// when that fails.
func (h *NutritionHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	// An empty body decodes as an empty object so the field checks report it.
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		h.writeError(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
	default:
		h.writeError(w, r, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
	}

	return false
}

func (h *NutritionHandler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)

	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("kind", string(upstream.KindOf(err))),
	}
	var failure *upstream.Failure
	if errors.As(err, &failure) && failure.Attempts > 0 {
		attrs = append(attrs, slog.Int("attempts", failure.Attempts))
	}
	attrs = append(attrs,
		slog.Any("err", err),
		slog.String("request_id", httpserver.RequestIDFromContext(r.Context())))

	h.logger.Error("Nutrition request failed", attrs...)

	h.writeError(w, r, status, resp)
}

// classify maps a client error onto an HTTP status and body.
func classify(err error) (int, errorResponse) {
	if errors.Is(err, upstream.ErrInvalidQuery) {
		return http.StatusBadRequest, errorResponse{Error: "Invalid query"}
	}
	if errors.Is(err, upstream.ErrMissingCredential) {
		return http.StatusInternalServerError, errorResponse{Error: "API key not configured"}
	}

	var failure *upstream.Failure
	if !errors.As(err, &failure) {
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error"}
	}

	switch failure.Kind {
	case upstream.KindClientRejected:
		status := failure.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return status, errorResponse{Error: "Upstream request rejected", Details: failure.Body}
	case upstream.KindMalformedResponse:
		return http.StatusInternalServerError, errorResponse{Error: "Invalid response from nutrition provider"}
	case upstream.KindRetriesExhausted:
		return http.StatusInternalServerError, errorResponse{Error: "Nutrition provider unavailable after retries"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error"}
	}
}

func (h *NutritionHandler) writeError(w http.ResponseWriter, r *http.Request, status int, resp errorResponse) {
	resp.RequestID = httpserver.RequestIDFromContext(r.Context())
	h.writeJSON(w, status, resp)
}

func (h *NutritionHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write response", slog.Any("err", err))
	}
}
