package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appanalysis "github.com/securescript/securescript-api/internal/application/analysis"
	domain "github.com/securescript/securescript-api/internal/domain/analysis"
	"github.com/securescript/securescript-api/internal/domain/quota"
	"github.com/securescript/securescript-api/internal/middleware"
)

const serviceName = "securescript-api"

// Options carries the router's collaborators and policy knobs.
type Options struct {
	Quota          quota.Store
	Auth           middleware.AuthConfig
	Logger         *zap.Logger
	AllowedOrigins []string
	UpstreamAPIKey string
	UpstreamWait   time.Duration
}

type Router struct {
	svc    *appanalysis.Service
	logger *zap.Logger
	wait   time.Duration
}

func NewRouter(svc *appanalysis.Service, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	wait := opts.UpstreamWait
	if wait <= 0 {
		wait = 2 * time.Minute
	}
	r := &Router{svc: svc, logger: logger, wait: wait}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	mux.Use(middleware.LoggingMiddleware(logger))
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/health", middleware.HealthHandler(serviceName, nil))
	mux.Get("/ready", middleware.HealthHandler(serviceName, map[string]middleware.HealthChecker{
		"groq": &middleware.UpstreamConfigChecker{APIKey: opts.UpstreamAPIKey},
	}))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Group(func(api chi.Router) {
		api.Use(middleware.Auth(opts.Auth))
		api.Use(middleware.RateLimitMiddleware(opts.Quota))
		api.Post("/api/analyze", r.wrap(r.handleAnalyze))
		api.Post("/api/fix", r.wrap(r.handleFix))
	})

	return mux
}

// errBadBody covers request bodies that fail to decode at all.
var errBadBody = errors.New("invalid request body")

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, domain.ErrEmptyCode), errors.Is(err, domain.ErrCodeTooLarge), errors.Is(err, errBadBody):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, quota.ErrQuotaExceeded):
			writeJSONError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, domain.ErrMalformedOutput), errors.Is(err, domain.ErrUpstream):
			writeJSONError(w, http.StatusBadGateway, err.Error())
		default:
			writeJSONError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

func writeJSONError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// POST /api/analyze
// Body: {"code": "<python source>"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	requestID := shortID()

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return errBadBody
	}

	r.logger.Info("analysis request",
		zap.String("request_id", requestID),
		zap.Int("code_bytes", len(body.Code)),
	)

	ctx, cancel := context.WithTimeout(req.Context(), r.wait)
	defer cancel()

	report, err := r.svc.Analyze(ctx, body.Code)
	if err != nil {
		r.logger.Error("analysis failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return err
	}

	middleware.IncrementAnalyses()
	r.logger.Info("analysis complete",
		zap.String("request_id", requestID),
		zap.Int("issues", len(report.Issues)),
	)

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(report)
}

// POST /api/fix
// Body: {"code": "...", "issues": [...]}
// Response is a text/event-stream: one start event, ordered chunk
// events, then exactly one terminal complete or error event.
func (r *Router) handleFix(w http.ResponseWriter, req *http.Request) error {
	requestID := shortID()

	var body struct {
		Code   string                 `json:"code"`
		Issues []domain.SecurityIssue `json:"issues"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return errBadBody
	}

	r.logger.Info("fix request",
		zap.String("request_id", requestID),
		zap.Int("issues", len(body.Issues)),
	)

	ctx, cancel := context.WithTimeout(req.Context(), r.wait)
	defer cancel()

	stream, err := r.svc.Fix(ctx, body.Code, body.Issues)
	if err != nil {
		// Nothing has been written yet, so a plain HTTP error is still possible.
		return err
	}
	defer stream.Close()

	setSSEHeaders(w)
	sse, err := newSSEWriter(w)
	if err != nil {
		return err
	}

	middleware.IncrementStreamsActive()
	defer middleware.DecrementStreamsActive()

	if err := sse.writeEvent("start", map[string]string{"status": "Starting fixes..."}); err != nil {
		return nil
	}

	var fixed strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			middleware.IncrementStreamsFailed()
			if req.Context().Err() != nil {
				// Client went away; stop reading upstream and release the stream.
				r.logger.Info("fix stream cancelled", zap.String("request_id", requestID))
				return nil
			}
			r.logger.Error("fix stream failed",
				zap.String("request_id", requestID),
				zap.Error(recvErr),
			)
			sse.writeEvent("error", map[string]string{"error": "Fix failed"})
			return nil
		}

		fixed.WriteString(chunk)
		if err := sse.writeEvent("chunk", map[string]string{"chunk": chunk}); err != nil {
			// Write side is gone; upstream is closed by the deferred Close.
			middleware.IncrementStreamsFailed()
			return nil
		}
	}

	sse.writeEvent("complete", map[string]string{"fixed_code": fixed.String()})
	middleware.IncrementFixes()
	r.logger.Info("fix complete",
		zap.String("request_id", requestID),
		zap.Int("fixed_bytes", fixed.Len()),
	)
	return nil
}

func shortID() string {
	return uuid.New().String()[:8]
}
