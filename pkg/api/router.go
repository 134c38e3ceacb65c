package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fileflux/fileflux/internal/logger"
	"github.com/fileflux/fileflux/pkg/api/handlers"
	"github.com/fileflux/fileflux/pkg/metrics"
)

// Deps carries the handler dependencies wired by the caller.
type Deps struct {
	Ingestor handlers.Uploader
	Files    interface {
		handlers.FileGetter
		handlers.FileLister
	}
	Queue interface {
		handlers.JobCreator
		handlers.JobGetter
		handlers.JobLister
	}
	Checkers map[string]handlers.Checker
	Version  string
}

// NewRouter builds the chi router with the full middleware stack and all
// routes.
//
// There is deliberately no request timeout middleware: /upload streams
// multi-gigabyte bodies and must not be cut off by a wall clock.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	health := handlers.NewHealthHandler(deps.Version, deps.Checkers)
	upload := handlers.NewUploadHandler(deps.Ingestor)
	process := handlers.NewProcessHandler(deps.Files, deps.Queue)
	jobs := handlers.NewJobsHandler(deps.Queue)
	files := handlers.NewFilesHandler(deps.Files, deps.Queue)

	r.Get("/", health.Banner)
	r.Get("/healthz", health.Healthz)
	r.Post("/upload", upload.Upload)
	r.Post("/process/{fileID}", process.Process)
	r.Get("/jobs/{jobID}", jobs.Get)
	r.Get("/files", files.List)
	r.Get("/files/{fileID}", files.Get)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// requestLogger logs each request once on completion, with health probes
// demoted to debug so they do not drown the log.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		route := routePattern(r)
		metrics.ObserveHTTPRequest(route, r.Method, ww.Status(), duration)

		logArgs := []any{
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			logger.Debug("request completed", logArgs...)
		} else {
			logger.Info("request completed", logArgs...)
		}
	})
}

// routePattern returns the matched chi route pattern, or the raw path when
// no route matched.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
