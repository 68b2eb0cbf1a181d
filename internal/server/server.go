// Package server exposes modules and their comments over HTTP.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nevindra/modulebox"
	"github.com/nevindra/modulebox/internal/upload"
)

const (
	defaultMaxUploadBytes = 32 << 20 // 32MB
	defaultListLimit      = 50

	// multipartMemory is how much of a multipart body is held in memory
	// before parts spill to temporary files.
	multipartMemory = 8 << 20

	maxCommentBytes = 1 << 20
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a structured logger for request and handler logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTracer enables spans around uploads.
func WithTracer(t modulebox.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithMaxUploadBytes caps the size of an upload request body.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithHTTPInstrumentation wraps the router with otelhttp.
func WithHTTPInstrumentation() Option {
	return func(s *Server) { s.otelHTTP = true }
}

// Server routes HTTP requests to the module store.
type Server struct {
	store     modulebox.Store
	extractor modulebox.Extractor
	uploads   *upload.Storage
	logger    *slog.Logger
	tracer    modulebox.Tracer
	maxUpload int64
	otelHTTP  bool
	policy    *bluemonday.Policy
	handler   http.Handler
}

// New creates a Server. Uploaded files are written to uploads, extracted
// with extractor and persisted in store.
func New(store modulebox.Store, extractor modulebox.Extractor, uploads *upload.Storage, opts ...Option) *Server {
	s := &Server{
		store:     store,
		extractor: extractor,
		uploads:   uploads,
		logger:    slog.New(slog.DiscardHandler),
		maxUpload: defaultMaxUploadBytes,
		policy:    bluemonday.StrictPolicy(),
	}
	for _, o := range opts {
		o(s)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/modules", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Post("/comments", s.handleAddComment)
			r.Get("/export.xlsx", s.handleExport)
		})
	})

	if s.otelHTTP {
		return otelhttp.NewHandler(r, "modulebox",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}))
	}
	return r
}
