// Package server exposes the HTTP API: session registration and lookup,
// drawing uploads, analysis status and results, color profiles, step-2
// follow-up questions and report generation.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/drawmind/htp-server/internal/pipeline"
	"github.com/drawmind/htp-server/internal/report"
	"github.com/drawmind/htp-server/internal/store"
	"github.com/drawmind/htp-server/pkg/colors"
	"github.com/drawmind/htp-server/pkg/rules"
	"github.com/drawmind/htp-server/pkg/summarizer"
)

// Server holds the handler dependencies.
type Server struct {
	store      *store.Store
	pipeline   *pipeline.Pipeline
	colors     *colors.Analyzer
	questions  rules.QuestionSet
	summarizer summarizer.Client
	renderer   *report.Renderer
	uploadDir  string
	logger     *zap.Logger
}

// New creates a Server.
func New(st *store.Store, pl *pipeline.Pipeline, ca *colors.Analyzer, qs rules.QuestionSet, sum summarizer.Client, rend *report.Renderer, uploadDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:      st,
		pipeline:   pl,
		colors:     ca,
		questions:  qs,
		summarizer: sum,
		renderer:   rend,
		uploadDir:  uploadDir,
		logger:     logger,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions/start", s.handleSessionStart)
	mux.HandleFunc("POST /api/sessions/find", s.handleSessionFind)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)

	mux.HandleFunc("POST /api/drawings/upload", s.handleDrawingUpload)
	mux.HandleFunc("GET /api/drawings/{sessionID}", s.handleDrawingList)
	mux.HandleFunc("GET /api/drawings/{sessionID}/{drawingID}/status", s.handleDrawingStatus)
	mux.HandleFunc("GET /api/drawings/{sessionID}/{drawingID}/result", s.handleDrawingResult)

	mux.HandleFunc("POST /api/colors", s.handleColorAnalysis)
	mux.HandleFunc("GET /api/step2/question", s.handleStep2Question)
	mux.HandleFunc("POST /api/report/generate", s.handleReportGenerate)

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
