// Package api exposes screening sessions over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fmuoria/resume-screener/internal/agent"
	"github.com/fmuoria/resume-screener/internal/evaluation"
	"github.com/fmuoria/resume-screener/internal/ingestion"
	"github.com/fmuoria/resume-screener/internal/logging"
	"github.com/fmuoria/resume-screener/internal/metrics"
	"github.com/fmuoria/resume-screener/internal/models"
	"github.com/fmuoria/resume-screener/internal/session"
)

const (
	// Version is reported by the root endpoint
	Version = "2.0.0"

	maxJSONBody = 1 << 20
)

// Options configures a Server
type Options struct {
	// CORSOrigins lists allowed origins; empty allows any
	CORSOrigins []string
	// RequestsPerMinute limits mutating requests per client IP; zero disables the limit
	RequestsPerMinute int
	// MaxUploadBytes bounds one multipart upload request
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server handles HTTP requests
type Server struct {
	agent    *agent.Agent
	opts     Options
	logger   *slog.Logger
	validate *validator.Validate
}

// NewServer creates a new API server
func NewServer(a *agent.Agent, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = ingestion.DefaultMaxUploadSize
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		agent:    a,
		opts:     opts,
		logger:   logger.With(slog.String("component", "api")),
		validate: validator.New(),
	}
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// read-only
		r.Get("/session", s.handleGetSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/sessions/{id}/results", s.handleResults)
		r.Get("/sessions/{id}/results.csv", s.handleCSV)
		r.Get("/sessions/{id}/results/detailed.csv", s.handleDetailedCSV)
		r.Get("/sessions/{id}/results.xlsx", s.handleExcel)

		// mutating
		r.Group(func(r chi.Router) {
			if s.opts.RequestsPerMinute > 0 {
				r.Use(httprate.LimitByIP(s.opts.RequestsPerMinute, time.Minute))
			}
			r.Post("/session", s.handleSaveSession)
			r.Post("/sessions", s.handleCreateSession)
			r.Delete("/sessions/{id}", s.handleDeleteSession)
			r.Put("/sessions/{id}/criteria", s.handleSetCriteria)
			r.Post("/sessions/{id}/resumes", s.handleUpload)
			r.Post("/sessions/{id}/gmail", s.handleGmail)
			r.Post("/sessions/{id}/evaluate", s.handleEvaluate)
			r.Post("/sessions/{id}/candidates/{candidateID}/feedback", s.handleFeedback)
		})
	})

	return r
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, map[string]any{
		"service": "Resume Screener",
		"version": Version,
		"endpoints": map[string]string{
			"POST /api/sessions":                          "Create a session from a job description",
			"GET /api/sessions/{id}":                      "Get session state",
			"PUT /api/sessions/{id}/criteria":             "Select and weight criteria",
			"POST /api/sessions/{id}/resumes":             "Upload resumes (multipart field \"files\")",
			"POST /api/sessions/{id}/gmail":               "Fetch resumes from Gmail",
			"POST /api/sessions/{id}/evaluate":            "Score and rank candidates",
			"GET /api/sessions/{id}/results":              "Get ranked candidates",
			"GET /api/sessions/{id}/results.csv":          "Download CSV report",
			"GET /api/sessions/{id}/results/detailed.csv": "Download CSV report with justifications",
			"GET /api/sessions/{id}/results.xlsx":         "Download Excel report",
			"GET /health":                                 "Health check",
		},
	})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if !s.decode(w, r, &req) {
		return
	}

	sess, err := s.agent.CreateSession(r.Context(), req)
	if err != nil {
		s.respondAgentError(w, r, err, "failed to create session")
		return
	}
	s.respondJSON(w, r, http.StatusCreated, sess)
}

// handleGetSession serves /api/sessions/{id} and /api/session?id=
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id == "" {
		s.respondError(w, r, http.StatusBadRequest, "session id is required")
		return
	}

	sess, err := s.agent.Session(r.Context(), id)
	if err != nil {
		s.respondAgentError(w, r, err, "failed to load session")
		return
	}
	s.respondJSON(w, r, http.StatusOK, sess)
}

// handleSaveSession replaces the state of a session, creating it if needed
func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	var sess models.Session
	if !s.decode(w, r, &sess) {
		return
	}
	if id := r.URL.Query().Get("id"); id != "" {
		sess.ID = id
	}
	if len(sess.Criteria) > 0 {
		if err := s.validate.Struct(models.CriteriaRequest{Criteria: sess.Criteria}); err != nil {
			s.respondError(w, r, http.StatusBadRequest, validationMessage(err))
			return
		}
	}

	if err := s.agent.SaveSession(r.Context(), &sess); err != nil {
		s.respondAgentError(w, r, err, "failed to save session")
		return
	}
	s.respondJSON(w, r, http.StatusOK, &sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondAgentError(w, r, err, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetCriteria(w http.ResponseWriter, r *http.Request) {
	var req models.CriteriaRequest
	if !s.decode(w, r, &req) {
		return
	}

	sess, err := s.agent.SetCriteria(r.Context(), chi.URLParam(r, "id"), req.Criteria)
	if err != nil {
		s.respondAgentError(w, r, err, "failed to set criteria")
		return
	}
	s.respondJSON(w, r, http.StatusOK, sess)
}

type rejectedFile struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type uploadResponse struct {
	Uploaded []models.CandidateSubmission `json:"uploaded"`
	Rejected []rejectedFile               `json:"rejected,omitempty"`
}

// handleUpload stores every file of the "files" field. Rejected files are
// reported alongside the accepted ones.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", s.opts.MaxUploadBytes))
			return
		}
		s.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("Failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, r, http.StatusBadRequest, "no files uploaded")
		return
	}

	id := chi.URLParam(r, "id")
	resp := uploadResponse{Uploaded: []models.CandidateSubmission{}}
	var firstErr error
	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			resp.Rejected = append(resp.Rejected, rejectedFile{File: fh.Filename, Error: "failed to open uploaded file"})
			continue
		}
		sub, err := s.agent.AddResume(r.Context(), id, fh.Filename, file)
		file.Close()
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				s.respondAgentError(w, r, err, "")
				return
			}
			if firstErr == nil {
				firstErr = err
			}
			s.loggerFor(r).Warn("upload rejected", slog.String("file", fh.Filename), slog.String("error", err.Error()))
			resp.Rejected = append(resp.Rejected, rejectedFile{File: fh.Filename, Error: err.Error()})
			continue
		}
		sub.ResumeText = ""
		resp.Uploaded = append(resp.Uploaded, sub)
	}

	if len(resp.Uploaded) == 0 && firstErr != nil {
		status, _ := statusFor(firstErr)
		s.respondJSON(w, r, status, resp)
		return
	}
	s.respondJSON(w, r, http.StatusOK, resp)
}

type gmailRequest struct {
	Subject string `json:"subject" validate:"required"`
}

func (s *Server) handleGmail(w http.ResponseWriter, r *http.Request) {
	var req gmailRequest
	if !s.decode(w, r, &req) {
		return
	}

	subs, err := s.agent.FetchFromGmail(r.Context(), chi.URLParam(r, "id"), req.Subject)
	if err != nil {
		s.respondAgentError(w, r, err, "failed to fetch Gmail attachments")
		return
	}
	for i := range subs {
		subs[i].ResumeText = ""
	}
	s.respondJSON(w, r, http.StatusOK, uploadResponse{Uploaded: subs})
}

type evaluateResponse struct {
	State      evaluation.State         `json:"state"`
	Failed     int                      `json:"failed"`
	Candidates []models.CandidateResult `json:"candidates"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.agent.Evaluate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondAgentError(w, r, err, "evaluation failed")
		return
	}
	s.respondJSON(w, r, http.StatusOK, evaluateResponse{
		State:      outcome.State,
		Failed:     outcome.Failed,
		Candidates: outcome.Ranked,
	})
}

// handleResults returns the evaluation report
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	report, err := s.agent.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondAgentError(w, r, err, "failed to build report")
		return
	}
	s.respondJSON(w, r, http.StatusOK, report)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")
	text, err := s.agent.Feedback(r.Context(), chi.URLParam(r, "id"), candidateID)
	if err != nil {
		s.respondAgentError(w, r, err, "failed to generate feedback")
		return
	}
	s.respondJSON(w, r, http.StatusOK, map[string]string{
		"candidate_id": candidateID,
		"feedback":     text,
	})
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.agent.WriteCSV(r.Context(), chi.URLParam(r, "id"), &buf); err != nil {
		s.respondAgentError(w, r, err, "failed to export CSV")
		return
	}
	s.attachment(w, "text/csv", "candidate_evaluation.csv", buf.Bytes())
}

func (s *Server) handleDetailedCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.agent.WriteDetailedCSV(r.Context(), chi.URLParam(r, "id"), &buf); err != nil {
		s.respondAgentError(w, r, err, "failed to export CSV")
		return
	}
	s.attachment(w, "text/csv", "candidate_evaluation_detailed.csv", buf.Bytes())
}

func (s *Server) handleExcel(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.agent.WriteExcel(r.Context(), chi.URLParam(r, "id"), &buf); err != nil {
		s.respondAgentError(w, r, err, "failed to export Excel report")
		return
	}
	s.attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "candidate_evaluation.xlsx", buf.Bytes())
}

func (s *Server) attachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write download", slog.String("file", filename), slog.String("error", err.Error()))
	}
}

// decode reads a JSON body into v and validates it. It writes the error
// response and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		s.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.respondError(w, r, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// statusFor maps agent errors to HTTP status codes. ok is false for
// unexpected errors.
func statusFor(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, evaluation.ErrContractViolation),
		errors.Is(err, ingestion.ErrUnsupportedFile),
		errors.Is(err, ingestion.ErrNoText):
		return http.StatusBadRequest, true
	case errors.Is(err, ingestion.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, true
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, agent.ErrCandidateNotFound),
		errors.Is(err, agent.ErrNoResults),
		errors.Is(err, ingestion.ErrNoMessages):
		return http.StatusNotFound, true
	case errors.Is(err, agent.ErrSessionChanged):
		return http.StatusConflict, true
	case errors.Is(err, agent.ErrGmailUnavailable):
		return http.StatusNotImplemented, true
	}
	return http.StatusInternalServerError, false
}

// respondAgentError reports known errors with their message and anything
// else as a 500 with fallback as the message
func (s *Server) respondAgentError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, ok := statusFor(err)
	if !ok {
		s.loggerFor(r).Error(fallback, slog.String("error", err.Error()))
		s.respondError(w, r, status, fallback)
		return
	}
	s.respondError(w, r, status, err.Error())
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.loggerFor(r).Warn("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.respondJSON(w, r, status, map[string]string{
		"error": message,
	})
}

// requestLogger logs each request with its request ID and puts the request
// logger in the context
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		logger := s.logger.With(slog.String("request_id", reqID))
		if reqID != "" {
			w.Header().Set(middleware.RequestIDHeader, reqID)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), logger)))

		level := slog.LevelInfo
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) loggerFor(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context())
}

func sessionID(r *http.Request) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("id"))
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
