package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/yurifrl/coinbook/pkg/config"
	"github.com/yurifrl/coinbook/pkg/csv"
	"github.com/yurifrl/coinbook/pkg/dataset"
	"github.com/yurifrl/coinbook/pkg/filter"
	"github.com/yurifrl/coinbook/pkg/importer"
	"github.com/yurifrl/coinbook/pkg/messages"
	"github.com/yurifrl/coinbook/pkg/progress"
	"github.com/yurifrl/coinbook/pkg/service"
	"github.com/yurifrl/coinbook/pkg/summary"
	"github.com/yurifrl/coinbook/pkg/xlsx"
)

// multipart framing allowance on top of the file size limit
const uploadOverhead = 1 << 20

// Server serves coin datasets over HTTP, one dataset per session.
type Server struct {
	config    *config.Config
	logger    *log.Logger
	mux       *http.ServeMux
	importer  *importer.Importer
	processor *service.Processor
	upgrader  websocket.Upgrader
	sessions  sync.Map
	now       func() time.Time

	// base context for loads; cancelled on shutdown
	ctx context.Context
}

// New creates a new HTTP server
func New(config *config.Config, logger *log.Logger) *Server {
	s := &Server{
		config:    config,
		logger:    logger,
		mux:       http.NewServeMux(),
		importer:  importer.New(config, logger),
		processor: service.NewProcessor(config, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		now: time.Now,
		ctx: context.Background(),
	}
	s.setupRoutes()
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.ctx = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	s.sessions.Range(func(_, v any) bool {
		v.(*session).closeAll()
		return true
	})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.withLogging(s.handleHealth))
	s.mux.HandleFunc("POST /api/sessions", s.withLogging(s.handleCreateSession))
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.withLogging(s.handleDeleteSession))

	s.mux.HandleFunc("POST /api/sessions/{id}/upload", s.withLogging(s.handleUpload))
	s.mux.HandleFunc("GET /api/sessions/{id}/view", s.withLogging(s.handleView))
	s.mux.HandleFunc("POST /api/sessions/{id}/filter", s.withLogging(s.handleFilter))
	s.mux.HandleFunc("POST /api/sessions/{id}/reset", s.withLogging(s.handleReset))
	s.mux.HandleFunc("GET /api/sessions/{id}/stats", s.withLogging(s.handleStats))
	s.mux.HandleFunc("GET /api/sessions/{id}/options", s.withLogging(s.handleOptions))
	s.mux.HandleFunc("GET /api/sessions/{id}/export.csv", s.withLogging(s.handleExportCSV))
	s.mux.HandleFunc("GET /api/sessions/{id}/export.xlsx", s.withLogging(s.handleExportXLSX))
	s.mux.HandleFunc("GET /api/sessions/{id}/ws", s.withLogging(s.handleWebsocket))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// ---------------- sessions ----------------

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := newSession(dataset.New(s.config.PageSize, s.importer, s.processor))
	s.sessions.Store(sess.id, sess)
	s.logger.Info("session created", "session", sess.id)

	if err := s.writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"session": sess.id,
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	v, ok := s.sessions.LoadAndDelete(r.PathValue("id"))
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "session not found", nil)
		return
	}
	v.(*session).closeAll()
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the {id} path value or answers 404.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	v, ok := s.sessions.Load(r.PathValue("id"))
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "session not found", nil)
		return nil, false
	}
	return v.(*session), true
}

// ---------------- upload ----------------

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.store.Processing() {
		s.respondError(w, r, http.StatusConflict, messages.Busy, dataset.ErrBusy)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxFileSize+uploadOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			limitErr := &importer.LimitError{Size: tooBig.Limit, Limit: s.config.MaxFileSize}
			s.respondError(w, r, http.StatusRequestEntityTooLarge, messages.For(limitErr), err)
			return
		}
		s.respondError(w, r, http.StatusBadRequest, messages.ReadFailed, err)
		return
	}
	defer file.Close()

	limiter := rate.NewLimiter(rate.Limit(s.config.Server.ProgressRate), 1)
	sink := progress.Throttle(progress.Func(func(pct float64, status string) {
		sess.broadcast(s.logger, frame{Type: frameProgress, Percent: pct, Status: status})
	}), limiter)

	src := dataset.Source{Name: header.Filename, Size: header.Size, Reader: file}
	report, err := sess.store.Load(s.ctx, src, sink)
	if err != nil {
		msg := messages.For(err)
		sess.broadcast(s.logger, frame{Type: frameError, Message: msg})
		s.respondError(w, r, statusFor(err), msg, err)
		return
	}

	s.logger.Info("dataset loaded", "session", sess.id, "file", report.Name, "items", report.Count, "skipped", report.Stats.Skipped, "elapsed", report.Stats.Elapsed)

	view := sess.store.View()
	msg := messages.Loaded(report.Count)
	sess.broadcast(s.logger, frame{Type: frameView, View: &view, Message: msg})

	if err := s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": msg,
		"report":  report,
		"view":    view,
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// ---------------- view / filters ----------------

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			s.respondError(w, r, http.StatusBadRequest, "invalid page", err)
			return
		}
		sess.store.SetPage(n)
	}
	s.respondView(w, sess)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var c filter.Criteria
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid filter body", err)
		return
	}
	if err := sess.store.ApplyFilters(c); err != nil {
		s.respondError(w, r, statusFor(err), messages.For(err), err)
		return
	}
	s.publishView(sess)
	s.respondView(w, sess)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.store.Reset(); err != nil {
		s.respondError(w, r, statusFor(err), messages.For(err), err)
		return
	}
	s.publishView(sess)
	s.respondView(w, sess)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	items := sess.store.Filtered()
	if err := s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"summary":   summary.Summarize(items),
		"breakdown": summary.Breakdown(items),
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"options": sess.store.Options(),
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// ---------------- export handlers ----------------

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	data, err := csv.Create(sess.store.Filtered(), nil)
	if err != nil {
		s.respondError(w, r, statusFor(err), messages.For(err), err)
		return
	}
	s.attachment(w, r, "text/csv; charset=utf-8", csv.FileName(s.config.ExportLabel, s.now()), data)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := xlsx.Write(&buf, sess.store.Filtered()); err != nil {
		s.respondError(w, r, statusFor(err), messages.For(err), err)
		return
	}
	s.attachment(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", xlsx.FileName(s.config.ExportLabel, s.now()), buf.Bytes())
}

// --- helpers ---

func (s *Server) attachment(w http.ResponseWriter, r *http.Request, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write export", "err", err, "path", r.URL.Path)
	}
}

func (s *Server) respondView(w http.ResponseWriter, sess *session) {
	view := sess.store.View()
	if err := s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"view":     view,
		"pageInfo": messages.PageInfo(view.Page, view.TotalPages),
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) publishView(sess *session) {
	view := sess.store.View()
	sess.broadcast(s.logger, frame{Type: frameView, View: &view})
}

// statusFor picks the HTTP status for a domain error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dataset.ErrBusy), errors.Is(err, csv.ErrNoData):
		return http.StatusConflict
	case errors.Is(err, importer.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrNoValidData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrRead):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// writeJSON encodes v as JSON with the given status and writes headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// respondError logs the error and returns a minimal JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("request error", "status", status, "msg", message, "err", err, "method", r.Method, "path", r.URL.Path)
	} else {
		s.logger.Warn("request error", "status", status, "msg", message, "method", r.Method, "path", r.URL.Path)
	}
	_ = s.writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// withLogging wraps a handler to log request start/end and recover panics.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		next(w, r)
	}
}
