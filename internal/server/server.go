package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fleetreport/internal"
	"fleetreport/internal/config"
	"fleetreport/internal/logging"
	"fleetreport/internal/pipeline"
	"fleetreport/internal/util"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Server is the HTTP front end over the report pipeline.
type Server struct {
	router    *chi.Mux
	reports   *pipeline.Service
	addr      string
	maxUpload int64
	logger    *slog.Logger
}

func New(cfg config.Config, reports *pipeline.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	maxMB := cfg.HTTPMaxUploadMB
	if maxMB <= 0 {
		maxMB = 32
	}
	s := &Server{
		router:    chi.NewRouter(),
		reports:   reports,
		addr:      cfg.HTTPAddr,
		maxUpload: int64(maxMB) << 20,
		logger:    logger.With("component", "http"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Post("/reports/{kind}", s.handleLoadReport)
	s.router.Get("/reports/latest", s.handleLatest)
	s.router.Get("/reports/latest.xlsx", s.handleLatestWorkbook)

	s.router.Post("/codes", s.handleCodes)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"ms", time.Since(start).Milliseconds(),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLoadReport loads the uploaded export. The communication report
// answers with its summary; the spreadsheet reports answer with the XLSX.
func (s *Server) handleLoadReport(w http.ResponseWriter, r *http.Request) {
	report, err := pipeline.ParseReportKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	in, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	loaded, err := s.reports.Load(r.Context(), report, in)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if report == internal.ReportGPS {
		writeJSON(w, http.StatusOK, newReportView(loaded, true))
		return
	}
	s.writeWorkbook(w, loaded)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	loaded := s.reports.Workspace().Latest()
	if loaded == nil {
		writeError(w, http.StatusNotFound, errors.New("no report loaded"))
		return
	}
	writeJSON(w, http.StatusOK, newReportView(loaded, r.URL.Query().Get("rows") == "1"))
}

func (s *Server) handleLatestWorkbook(w http.ResponseWriter, r *http.Request) {
	loaded := s.reports.Workspace().Latest()
	if loaded == nil {
		writeError(w, http.StatusNotFound, errors.New("no report loaded"))
		return
	}
	s.writeWorkbook(w, loaded)
}

func (s *Server) handleCodes(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, util.JoinCodes(string(body)))
}

// readUpload takes the "file" part of a multipart form. An optional "type"
// field overrides detection from the file name.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (pipeline.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return pipeline.Input{}, fmt.Errorf("read upload: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Input{}, err
	}

	kind := internal.InputKind(strings.ToLower(strings.TrimSpace(r.FormValue("type"))))
	switch kind {
	case internal.InputCSV, internal.InputXLSX, internal.InputHTML, internal.InputPDF:
	case "", "auto":
		detected, ok := pipeline.DetectKind(header.Filename, data)
		if !ok {
			return pipeline.Input{}, fmt.Errorf("unsupported file type: %s", header.Filename)
		}
		kind = detected
	default:
		return pipeline.Input{}, fmt.Errorf("unsupported input type: %s", kind)
	}
	return pipeline.Input{Name: header.Filename, Kind: kind, Data: data}, nil
}

func (s *Server) writeWorkbook(w http.ResponseWriter, loaded *pipeline.LoadedReport) {
	f, err := s.reports.Workbook(loaded)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defer f.Close()

	name := pipeline.OutputName(loaded.Report, loaded.Source)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if _, err := f.WriteTo(w); err != nil {
		s.logger.Warn("workbook write failed", "load", loaded.ID, "error", err)
	}
}

func statusFor(err error) int {
	var pe *pipeline.ParseError
	switch {
	case errors.As(err, &pe), errors.Is(err, pipeline.ErrHeaderNotFound), errors.Is(err, pipeline.ErrNothingToExport):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
