// Package server exposes a translator.Service over HTTP using the same
// batch contract the HTTP client speaks: POST /api/translate with
// {"url", "segments", "targetLang"} answered by {"translations"}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/valpere/bilingua/internal/metrics"
	"github.com/valpere/bilingua/internal/translator"
)

const maxBodyBytes = 4 << 20

type Config struct {
	Addr string
	// AllowOrigin is sent as Access-Control-Allow-Origin. Empty means "*".
	AllowOrigin string
	// TargetLang is used when a request does not name one.
	TargetLang string
	// Timeout bounds one upstream translation.
	Timeout time.Duration
}

type Server struct {
	service translator.Service
	config  Config
	logger  *zap.Logger
	router  chi.Router
}

func New(service translator.Service, config Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AllowOrigin == "" {
		config.AllowOrigin = "*"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	s := &Server{service: service, config: config, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Post(translator.TranslatePath, s.handleTranslate)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening",
			zap.String("addr", s.config.Addr),
			zap.String("service", s.service.Name()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.config.AllowOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translator.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if len(req.Segments) == 0 {
		s.writeJSON(w, r, http.StatusOK, translator.Response{Translations: []string{}})
		return
	}
	if req.TargetLang == "" {
		req.TargetLang = s.config.TargetLang
	}
	metrics.ServerSegments.Add(float64(len(req.Segments)))

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.service.Translate(ctx, req)
	if err != nil {
		status := http.StatusInternalServerError
		if translator.Classify(err) == translator.ClassRateLimited {
			status = http.StatusTooManyRequests
		}
		s.logger.Warn("translation failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int("segments", len(req.Segments)),
			zap.Error(err))
		s.writeError(w, r, status, err.Error())
		return
	}

	s.logger.Debug("translation served",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("url", req.URL),
		zap.Int("segments", len(req.Segments)),
		zap.Duration("latency", time.Since(start)))
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.IsAvailable(r.Context()); err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "service": s.service.Name()})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if r.URL.Path == translator.TranslatePath {
		metrics.ServerRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}
