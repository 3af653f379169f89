package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"poolOracle/internal/model"
)

// HealthSource reports pipeline health.
type HealthSource interface {
	StateName() string
	Subscribers() []model.SubscriberStatus
}

// apiError is the JSON body of every error response.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	errCodeInvalidAddress = "INVALID_ADDRESS"
	errCodeInvalidWindow  = "INVALID_WINDOW"
	errCodeNoData         = "NO_DATA"
	errCodeInternal       = "INTERNAL_ERROR"
)

type priceBody struct {
	Pool          string   `json:"pool"`
	Price         *float64 `json:"price,omitempty"`
	WindowMinutes int64    `json:"window_minutes,omitempty"`
	Message       string   `json:"message"`
}

// Server exposes the query service over HTTP.
type Server struct {
	service *Service
	health  HealthSource
	metrics http.Handler
	logger  *zap.Logger
	router  *mux.Router
}

// NewServer builds the router. health and metrics may be nil.
func NewServer(service *Service, health HealthSource, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: service,
		health:  health,
		metrics: metrics,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/pools", s.handlePools()).Methods(http.MethodGet)
	s.router.HandleFunc("/pools/{address}/current", s.handleCurrent()).Methods(http.MethodGet)
	s.router.HandleFunc("/pools/{address}/average", s.handleAverage()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth()).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server start", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handlePools() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"pools": s.service.SupportedPools()})
	}
}

func (s *Server) handleCurrent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pool, ok := s.poolFromPath(w, r)
		if !ok {
			return
		}
		s.writeResponse(w, s.service.Current(r.Context(), pool))
	}
}

func (s *Server) handleAverage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pool, ok := s.poolFromPath(w, r)
		if !ok {
			return
		}
		var window time.Duration
		if raw := r.URL.Query().Get("window"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				writeError(w, http.StatusBadRequest, errCodeInvalidWindow, fmt.Sprintf("invalid window %q", raw))
				return
			}
			window = d
		}
		s.writeResponse(w, s.service.Average(r.Context(), pool, window))
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if s.health != nil {
			body["state"] = s.health.StateName()
			body["subscribers"] = s.health.Subscribers()
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) poolFromPath(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	address := mux.Vars(r)["address"]
	pool, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeInvalidAddress, fmt.Sprintf("invalid pool address %q", address))
		return solana.PublicKey{}, false
	}
	return pool, true
}

func (s *Server) writeResponse(w http.ResponseWriter, resp Response) {
	switch v := resp.(type) {
	case CurrentPrice:
		writeJSON(w, http.StatusOK, priceBody{Pool: v.Pool, Price: &v.Value, Message: v.String()})
	case AveragePrice:
		writeJSON(w, http.StatusOK, priceBody{Pool: v.Pool, Price: &v.Value, WindowMinutes: Minutes(v.Window), Message: v.String()})
	case NoData:
		writeError(w, http.StatusNotFound, errCodeNoData, v.String())
	case Error:
		s.logger.Warn("price query failed", zap.String("pool", v.Pool), zap.String("error", v.Message))
		writeError(w, http.StatusInternalServerError, errCodeInternal, v.String())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}
