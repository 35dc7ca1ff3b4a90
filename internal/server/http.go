package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/muurk/upnpdiscover/internal/discovery"
	"github.com/muurk/upnpdiscover/internal/logging"
	"github.com/muurk/upnpdiscover/internal/ssdp"
	"github.com/muurk/upnpdiscover/internal/version"
)

// ErrorResponse is the body of every failed API request
type ErrorResponse struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// EntriesResponse lists cached SSDP entries
type EntriesResponse struct {
	Count   int           `json:"count"`
	Entries []*ssdp.Entry `json:"entries"`
}

// DevicesResponse lists device summaries
type DevicesResponse struct {
	Count   int                 `json:"count"`
	Devices []*discovery.Device `json:"devices"`
}

// HealthResponse reports the state of the inventory
type HealthResponse struct {
	Status       string    `json:"status"`
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	Uptime       string    `json:"uptime"`
	LastScan     time.Time `json:"last_scan"`
	Entries      int       `json:"entries"`
	Descriptions int       `json:"descriptions"`
	Clients      int       `json:"clients"`
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)

	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(handlers.CORS(
			handlers.AllowedOrigins(s.config.CORSOrigins),
			handlers.AllowedHeaders([]string{"Content-Type"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		))
		// Preflight requests only reach the middleware on a matched route
		s.router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/entries", s.entriesHandler).Methods(http.MethodGet)
	api.HandleFunc("/devices", s.devicesHandler).Methods(http.MethodGet)
	api.HandleFunc("/description", s.descriptionHandler).Methods(http.MethodGet)
	api.HandleFunc("/scan", s.scanHandler).Methods(http.MethodPost)

	s.router.HandleFunc("/ws", s.webSocketHandler).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	cache := s.scanner.Entries()
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:       "ok",
		ID:           s.id,
		Version:      version.Version,
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		LastScan:     cache.LastScan(),
		Entries:      cache.Len(),
		Descriptions: s.scanner.Descriptions().Len(),
		Clients:      s.hub.count(),
	})
}

// entriesHandler serves GET /api/v1/entries[?st=target]
func (s *Server) entriesHandler(w http.ResponseWriter, r *http.Request) {
	var (
		entries []*ssdp.Entry
		err     error
	)
	if st := r.URL.Query().Get("st"); st != "" {
		entries, err = s.scanner.FindBySearchTarget(r.Context(), st)
	} else {
		entries, err = s.scanner.All(r.Context())
	}
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, r, http.StatusOK, EntriesResponse{Count: len(entries), Entries: entries})
}

// devicesHandler serves GET /api/v1/devices[?match=key:value...]
func (s *Server) devicesHandler(w http.ResponseWriter, r *http.Request) {
	match, err := discovery.ParseMatch(r.URL.Query()["match"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	devices, err := s.scanner.ListDevices(r.Context(), match)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, r, http.StatusOK, DevicesResponse{Count: len(devices), Devices: devices})
}

// descriptionHandler serves GET /api/v1/description?location=url. Only
// locations present in the inventory are fetched.
func (s *Server) descriptionHandler(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("missing location parameter"))
		return
	}

	known := s.scanner.Entries().Snapshot(func(e *ssdp.Entry) bool {
		return e.Location() == location
	})
	if len(known) == 0 {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("unknown location: %s", location))
		return
	}

	d := s.scanner.Describe(r.Context(), location)
	if d.Empty() {
		writeError(w, r, http.StatusBadGateway, fmt.Errorf("no description available at %s", location))
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

// scanHandler serves POST /api/v1/scan, forcing a scan
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.refresh(r.Context(), true); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.snapshot())
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error("Failed to encode JSON response",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

// writeError writes an ErrorResponse
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	logging.Warn("API error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", statusCode),
		zap.Error(err),
	)
	writeJSON(w, r, statusCode, ErrorResponse{
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	})
}

// recoveryMiddleware turns a panicking handler into a 500
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logging.Error("Panic in API handler",
					zap.Any("panic", p),
					zap.String("path", r.URL.Path),
				)
				writeError(w, r, http.StatusInternalServerError, errors.New("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request and records it in the metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
		s.metrics.ObserveHTTPRequest(r.Method, routeName(r), rec.status, time.Since(start))
	})
}

// routeName returns the matched route template, so metrics are not
// labelled by query strings or unknown paths
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
