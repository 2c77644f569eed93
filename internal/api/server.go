// Package api exposes threads, jobs and the chat relay over HTTP.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/raphaelgruber/altron-go/internal/service"
)

// Server routes HTTP requests to the services.
type Server struct {
	threads  *service.ThreadService
	jobs     *service.JobManager
	relay    *service.RelayService
	metrics  *metrics.Collector
	registry *prometheus.Registry
	upgrader websocket.Upgrader
	now      func() time.Time
}

// New creates the API server. A nil collector is replaced by a fresh one.
func New(threads *service.ThreadService, jobs *service.JobManager, relay *service.RelayService, collector *metrics.Collector) *Server {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		threads:  threads,
		jobs:     jobs,
		relay:    relay,
		metrics:  collector,
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Handler returns the router with logging middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(s.metrics))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.registerThreads(r)
	s.registerJobs(r)
	s.registerRelay(r)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no route for " + r.Method + " " + r.URL.Path})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method " + r.Method + " not allowed on " + r.URL.Path})
	})
	return r
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
