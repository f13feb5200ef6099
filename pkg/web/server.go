package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/ritzau/circulation/pkg/graph"
	"github.com/ritzau/circulation/pkg/lens"
	"github.com/ritzau/circulation/pkg/logging"
	"github.com/ritzau/circulation/pkg/metrics"
	"github.com/ritzau/circulation/pkg/model"
	"github.com/ritzau/circulation/pkg/pubsub"
	"github.com/ritzau/circulation/pkg/session"
	"github.com/ritzau/circulation/pkg/store"
)

// GraphResponse is the body of GET /api/graph
type GraphResponse struct {
	Summary model.Summary `json:"summary"`
	Graph   *model.Graph  `json:"graph"`
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	session   *session.Session
	publisher *pubsub.SSEPublisher
	defaultK  int
	maxK      int
	logger    *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a web server for sess. The publisher should be the one
// the session publishes graph status on. Requests for more than maxK ranked
// routes are rejected.
func NewServer(sess *session.Session, publisher *pubsub.SSEPublisher, defaultK, maxK int) *Server {
	if maxK < 1 {
		maxK = 1
	}
	defaultK = min(max(defaultK, 1), maxK)
	s := &Server{
		router:    mux.NewRouter(),
		session:   sess,
		publisher: publisher,
		defaultK:  defaultK,
		maxK:      maxK,
		logger:    logging.New("web"),
	}
	s.setupRoutes()
	return s
}

// Handler returns the router with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/graph_status", s.handleSubscribeGraphStatus).Methods("GET")

	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/models/{model}/build", s.handleBuild).Methods("POST")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET") // ?focus=A,B&hops=N narrows the view
	s.router.HandleFunc("/api/route", s.handleRoute).Methods("GET")
	s.router.HandleFunc("/api/routes", s.handleRoutes).Methods("GET")
	s.router.HandleFunc("/api/diagnostics", s.handleDiagnostics).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")
}

func (s *Server) handleSubscribeGraphStatus(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*") // CORS support

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	sub, err := s.publisher.Subscribe(r.Context(), pubsub.TopicGraphStatus)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "error writing SSE event", "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// handleStatus returns the latest graph status without subscribing
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	event, ok := s.publisher.Latest(pubsub.TopicGraphStatus)
	if !ok {
		writeJSON(w, http.StatusOK, pubsub.GraphStatus{State: pubsub.StateIdle})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", strconv.Quote(strconv.Itoa(event.Version)))
	w.WriteHeader(http.StatusOK)
	w.Write(event.Data)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	modelID := mux.Vars(r)["model"]
	label := r.URL.Query().Get("label")

	g, err := s.session.Build(r.Context(), modelID, label)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Summarize(g))
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g := s.session.Current()
	if g == nil {
		s.writeError(w, r, session.ErrNoGraph)
		return
	}
	view := model.FromGraph(g)
	q := r.URL.Query()
	if focus := q.Get("focus"); focus != "" {
		hops := -1
		if raw := q.Get("hops"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				http.Error(w, fmt.Sprintf("invalid hops: %q", raw), http.StatusBadRequest)
				return
			}
			hops = parsed
		}
		view = lens.Focus(view, strings.Split(focus, ","), hops)
	}

	writeJSON(w, http.StatusOK, GraphResponse{
		Summary: model.Summarize(g),
		Graph:   view,
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	from, to, ok := endpoints(w, r)
	if !ok {
		return
	}

	out, err := s.session.Route(r.Context(), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.FromOutcome(from, to, out))
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	from, to, ok := endpoints(w, r)
	if !ok {
		return
	}

	k := s.defaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid k: %q", raw), http.StatusBadRequest)
			return
		}
		if parsed > s.maxK {
			http.Error(w, fmt.Sprintf("k %d exceeds the limit of %d", parsed, s.maxK), http.StatusBadRequest)
			return
		}
		k = parsed
	}

	out, err := s.session.Routes(r.Context(), from, to, k)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.FromOutcome(from, to, out))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	messages := s.session.Diagnostics().Drain()
	if messages == nil {
		messages = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"diagnostics": messages})
}

func endpoints(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		http.Error(w, "from and to are required", http.StatusBadRequest)
		return "", "", false
	}
	return from, to, true
}

// statusClientClosedRequest is logged when the client disconnects mid-request
const statusClientClosedRequest = 499

// writeError maps session and build errors onto HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNoGraph):
		status = http.StatusServiceUnavailable
	case errors.Is(err, store.ErrModelNotFound), errors.Is(err, store.ErrInvalidModelID):
		status = http.StatusNotFound
	case errors.Is(err, graph.ErrEmptyGraph):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, graph.ErrDataSourceUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = statusClientClosedRequest
	}
	if status >= 500 {
		logging.WarnContext(r.Context(), "request error", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Start starts the web server on the specified port and blocks until it stops
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("starting web server", "url", fmt.Sprintf("http://localhost%s", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a server started with Start
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
