package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/internal/presentation/graph"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a DebugService over HTTP.
type Server struct {
	Service ports.DebugService
	Streams *StreamManager
	Logger  *slog.Logger

	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// WithStreams shares a StreamManager, typically one whose Hooks feed the registry.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		if sm != nil {
			s.Streams = sm
		}
	}
}

// WithGatherer sets the Prometheus registry served at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// NewHandler creates the HTTP handler for svc.
func NewHandler(svc ports.DebugService, opts ...Option) http.Handler {
	server := &Server{
		Service:  svc,
		Logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Streams == nil {
		server.Streams = NewStreamManager()
	}
	server.Streams.logger = server.Logger
	server.Streams.Attach(svc)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/debug", func(r chi.Router) {
		r.Post("/session", server.CreateSession)
		r.Get("/stats", server.GetStats)
		r.Get("/runs/{runId}", server.GetRun)

		r.Route("/{botId}", func(r chi.Router) {
			r.Delete("/session", server.DropSession)
			r.Post("/start", server.Start)
			r.Post("/stop", server.control("stop", svc.Stop))
			r.Post("/pause", server.control("pause", svc.Pause))
			r.Post("/resume", server.control("resume", svc.Resume))
			r.Post("/step", server.control("step", svc.StepOver))
			r.Get("/status", server.GetStatus)
			r.Get("/variables", server.GetVariables)
			r.Post("/variables", server.SetVariable)
			r.Get("/breakpoints", server.GetBreakpoints)
			r.Post("/breakpoint", server.SetBreakpoint)
			r.Delete("/breakpoint/{nodeId}", server.RemoveBreakpoint)
			r.Get("/graph", server.GetGraph)
			r.Get("/runs", server.GetRuns)
			r.Get("/events", server.SubscribeEvents)
		})
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, envelope{
		"app":     "botflow-http",
		"version": strings.TrimSpace(botflow.Version),
	})
}

type createSessionRequest struct {
	BotID  string          `json:"botId"`
	UserID string          `json:"userId"`
	Graph  json.RawMessage `json:"graph"`
}

// CreateSession handles POST /api/debug/session.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.BotID == "" {
		s.fail(w, http.StatusBadRequest, "botId is required")
		return
	}

	var document []byte
	if len(body.Graph) > 0 && string(body.Graph) != "null" {
		document = body.Graph
	}

	snap, err := s.Service.CreateSession(r.Context(), body.BotID, body.UserID, document)
	if err != nil {
		s.failErr(w, r, err, nil)
		return
	}
	s.Streams.Forget(body.BotID)
	s.Streams.Publish(snap)

	s.Logger.Info("Debug session created", "bot_id", body.BotID, "user_id", body.UserID)
	s.ok(w, envelope{
		"sessionId": body.BotID,
		"status":    snap.Status,
		"session":   snap,
	})
}

// DropSession handles DELETE /api/debug/{botId}/session.
func (s *Server) DropSession(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botId")
	if err := s.Service.DropSession(r.Context(), botID); err != nil {
		s.failErr(w, r, err, nil)
		return
	}
	s.Streams.Forget(botID)
	s.ok(w, nil)
}

type startRequest struct {
	TriggerNode string         `json:"triggerNode"`
	InputData   map[string]any `json:"inputData"`
}

// Start handles POST /api/debug/{botId}/start.
func (s *Server) Start(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	botID := chi.URLParam(r, "botId")
	snap, err := s.Service.Start(r.Context(), botID, body.TriggerNode, body.InputData)
	s.respondSnapshot(w, r, snap, err)
}

// control adapts a body-less session verb.
func (s *Server) control(name string, op func(ctx context.Context, botID string) (*domain.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		botID := chi.URLParam(r, "botId")
		snap, err := op(r.Context(), botID)
		if err == nil {
			s.Logger.Debug("Debug control", "op", name, "bot_id", botID, "status", snap.Status)
		}
		s.respondSnapshot(w, r, snap, err)
	}
}

func (s *Server) respondSnapshot(w http.ResponseWriter, r *http.Request, snap *domain.Snapshot, err error) {
	s.Streams.Publish(snap)
	if err != nil {
		s.failErr(w, r, err, snap)
		return
	}
	s.ok(w, envelope{
		"status":  snap.Status,
		"session": snap,
	})
}

// GetStatus handles GET /api/debug/{botId}/status. A missing session is not an error.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botId")
	snap, err := s.Service.Status(r.Context(), botID)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			s.ok(w, envelope{"exists": false, "status": "no_session"})
			return
		}
		s.failErr(w, r, err, nil)
		return
	}

	breakpoints, err := s.Service.Breakpoints(r.Context(), botID)
	if err != nil {
		s.failErr(w, r, err, snap)
		return
	}

	body := envelope{
		"exists":           true,
		"status":           snap.Status,
		"runId":            snap.RunID,
		"currentNode":      snap.CurrentNodeID,
		"variables":        snap.Variables,
		"executionTime":    snap.ExecutionTime.Milliseconds(),
		"stepCount":        snap.StepCount,
		"breakpoints":      breakpoints,
		"executionHistory": snap.History,
	}
	if snap.LastError != "" {
		body["lastError"] = snap.LastError
		body["errorKind"] = snap.ErrorKind
	}
	s.ok(w, body)
}

// GetVariables handles GET /api/debug/{botId}/variables.
func (s *Server) GetVariables(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Service.Status(r.Context(), chi.URLParam(r, "botId"))
	if err != nil {
		s.failErr(w, r, err, nil)
		return
	}
	s.ok(w, envelope{"variables": snap.Variables})
}

type setVariableRequest struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// SetVariable handles POST /api/debug/{botId}/variables.
func (s *Server) SetVariable(w http.ResponseWriter, r *http.Request) {
	var body setVariableRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" {
		s.fail(w, http.StatusBadRequest, "name is required")
		return
	}

	snap, err := s.Service.SetVariable(r.Context(), chi.URLParam(r, "botId"), body.Name, body.Value)
	s.Streams.Publish(snap)
	if err != nil {
		s.failErr(w, r, err, snap)
		return
	}
	s.ok(w, envelope{"variables": snap.Variables})
}

// GetBreakpoints handles GET /api/debug/{botId}/breakpoints.
func (s *Server) GetBreakpoints(w http.ResponseWriter, r *http.Request) {
	bps, err := s.Service.Breakpoints(r.Context(), chi.URLParam(r, "botId"))
	if err != nil {
		s.failErr(w, r, err, nil)
		return
	}
	s.ok(w, envelope{"breakpoints": bps})
}

type breakpointRequest struct {
	NodeID string `json:"nodeId"`
}

// SetBreakpoint handles POST /api/debug/{botId}/breakpoint.
func (s *Server) SetBreakpoint(w http.ResponseWriter, r *http.Request) {
	var body breakpointRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.NodeID == "" {
		s.fail(w, http.StatusBadRequest, "nodeId is required")
		return
	}

	bps, err := s.Service.SetBreakpoint(r.Context(), chi.URLParam(r, "botId"), body.NodeID)
	if err != nil {
		s.failErr(w, r, err, nil)
		return
	}
	s.ok(w, envelope{"breakpoints": bps})
}

// RemoveBreakpoint handles DELETE /api/debug/{botId}/breakpoint/{nodeId}.
func (s *Server) RemoveBreakpoint(w http.ResponseWriter, r *http.Request) {
	bps, err := s.Service.RemoveBreakpoint(r.Context(), chi.URLParam(r, "botId"), chi.URLParam(r, "nodeId"))
	if err != nil {
		s.failErr(w, r, err, nil)
		return
	}
	s.ok(w, envelope{"breakpoints": bps})
}

// GetStats handles GET /api/debug/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	s.ok(w, envelope{"stats": s.Service.Stats(r.Context())})
}

// GetGraph handles GET /api/debug/{botId}/graph.
// With ?format=mermaid it returns the diagram as plain text.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botId")
	g, err := s.Service.Graph(r.Context(), botID)
	if err != nil {
		s.failErr(w, r, err, nil)
		return
	}

	var snap *domain.Snapshot
	if current, err := s.Service.Status(r.Context(), botID); err == nil {
		snap = current
	}
	bps, _ := s.Service.Breakpoints(r.Context(), botID)
	mermaid := graph.GenerateMermaid(g, graph.OverlayFromSnapshot(snap, bps))

	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, mermaid)
		return
	}
	s.ok(w, envelope{"graph": g, "mermaid": mermaid})
}

// GetRuns handles GET /api/debug/{botId}/runs.
func (s *Server) GetRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Service.Runs(r.Context(), chi.URLParam(r, "botId"))
	if err != nil {
		s.failErr(w, r, err, nil)
		return
	}
	s.ok(w, envelope{"runs": runs})
}

// GetRun handles GET /api/debug/runs/{runId}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Service.Run(r.Context(), chi.URLParam(r, "runId"))
	if err != nil {
		s.failErr(w, r, err, nil)
		return
	}
	s.ok(w, envelope{"run": run})
}

// SubscribeEvents handles GET /api/debug/{botId}/events (SSE).
// The optional watch query (comma separated: variables, history, status) filters diffs.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	botID := chi.URLParam(r, "botId")
	var watchList []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		watchList = strings.Split(watch, ",")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub, cancel := s.Streams.Subscribe(botID)
	defer cancel()
	s.Logger.Info("SSE: Subscribing to session updates", "bot_id", botID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	// The current state goes first so clients can apply later diffs.
	if snap, err := s.Service.Status(r.Context(), botID); err == nil {
		sub.Prime(snap)
	}

	first := true
	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE: Client disconnected", "bot_id", botID)
			return
		case <-sub.Ready():
			diff := sub.Next()
			if diff == nil {
				continue
			}
			event := ""
			if first {
				event = "event: snapshot\n"
				first = false
			} else if len(watchList) > 0 && !matchesWatch(diff, watchList) {
				continue
			}
			payload, err := json.Marshal(diff)
			if err != nil {
				s.Logger.Error("SSE: Failed to encode diff", "bot_id", botID, "err", err)
				continue
			}
			fmt.Fprintf(w, "%sdata: %s\n\n", event, payload)
			flusher.Flush()
		}
	}
}

func matchesWatch(diff *domain.SnapshotDiff, watchList []string) bool {
	for _, field := range watchList {
		switch strings.TrimSpace(field) {
		case "variables":
			if len(diff.Variables) > 0 {
				return true
			}
		case "history":
			if len(diff.History) > 0 || diff.Reset {
				return true
			}
		case "status":
			if diff.Status != nil || diff.CurrentNodeID != nil || diff.LastError != nil {
				return true
			}
		}
	}
	return false
}
