package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/internal/presentation/graph"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionResponse is the structured result of every session tool.
// Graph failures are reported in Error with the session still attached.
type SessionResponse struct {
	Session     *domain.Snapshot `json:"session,omitempty" jsonschema_description:"The debug session after the operation"`
	Breakpoints []string         `json:"breakpoints,omitempty" jsonschema_description:"Breakpoints of the bot"`
	Error       string           `json:"error,omitempty" jsonschema_description:"Failure message when the operation was refused or the run failed"`
	ErrorKind   string           `json:"errorKind,omitempty" jsonschema_description:"Error taxonomy name (NotFound, InvalidTransition, AmbiguousBranch, ...)"`
}

// Server exposes a DebugService as an MCP server.
type Server struct {
	service   ports.DebugService
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(svc ports.DebugService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		service:   svc,
		logger:    logger,
		mcpServer: server.NewMCPServer("botflow-mcp", strings.TrimSpace(botflow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func botIDParam() mcp.ToolOption {
	return mcp.WithString("bot_id", mcp.Required(), mcp.Description("The bot whose debug session is addressed"))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("debug_create_session",
		mcp.WithDescription("Create (or replace) the debug session of a bot. Without graph, the stored bot document is loaded."),
		botIDParam(),
		mcp.WithString("user_id", mcp.Description("Who is debugging (optional)")),
		mcp.WithString("graph", mcp.Description("Bot document as JSON (optional)")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreateSession))

	s.mcpServer.AddTool(mcp.NewTool("debug_start",
		mcp.WithDescription("Start a new run and drive it until a breakpoint, a terminal node or an error."),
		botIDParam(),
		mcp.WithString("trigger_node", mcp.Description("Node to start at (optional, defaults to the entry node)")),
		mcp.WithString("input", mcp.Description("JSON object merged into the variables (optional)")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	verbs := []struct {
		name, description string
		op                func(context.Context, string) (*domain.Snapshot, error)
	}{
		{"debug_step", "Execute exactly one node and stay paused.", s.service.StepOver},
		{"debug_resume", "Continue a paused run.", s.service.Resume},
		{"debug_pause", "Pause a running session.", s.service.Pause},
		{"debug_stop", "Stop the session.", s.service.Stop},
		{"debug_status", "Get the current session snapshot.", s.service.Status},
	}
	for _, v := range verbs {
		s.mcpServer.AddTool(mcp.NewTool(v.name,
			mcp.WithDescription(v.description),
			botIDParam(),
			mcp.WithOutputSchema[SessionResponse](),
		), mcp.NewStructuredToolHandler(s.control(v.op)))
	}

	s.mcpServer.AddTool(mcp.NewTool("debug_set_breakpoint",
		mcp.WithDescription("Pause runs before executing the given node."),
		botIDParam(),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to break on")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.breakpoint(s.service.SetBreakpoint)))

	s.mcpServer.AddTool(mcp.NewTool("debug_remove_breakpoint",
		mcp.WithDescription("Remove a breakpoint."),
		botIDParam(),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to clear")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.breakpoint(s.service.RemoveBreakpoint)))

	s.mcpServer.AddTool(mcp.NewTool("debug_set_variable",
		mcp.WithDescription("Overwrite a variable of the session. The value is parsed as JSON when possible."),
		botIDParam(),
		mcp.WithString("name", mcp.Required(), mcp.Description("Variable name")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value (JSON or plain text)")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleSetVariable))

	s.mcpServer.AddTool(mcp.NewTool("debug_graph",
		mcp.WithDescription("Render the bot graph as a Mermaid flowchart with the debug overlay."),
		botIDParam(),
	), s.handleGraph)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("botflow://stats", "Debugger statistics",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.service.Stats(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to encode stats: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "botflow://stats",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	botID, err := requireString(args, "bot_id")
	if err != nil {
		return SessionResponse{}, err
	}
	userID, _ := args["user_id"].(string)

	var document []byte
	if doc, ok := args["graph"].(string); ok && strings.TrimSpace(doc) != "" {
		document = []byte(doc)
	}

	snap, err := s.service.CreateSession(ctx, botID, userID, document)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("create session failed: %w", err)
	}
	s.logger.Info("MCP: Debug session created", "bot_id", botID)
	return SessionResponse{Session: snap}, nil
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	botID, err := requireString(args, "bot_id")
	if err != nil {
		return SessionResponse{}, err
	}
	trigger, _ := args["trigger_node"].(string)

	var input map[string]any
	if raw, ok := args["input"].(string); ok && strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			return SessionResponse{}, fmt.Errorf("input must be a JSON object: %w", err)
		}
	}

	snap, err := s.service.Start(ctx, botID, trigger, input)
	return s.respond(snap, err)
}

func (s *Server) control(op func(context.Context, string) (*domain.Snapshot, error)) func(context.Context, mcp.CallToolRequest, map[string]interface{}) (SessionResponse, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
		botID, err := requireString(args, "bot_id")
		if err != nil {
			return SessionResponse{}, err
		}
		snap, err := op(ctx, botID)
		return s.respond(snap, err)
	}
}

func (s *Server) breakpoint(op func(context.Context, string, string) ([]string, error)) func(context.Context, mcp.CallToolRequest, map[string]interface{}) (SessionResponse, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
		botID, err := requireString(args, "bot_id")
		if err != nil {
			return SessionResponse{}, err
		}
		nodeID, err := requireString(args, "node_id")
		if err != nil {
			return SessionResponse{}, err
		}
		bps, err := op(ctx, botID, nodeID)
		if err != nil {
			return SessionResponse{}, fmt.Errorf("breakpoint update failed: %w", err)
		}
		return SessionResponse{Breakpoints: bps}, nil
	}
}

func (s *Server) handleSetVariable(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	botID, err := requireString(args, "bot_id")
	if err != nil {
		return SessionResponse{}, err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return SessionResponse{}, err
	}
	snap, err := s.service.SetVariable(ctx, botID, name, parseValue(args["value"]))
	return s.respond(snap, err)
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	botID, err := request.RequireString("bot_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.service.Graph(ctx, botID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph failed: %v", err)), nil
	}
	var snap *domain.Snapshot
	if current, err := s.service.Status(ctx, botID); err == nil {
		snap = current
	}
	bps, _ := s.service.Breakpoints(ctx, botID)
	return mcp.NewToolResultText(graph.GenerateMermaid(g, graph.OverlayFromSnapshot(snap, bps))), nil
}

// respond turns a session result into a tool result. Failures that still carry a
// snapshot are reported in the payload; the rest become tool errors.
func (s *Server) respond(snap *domain.Snapshot, err error) (SessionResponse, error) {
	if err != nil && snap == nil {
		return SessionResponse{}, err
	}
	resp := SessionResponse{Session: snap}
	if err != nil {
		s.logger.Debug("MCP: Operation failed", "bot_id", snap.BotID, "err", err)
		resp.Error = err.Error()
		resp.ErrorKind = domain.ErrorKind(err)
	}
	return resp, nil
}

func requireString(args map[string]interface{}, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", errors.New(key + " is required")
	}
	return v, nil
}

// parseValue decodes JSON literals ("42", "true", "[1]") and keeps anything else as text.
func parseValue(v any) any {
	str, ok := v.(string)
	if !ok {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(str), &decoded); err == nil {
		return decoded
	}
	return str
}
