package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/scheduler"
	"github.com/aretw0/weft/pkg/vm"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ProcessesURI names the resource listing every parked process.
const ProcessesURI = "weft://processes"

// Engine defines what the MCP server needs from a weft engine.
type Engine interface {
	Space() ports.TupleSpace
	Observe(ctx context.Context, ch domain.Name, fn func(v domain.Value) error) error
	Results(ctx context.Context) ([]weft.Result, error)
	Round(ctx context.Context) (scheduler.Report, error)
}

// Server wraps a weft Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger. Keep it off stdout when serving stdio.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("weft-mcp", weft.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

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

func (s *Server) registerTools() {
	// TOOL: peek_channel
	s.mcpServer.AddTool(mcp.NewTool("peek_channel",
		mcp.WithDescription("Read the oldest value queued on a channel without removing it."),
		mcp.WithString("channel", mcp.Required(), mcp.Description("Channel name, e.g. @0:c4")),
	), s.handlePeek)

	// TOOL: tell_value
	s.mcpServer.AddTool(mcp.NewTool("tell_value",
		mcp.WithDescription("Queue a value on a channel. Waiting processes wake on the next round."),
		mcp.WithString("channel", mcp.Required(), mcp.Description("Channel name, e.g. @0:c4")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Literal: integer, true/false, nil, quoted text or @kind:label")),
	), s.handleTell)

	// TOOL: run_round
	s.mcpServer.AddTool(mcp.NewTool("run_round",
		mcp.WithDescription("Run one scheduling round and report what it did."),
	), s.handleRound)

	// TOOL: list_processes
	s.mcpServer.AddTool(mcp.NewTool("list_processes",
		mcp.WithDescription("List every parked process with its state and outcome."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := s.processes(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handlePeek(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := channelArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var data []byte
	var encodeErr error
	err = s.engine.Observe(ctx, name, func(v domain.Value) error {
		data, encodeErr = domain.MarshalValue(v)
		return nil
	})
	if errors.Is(err, domain.ErrEmpty) {
		return mcp.NewToolResultText(fmt.Sprintf("%s is empty", name)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("peek failed: %v", err)), nil
	}
	if encodeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", encodeErr)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleTell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := channelArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	literal, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := vm.ParseLiteral(literal)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid value: %v", err)), nil
	}
	if err := s.engine.Space().Tell(ctx, name.NS, name.String(), v); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("tell failed: %v", err)), nil
	}
	s.logger.Info("MCP Tell", "channel", name, "value", v)
	return mcp.NewToolResultText(fmt.Sprintf("told %s to %s", v, name)), nil
}

func (s *Server) handleRound(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.engine.Round(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("round failed: %v", err)), nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func channelArg(request mcp.CallToolRequest) (domain.Name, error) {
	raw, err := request.RequireString("channel")
	if err != nil {
		return domain.Name{}, err
	}
	return domain.ParseName(raw)
}

type processView struct {
	Channel string          `json:"channel"`
	ID      string          `json:"id"`
	State   string          `json:"state"`
	Value   *domain.Encoded `json:"value,omitempty"`
	Failure string          `json:"failure,omitempty"`
}

func (s *Server) processes(ctx context.Context) ([]byte, error) {
	results, err := s.engine.Results(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]processView, 0, len(results))
	for _, r := range results {
		view := processView{
			Channel: r.Channel.String(),
			ID:      r.ID.String(),
			State:   r.State.String(),
			Failure: r.Failure,
		}
		if r.State == domain.StateCompleted {
			view.Value = &domain.Encoded{V: r.Value}
		}
		views = append(views, view)
	}
	return json.Marshal(views)
}

func (s *Server) registerResources() {
	// EXPOSE: weft://processes
	s.mcpServer.AddResource(mcp.NewResource(ProcessesURI, "Parked Processes",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.processes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list processes: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ProcessesURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
