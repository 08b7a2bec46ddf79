package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/benchrig/benchrig/pkg/state"
)

// StateURI is the resource exposing the full state snapshot.
const StateURI = "benchrig://state"

// ErrNoPendingFeedback is returned when no feedback request is waiting.
var ErrNoPendingFeedback = errors.New("no feedback request is pending")

// Server exposes a state tree to MCP clients: agents can read and write
// paths and answer pending operator feedback.
type Server struct {
	tree      *state.Tree
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(tree *state.Tree, version string, opts ...Option) *Server {
	s := &Server{
		tree:      tree,
		mcpServer: server.NewMCPServer("benchrig-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Read the state tree at a slash separated path. An empty path returns everything."),
		mcp.WithString("path", mcp.Description("Path such as run/status or results/rf")),
	), s.handleGetState)

	s.mcpServer.AddTool(mcp.NewTool("list_keys",
		mcp.WithDescription("List the child keys of the mapping at a path."),
		mcp.WithString("path", mcp.Description("Path such as results or results/rf")),
	), s.handleListKeys)

	s.mcpServer.AddTool(mcp.NewTool("update_state",
		mcp.WithDescription("Write a JSON value at a path of the state tree."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to write")),
		mcp.WithString("value", mcp.Required(), mcp.Description("JSON encoded value")),
	), s.handleUpdateState)

	s.mcpServer.AddTool(mcp.NewTool("respond_feedback",
		mcp.WithDescription("Answer the pending operator feedback request: pass, fail or retry, or the scanned text for scan requests."),
		mcp.WithString("outcome", mcp.Description("pass, fail or retry")),
		mcp.WithString("text", mcp.Description("Scanned text or an operator comment")),
	), s.handleRespondFeedback)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(StateURI, "Bench state",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.tree)
		if err != nil {
			return nil, fmt.Errorf("failed to encode state: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: StateURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := state.ParsePath(request.GetString("path", ""))
	data, err := json.Marshal(s.tree.Get(path))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleListKeys(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := state.ParsePath(request.GetString("path", ""))
	node := s.tree.Node(path)
	if node == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no node at %q", path.String())), nil
	}
	if !node.IsMapping() {
		return mcp.NewToolResultError(fmt.Sprintf("%q is a leaf", path.String())), nil
	}
	data, err := json.Marshal(node.Keys())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleUpdateState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawPath, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("value is not valid JSON: %v", err)), nil
	}

	path := state.ParsePath(rawPath)
	if len(path) == 0 {
		return mcp.NewToolResultError("refusing to replace the root"), nil
	}
	s.tree.Update(path, value)
	s.logger.Info("State updated over MCP", "path", path.String())

	data, _ := json.Marshal(s.tree.Get(path))
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleRespondFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.RespondFeedback(request.GetString("outcome", ""), request.GetString("text", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("answer submitted for %s", id)), nil
}

// RespondFeedback answers the pending feedback request of the tree and
// returns its id.
func (s *Server) RespondFeedback(outcome, text string) (string, error) {
	if s.tree.Get(state.Path{"feedback", "status"}) != "pending" {
		return "", ErrNoPendingFeedback
	}
	if outcome == "" && text == "" {
		return "", errors.New("outcome or text is required")
	}
	id, _ := s.tree.Get(state.Path{"feedback", "id"}).(string)

	s.tree.Update(state.Path{"feedback", "response"}, map[string]any{
		"id":      id,
		"outcome": outcome,
		"text":    text,
	})
	s.logger.Info("Feedback answered over MCP", "id", id, "outcome", outcome)
	return id, nil
}
