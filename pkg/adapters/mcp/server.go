// Package mcp exposes editing sessions as Model Context Protocol tools, so an
// assistant can read and edit a bot's conversation graph.
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

	bozchat "github.com/agenciaboz-dev/bozchat-sub001"
	"github.com/agenciaboz-dev/bozchat-sub001/internal/logging"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/editor"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const graphURIPrefix = "bozchat://bots/"

// GraphResult is returned by every tool that reads or edits a graph.
type GraphResult struct {
	Changed bool             `json:"changed"`
	Node    *domain.FlowNode `json:"node,omitempty"`
	Graph   domain.FlowGraph `json:"graph"`
	// Saved is set by tools that save synchronously.
	Saved *bool `json:"saved,omitempty"`
}

// ValidateResult lists invariant violations of a graph.
type ValidateResult struct {
	Valid    bool     `json:"valid"`
	Findings []string `json:"findings,omitempty"`
}

type BotArgs struct {
	BotID string `json:"bot_id"`
}

type AddChildArgs struct {
	BotID    string `json:"bot_id"`
	SourceID string `json:"source_id"`
	Kind     string `json:"kind"`
}

type NodeArgs struct {
	BotID  string `json:"bot_id"`
	NodeID string `json:"node_id"`
}

type ConnectArgs struct {
	BotID    string `json:"bot_id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

type LoopArgs struct {
	BotID    string `json:"bot_id"`
	NodeID   string `json:"node_id"`
	TargetID string `json:"target_id"`
}

type PayloadArgs struct {
	BotID  string `json:"bot_id"`
	NodeID string `json:"node_id"`
	// Data is the node's data object encoded as JSON.
	Data string `json:"data"`
}

// Server exposes a session manager as an MCP server.
type Server struct {
	sessions  *session.Manager
	bots      ports.BotStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithBotStore enables the list_bots tool.
func WithBotStore(bots ports.BotStore) Option {
	return func(s *Server) {
		s.bots = bots
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		logger:   logging.NewNop(),
		mcpServer: server.NewMCPServer("bozchat-mcp", strings.TrimSpace(bozchat.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
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

// ServeSSE serves the SSE transport on addr until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
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
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func botParam() mcp.ToolOption {
	return mcp.WithString("bot_id", mcp.Required(), mcp.Description("ID of the bot being edited"))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the current conversation graph of a bot, including unsaved edits."),
		botParam(),
	), mcp.NewStructuredToolHandler(s.handleGetGraph))

	s.mcpServer.AddTool(mcp.NewTool("add_child",
		mcp.WithDescription("Append a node under source_id. The new node's kind defaults to the opposite of the source's kind."),
		botParam(),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Parent node ID")),
		mcp.WithString("kind", mcp.Enum(string(domain.KindMessage), string(domain.KindResponse)), mcp.Description("Kind of the new node")),
	), mcp.NewStructuredToolHandler(s.handleAddChild))

	s.mcpServer.AddTool(mcp.NewTool("delete_subtree",
		mcp.WithDescription("Delete a node and everything reachable from it. The graph before deletion becomes an undo snapshot."),
		botParam(),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Root of the subtree to delete")),
	), mcp.NewStructuredToolHandler(s.handleDeleteSubtree))

	s.mcpServer.AddTool(mcp.NewTool("connect",
		mcp.WithDescription("Add a structural edge. Refused when the target already has a parent, when it creates a cycle, or when source equals target."),
		botParam(),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Parent node ID")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Child node ID")),
	), mcp.NewStructuredToolHandler(s.handleConnect))

	s.mcpServer.AddTool(mcp.NewTool("update_payload",
		mcp.WithDescription("Replace the data object of a node. Keys the editor does not know are kept."),
		botParam(),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to update")),
		mcp.WithString("data", mcp.Required(), mcp.Description("JSON object with value, media and actions")),
	), mcp.NewStructuredToolHandler(s.handleUpdatePayload))

	s.mcpServer.AddTool(mcp.NewTool("mark_loop",
		mcp.WithDescription("Make the conversation resume at target_id after node_id fires."),
		botParam(),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Loop source")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Loop target")),
	), mcp.NewStructuredToolHandler(s.handleMarkLoop))

	s.mcpServer.AddTool(mcp.NewTool("clear_loop",
		mcp.WithDescription("Remove the loop reference of a node."),
		botParam(),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Loop source")),
	), mcp.NewStructuredToolHandler(s.handleClearLoop))

	s.mcpServer.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Restore the graph from before the last subtree deletion and save it immediately."),
		botParam(),
	), mcp.NewStructuredToolHandler(s.handleUndo))

	s.mcpServer.AddTool(mcp.NewTool("validate",
		mcp.WithDescription("Check the graph for tree shape, id and loop violations."),
		botParam(),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("flush",
		mcp.WithDescription("Save pending edits now instead of waiting for the debounce."),
		botParam(),
	), mcp.NewStructuredToolHandler(s.handleFlush))

	if s.bots != nil {
		s.mcpServer.AddTool(mcp.NewTool("list_bots",
			mcp.WithDescription("List the ids of all bots."),
		), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ids, err := s.bots.List(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
			}
			data, _ := json.Marshal(ids)
			return mcp.NewToolResultText(string(data)), nil
		})
	}
}

func changed(sess *editor.Session, node *domain.FlowNode) GraphResult {
	return GraphResult{Changed: true, Node: node, Graph: sess.Graph()}
}

func (s *Server) handleGetGraph(ctx context.Context, _ mcp.CallToolRequest, args BotArgs) (GraphResult, error) {
	sess, err := s.sessions.Open(ctx, args.BotID)
	if err != nil {
		return GraphResult{}, err
	}
	return GraphResult{Graph: sess.Graph()}, nil
}

func (s *Server) handleAddChild(ctx context.Context, _ mcp.CallToolRequest, args AddChildArgs) (GraphResult, error) {
	sess, err := s.sessions.Open(ctx, args.BotID)
	if err != nil {
		return GraphResult{}, err
	}
	node, err := sess.AddChild(ctx, args.SourceID, domain.NodeKind(args.Kind))
	if err != nil {
		return GraphResult{}, err
	}
	return changed(sess, &node), nil
}

func (s *Server) handleDeleteSubtree(ctx context.Context, _ mcp.CallToolRequest, args NodeArgs) (GraphResult, error) {
	sess, err := s.sessions.Open(ctx, args.BotID)
	if err != nil {
		return GraphResult{}, err
	}
	if err := sess.DeleteSubtree(ctx, args.NodeID); err != nil {
		return GraphResult{}, err
	}
	return changed(sess, nil), nil
}

func (s *Server) handleConnect(ctx context.Context, _ mcp.CallToolRequest, args ConnectArgs) (GraphResult, error) {
	sess, err := s.sessions.Open(ctx, args.BotID)
	if err != nil {
		return GraphResult{}, err
	}
	if err := sess.Connect(ctx, args.SourceID, args.TargetID); err != nil {
		return GraphResult{}, err
	}
	return changed(sess, nil), nil
}

func (s *Server) handleUpdatePayload(ctx context.Context, _ mcp.CallToolRequest, args PayloadArgs) (GraphResult, error) {
	var payload domain.Payload
	if err := json.Unmarshal([]byte(args.Data), &payload); err != nil {
		return GraphResult{}, fmt.Errorf("invalid data: %w", err)
	}
	sess, err := s.sessions.Open(ctx, args.BotID)
	if err != nil {
		return GraphResult{}, err
	}
	if err := sess.UpdatePayload(ctx, args.NodeID, payload); err != nil {
		return GraphResult{}, err
	}
	node, _ := sess.Graph().Node(args.NodeID)
	return changed(sess, &node), nil
}

func (s *Server) handleMarkLoop(ctx context.Context, _ mcp.CallToolRequest, args LoopArgs) (GraphResult, error) {
	sess, err := s.sessions.Open(ctx, args.BotID)
	if err != nil {
		return GraphResult{}, err
	}
	if err := sess.MarkLoop(ctx, args.NodeID, args.TargetID); err != nil {
		return GraphResult{}, err
	}
	return changed(sess, nil), nil
}

func (s *Server) handleClearLoop(ctx context.Context, _ mcp.CallToolRequest, args NodeArgs) (GraphResult, error) {
	sess, err := s.sessions.Open(ctx, args.BotID)
	if err != nil {
		return GraphResult{}, err
	}
	if err := sess.ClearLoop(ctx, args.NodeID); err != nil {
		return GraphResult{}, err
	}
	return changed(sess, nil), nil
}

func (s *Server) handleUndo(ctx context.Context, _ mcp.CallToolRequest, args BotArgs) (GraphResult, error) {
	sess, err := s.sessions.Open(ctx, args.BotID)
	if err != nil {
		return GraphResult{}, err
	}
	err = sess.Undo(ctx)
	if errors.Is(err, domain.ErrNothingToUndo) || errors.Is(err, domain.ErrSessionClosed) {
		return GraphResult{}, err
	}
	if err != nil {
		s.logger.Warn("MCP Undo: graph restored but not saved", "bot_id", args.BotID, "err", err)
	}
	saved := err == nil
	res := changed(sess, nil)
	res.Saved = &saved
	return res, nil
}

func (s *Server) handleValidate(ctx context.Context, _ mcp.CallToolRequest, args BotArgs) (ValidateResult, error) {
	sess, err := s.sessions.Open(ctx, args.BotID)
	if err != nil {
		return ValidateResult{}, err
	}
	res := ValidateResult{Valid: true}
	for _, e := range graph.ValidationErrors(graph.Validate(sess.Graph())) {
		res.Valid = false
		res.Findings = append(res.Findings, e.Error())
	}
	return res, nil
}

func (s *Server) handleFlush(ctx context.Context, _ mcp.CallToolRequest, args BotArgs) (GraphResult, error) {
	sess, err := s.sessions.Open(ctx, args.BotID)
	if err != nil {
		return GraphResult{}, err
	}
	if err := sess.Flush(ctx); err != nil {
		return GraphResult{}, err
	}
	saved := true
	return GraphResult{Graph: sess.Graph(), Saved: &saved}, nil
}

func (s *Server) registerResources() {
	tmpl := mcp.NewResourceTemplate(graphURIPrefix+"{bot_id}/graph", "Bot conversation graph",
		mcp.WithTemplateDescription("The current graph of a bot, including unsaved edits."),
		mcp.WithTemplateMIMEType("application/json"),
	)
	s.mcpServer.AddResourceTemplate(tmpl, s.readGraph)
}

func (s *Server) readGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	botID, ok := strings.CutPrefix(uri, graphURIPrefix)
	if ok {
		botID, ok = strings.CutSuffix(botID, "/graph")
	}
	if !ok || botID == "" || strings.Contains(botID, "/") {
		return nil, fmt.Errorf("unknown resource %q", uri)
	}

	sess, err := s.sessions.Open(ctx, botID)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(sess.Graph())
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
