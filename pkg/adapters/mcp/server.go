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

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/schedule"
	"github.com/aretw0/chatflow/pkg/simulator"
	"github.com/aretw0/chatflow/pkg/validator"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// maxPreviewInputs bounds a scripted preview.
const maxPreviewInputs = 100

// ValidationReport aligns with the HTTP validation response.
type ValidationReport struct {
	IsValid      bool              `json:"isValid" jsonschema_description:"Whether the flow may be saved"`
	Error        string            `json:"error,omitempty" jsonschema_description:"User-facing reason the save is blocked"`
	Roots        []string          `json:"roots" jsonschema_description:"Nodes without incoming edges"`
	Disconnected []string          `json:"disconnected" jsonschema_description:"Nodes with neither incoming nor outgoing edges"`
	Issues       []validator.Issue `json:"issues,omitempty" jsonschema_description:"Lint findings"`
}

// PreviewTranscript is the result of a scripted preview.
type PreviewTranscript struct {
	Messages      []domain.ConversationMessage `json:"messages" jsonschema_description:"Transcript in emission order"`
	CurrentNodeID string                       `json:"current_node_id,omitempty" jsonschema_description:"Node the conversation stopped at"`
	Buttons       []domain.Button              `json:"buttons,omitempty" jsonschema_description:"Quick replies offered at the end, if any"`
}

// Server exposes the flow validator and a scripted preview as an MCP Server.
type Server struct {
	loader    ports.FlowLoader
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance. The loader may be nil, in
// which case tools only accept inline flows.
func NewServer(loader ports.FlowLoader, opts ...Option) *Server {
	s := &Server{
		loader:    loader,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("chatflow-mcp", strings.TrimSpace(chatflow.Version)),
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

func (s *Server) registerTools() {
	flowArgs := []mcp.ToolOption{
		mcp.WithString("flow_id", mcp.Description("ID of a flow in the library (optional if flow is provided)")),
		mcp.WithString("flow", mcp.Description("JSON flow snapshot with nodes and edges (optional if flow_id is provided)")),
	}

	// TOOL: validate_flow
	validateTool := mcp.NewTool("validate_flow", append([]mcp.ToolOption{
		mcp.WithDescription("Check whether a flow may be saved: exactly one node may lack incoming edges. Also reports disconnected nodes and lint issues."),
		mcp.WithOutputSchema[ValidationReport](),
	}, flowArgs...)...)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handleValidate))

	// TOOL: find_disconnected_nodes
	s.mcpServer.AddTool(mcp.NewTool("find_disconnected_nodes", append([]mcp.ToolOption{
		mcp.WithDescription("List the ids of nodes with neither incoming nor outgoing edges."),
	}, flowArgs...)...), s.handleDisconnected)

	// TOOL: preview_flow
	previewTool := mcp.NewTool("preview_flow", append([]mcp.ToolOption{
		mcp.WithDescription("Run a preview conversation without delays. Each input is typed text, or a button click when the bot is showing quick replies."),
		mcp.WithString("inputs", mcp.Description("JSON array of user inputs, in order")),
		mcp.WithOutputSchema[PreviewTranscript](),
	}, flowArgs...)...)
	s.mcpServer.AddTool(previewTool, mcp.NewStructuredToolHandler(s.handlePreview))

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph", append([]mcp.ToolOption{
		mcp.WithDescription("Render the flow as a Mermaid diagram."),
	}, flowArgs...)...), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		flow, err := s.resolveFlow(ctx, request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(graph.GenerateMermaid(flow, nil)), nil
	})
}

// resolveFlow reads the flow argument, falling back to flow_id through the loader.
func (s *Server) resolveFlow(ctx context.Context, args map[string]interface{}) (domain.Flow, error) {
	if raw, ok := args["flow"].(string); ok && strings.TrimSpace(raw) != "" {
		var flow domain.Flow
		if err := json.Unmarshal([]byte(raw), &flow); err != nil {
			return domain.Flow{}, fmt.Errorf("invalid flow: %w", err)
		}
		return flow, nil
	}
	id, _ := args["flow_id"].(string)
	if id == "" {
		return domain.Flow{}, errors.New("either flow or flow_id is required")
	}
	if s.loader == nil {
		return domain.Flow{}, fmt.Errorf("%w: %s (no flow library configured)", domain.ErrFlowNotFound, id)
	}
	return s.loader.GetFlow(ctx, id)
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ValidationReport, error) {
	flow, err := s.resolveFlow(ctx, args)
	if err != nil {
		return ValidationReport{}, err
	}

	res := validator.ValidateFlow(flow.Nodes, flow.Edges)
	report := ValidationReport{
		IsValid:      res.IsValid,
		Error:        res.Error,
		Roots:        nodeIDs(validator.Roots(flow.Nodes, flow.Edges)),
		Disconnected: nodeIDs(validator.FindDisconnectedNodes(flow.Nodes, flow.Edges)),
		Issues:       validator.Lint(flow),
	}
	s.logger.Debug("MCP validate_flow", "valid", res.IsValid, "issues", len(report.Issues))
	return report, nil
}

func (s *Server) handleDisconnected(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flow, err := s.resolveFlow(ctx, request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids := nodeIDs(validator.FindDisconnectedNodes(flow.Nodes, flow.Edges))
	jsonBytes, _ := json.Marshal(ids)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handlePreview(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (PreviewTranscript, error) {
	flow, err := s.resolveFlow(ctx, args)
	if err != nil {
		return PreviewTranscript{}, err
	}

	var inputs []string
	if raw, ok := args["inputs"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
			return PreviewTranscript{}, fmt.Errorf("inputs must be a JSON array of strings: %w", err)
		}
	}
	if len(inputs) > maxPreviewInputs {
		return PreviewTranscript{}, fmt.Errorf("too many inputs: %d (max %d)", len(inputs), maxPreviewInputs)
	}

	return RunScript(flow, inputs), nil
}

// RunScript previews flow on a manual clock, feeding inputs one at a time
// after the bot has finished talking. An input given while the bot shows
// quick replies counts as a button click.
func RunScript(flow domain.Flow, inputs []string) PreviewTranscript {
	clock := schedule.NewManual(time.Unix(0, 0).UTC())
	sim := simulator.New(flow, simulator.WithScheduler(clock))
	defer sim.Close()

	clock.RunAll()
	for _, in := range inputs {
		if sim.LastIsButtons() {
			sim.HandleButtonClick(in)
		} else {
			sim.HandleSendMessage(in)
		}
		clock.RunAll()
	}

	state := sim.Snapshot()
	out := PreviewTranscript{Messages: state.Messages, CurrentNodeID: state.CurrentNodeID}
	if msg, ok := state.LastBotMessage(); ok && msg.IsButtons() {
		out.Buttons = sim.Buttons(msg)
	}
	return out
}

func (s *Server) registerResources() {
	// EXPOSE: chatflow://flows
	s.mcpServer.AddResource(mcp.NewResource("chatflow://flows", "Flow Library",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids := []string{}
		if s.loader != nil {
			var err error
			if ids, err = s.loader.ListFlows(ctx); err != nil {
				return nil, fmt.Errorf("failed to list flows: %w", err)
			}
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "chatflow://flows",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func nodeIDs(nodes []domain.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
