package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/editor"
	"github.com/aretw0/chatflow/pkg/session"
	"github.com/aretw0/chatflow/pkg/validator"
	"github.com/go-chi/chi/v5"
)

// maxBodySize caps request bodies; flows are small documents.
const maxBodySize = 1 << 20

// Studio is the part of the chatflow facade the HTTP API drives.
type Studio interface {
	Create(id string, flow domain.Flow) (*editor.Editor, error)
	Editor(ctx context.Context, id string) (*editor.Editor, error)
	Remove(id string) error
	List(ctx context.Context) ([]string, error)
	Validate(ctx context.Context, id string) (domain.ValidationResult, error)
	Save(ctx context.Context, id string) error
	Preview(ctx context.Context, id string) (string, *domain.SimulationState, error)
	Sessions() *session.Manager
	Watch(fn session.Observer) (unwatch func())
	MetricsHandler() http.Handler
}

var _ Studio = (*chatflow.Studio)(nil)

// Server serves the editor and preview API over a Studio.
type Server struct {
	Studio  Studio
	Streams *StreamManager

	logger  *slog.Logger
	unwatch func()

	lastMu sync.Mutex
	last   map[string]*domain.SimulationState
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server and starts streaming preview diffs.
// Call Close to stop watching the Studio.
func NewServer(studio Studio, opts ...Option) *Server {
	s := &Server{
		Studio: studio,
		logger: logging.NewNop(),
		last:   make(map[string]*domain.SimulationState),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	s.unwatch = studio.Watch(s.observe)
	return s
}

// NewHandler creates a new HTTP handler for the studio.
func NewHandler(studio Studio, opts ...Option) http.Handler {
	return NewServer(studio, opts...).Handler()
}

// Close stops the diff stream feed.
func (s *Server) Close() {
	s.unwatch()
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Method(http.MethodGet, "/metrics", s.Studio.MetricsHandler())
	r.Get("/node-types", s.ListNodeTypes)

	r.Route("/flows", func(r chi.Router) {
		r.Get("/", s.ListFlows)
		r.Post("/", s.CreateFlow)
		r.Route("/{flowId}", func(r chi.Router) {
			r.Get("/", s.GetFlow)
			r.Put("/", s.ReplaceFlow)
			r.Delete("/", s.DeleteFlow)
			r.Post("/nodes", s.AddNode)
			r.Patch("/nodes/{nodeId}", s.UpdateNode)
			r.Delete("/nodes/{nodeId}", s.RemoveNode)
			r.Post("/nodes/{nodeId}/buttons", s.AddButton)
			r.Delete("/nodes/{nodeId}/buttons/{index}", s.RemoveButton)
			r.Post("/connections", s.Connect)
			r.Delete("/connections/{edgeId}", s.RemoveEdge)
			r.Post("/save", s.SaveFlow)
			r.Get("/validation", s.ValidateFlow)
			r.Get("/lint", s.LintFlow)
			r.Get("/graph", s.GetGraph)
		})
	})

	r.Route("/previews", func(r chi.Router) {
		r.Get("/", s.ListPreviews)
		r.Post("/", s.StartPreview)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", s.GetPreview)
			r.Delete("/", s.StopPreview)
			r.Post("/messages", s.SendMessage)
			r.Get("/buttons", s.GetButtons)
			r.Post("/buttons", s.ClickButton)
			r.Post("/reset", s.ResetPreview)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Chatflow API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// -- Meta --

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := GetSpec(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	} else if err != nil {
		s.logger.Error("Failed to load OpenAPI spec", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "chatflow-http",
		"version":     strings.TrimSpace(chatflow.Version),
		"api_version": apiVersion,
	})
}

type nodeTypeResponse struct {
	Type        domain.NodeType `json:"type"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Available   bool            `json:"available"`
	Defaults    domain.Payload  `json:"defaults,omitempty"`
}

// ListNodeTypes handles the GET /node-types request.
func (s *Server) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	defs := domain.NodeTypes()
	out := make([]nodeTypeResponse, 0, len(defs))
	for _, d := range defs {
		item := nodeTypeResponse{Type: d.Type, Label: d.Label, Description: d.Description, Available: d.Available}
		if d.Defaults != nil {
			item.Defaults = d.Defaults()
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

// -- Flows --

type createFlowRequest struct {
	ID string `json:"id"`
	domain.RawFlow
}

type flowResponse struct {
	ID        string      `json:"id"`
	Flow      domain.Flow `json:"flow"`
	SaveError string      `json:"save_error,omitempty"`
}

func (s *Server) describeFlow(id string, ed *editor.Editor) flowResponse {
	return flowResponse{ID: id, Flow: ed.Flow(), SaveError: ed.SaveError()}
}

// ListFlows handles the GET /flows request.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Studio.List(r.Context())
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"flows": ids})
}

// CreateFlow handles the POST /flows request.
func (s *Server) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var body createFlowRequest
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.ID) == "" {
		s.fail(w, errors.New("flow id is required"), http.StatusBadRequest)
		return
	}
	flow, err := body.RawFlow.Decode()
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	ed, err := s.Studio.Create(body.ID, flow)
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, s.describeFlow(body.ID, ed))
}

// openEditor resolves the {flowId} parameter, writing the error response on failure.
func (s *Server) openEditor(w http.ResponseWriter, r *http.Request) (string, *editor.Editor, bool) {
	var id string
	if !s.bindPath(w, r, "flowId", &id) {
		return "", nil, false
	}
	ed, err := s.Studio.Editor(r.Context(), id)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return id, nil, false
	}
	return id, ed, true
}

// GetFlow handles the GET /flows/{flowId} request.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	id, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.describeFlow(id, ed))
}

// ReplaceFlow handles the PUT /flows/{flowId} request.
func (s *Server) ReplaceFlow(w http.ResponseWriter, r *http.Request) {
	id, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	var body domain.RawFlow
	if !s.decode(w, r, &body) {
		return
	}
	flow, err := body.Decode()
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	if _, err := ed.Replace(flow.Nodes, flow.Edges); err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.describeFlow(id, ed))
}

// DeleteFlow handles the DELETE /flows/{flowId} request.
func (s *Server) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	var id string
	if !s.bindPath(w, r, "flowId", &id) {
		return
	}
	if err := s.Studio.Remove(id); err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addNodeRequest struct {
	Type     string          `json:"type"`
	Position domain.Position `json:"position"`
}

// AddNode handles the POST /flows/{flowId}/nodes request.
func (s *Server) AddNode(w http.ResponseWriter, r *http.Request) {
	_, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	var body addNodeRequest
	if !s.decode(w, r, &body) {
		return
	}
	t, err := domain.ParseNodeType(body.Type)
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	node, err := ed.AddNode(t, body.Position)
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// UpdateNode handles the PATCH /flows/{flowId}/nodes/{nodeId} request.
func (s *Server) UpdateNode(w http.ResponseWriter, r *http.Request) {
	_, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	var nodeID string
	if !s.bindPath(w, r, "nodeId", &nodeID) {
		return
	}
	var patch map[string]any
	if !s.decode(w, r, &patch) {
		return
	}
	node, err := ed.UpdateNodeData(nodeID, patch)
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// RemoveNode handles the DELETE /flows/{flowId}/nodes/{nodeId} request.
func (s *Server) RemoveNode(w http.ResponseWriter, r *http.Request) {
	_, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	var nodeID string
	if !s.bindPath(w, r, "nodeId", &nodeID) {
		return
	}
	if err := ed.RemoveNode(nodeID); err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddButton handles the POST /flows/{flowId}/nodes/{nodeId}/buttons request.
func (s *Server) AddButton(w http.ResponseWriter, r *http.Request) {
	_, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	var nodeID string
	if !s.bindPath(w, r, "nodeId", &nodeID) {
		return
	}
	node, err := ed.AddButton(nodeID)
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// RemoveButton handles the DELETE /flows/{flowId}/nodes/{nodeId}/buttons/{index} request.
func (s *Server) RemoveButton(w http.ResponseWriter, r *http.Request) {
	_, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	var (
		nodeID string
		index  int
	)
	if !s.bindPath(w, r, "nodeId", &nodeID) || !s.bindPath(w, r, "index", &index) {
		return
	}
	node, err := ed.RemoveButton(nodeID, index)
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// Connect handles the POST /flows/{flowId}/connections request.
func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	_, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	var body domain.Edge
	if !s.decode(w, r, &body) {
		return
	}
	edge, err := ed.Connect(body.Source, body.SourceHandle, body.Target, body.TargetHandle)
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

// RemoveEdge handles the DELETE /flows/{flowId}/connections/{edgeId} request.
func (s *Server) RemoveEdge(w http.ResponseWriter, r *http.Request) {
	_, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	var edgeID string
	if !s.bindPath(w, r, "edgeId", &edgeID) {
		return
	}
	if err := ed.RemoveEdge(edgeID); err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveFlow handles the POST /flows/{flowId}/save request.
func (s *Server) SaveFlow(w http.ResponseWriter, r *http.Request) {
	var id string
	if !s.bindPath(w, r, "flowId", &id) {
		return
	}
	if err := s.Studio.Save(r.Context(), id); err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type validationResponse struct {
	domain.ValidationResult
	Disconnected []string `json:"disconnected"`
}

// ValidateFlow handles the GET /flows/{flowId}/validation request.
func (s *Server) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	id, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	res, err := s.Studio.Validate(r.Context(), id)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	flow := ed.Flow()
	out := validationResponse{ValidationResult: res, Disconnected: []string{}}
	for _, n := range validator.FindDisconnectedNodes(flow.Nodes, flow.Edges) {
		out.Disconnected = append(out.Disconnected, n.ID)
	}
	writeJSON(w, http.StatusOK, out)
}

// LintFlow handles the GET /flows/{flowId}/lint request.
func (s *Server) LintFlow(w http.ResponseWriter, r *http.Request) {
	_, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	issues := validator.Lint(ed.Flow())
	if issues == nil {
		issues = []validator.Issue{}
	}
	writeJSON(w, http.StatusOK, map[string][]validator.Issue{"issues": issues})
}

// GetGraph handles the GET /flows/{flowId}/graph request.
// With ?session_id the preview's path is overlaid on the diagram.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	_, ed, ok := s.openEditor(w, r)
	if !ok {
		return
	}
	var sid string
	if !s.bindQuery(w, r, "session_id", &sid) {
		return
	}
	var overlay *graph.GraphOverlay
	if sid != "" {
		state, err := s.Studio.Sessions().Load(r.Context(), sid)
		if err != nil {
			s.fail(w, err, http.StatusInternalServerError)
			return
		}
		overlay = graph.OverlayFromState(state)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(ed.Flow(), overlay))
}

// -- Previews --

type startPreviewRequest struct {
	FlowID string `json:"flow_id"`
}

type inputRequest struct {
	Text string `json:"text"`
}

// ListPreviews handles the GET /previews request.
func (s *Server) ListPreviews(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Studio.Sessions().List(r.Context())
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// StartPreview handles the POST /previews request.
func (s *Server) StartPreview(w http.ResponseWriter, r *http.Request) {
	var body startPreviewRequest
	if !s.decode(w, r, &body) {
		return
	}
	_, state, err := s.Studio.Preview(r.Context(), body.FlowID)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// GetPreview handles the GET /previews/{sessionId} request.
func (s *Server) GetPreview(w http.ResponseWriter, r *http.Request) {
	var sid string
	if !s.bindPath(w, r, "sessionId", &sid) {
		return
	}
	state, err := s.Studio.Sessions().Load(r.Context(), sid)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// StopPreview handles the DELETE /previews/{sessionId} request.
func (s *Server) StopPreview(w http.ResponseWriter, r *http.Request) {
	var sid string
	if !s.bindPath(w, r, "sessionId", &sid) {
		return
	}
	if err := s.Studio.Sessions().Close(r.Context(), sid); err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	s.lastMu.Lock()
	delete(s.last, sid)
	s.lastMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// readInput decodes and sanitizes an inputRequest.
func (s *Server) readInput(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body inputRequest
	if !s.decode(w, r, &body) {
		return "", false
	}
	clean, err := SanitizeInput(body.Text)
	if err != nil {
		s.logger.Warn("Input rejected", "error", err, "size", len(body.Text))
		s.fail(w, err, http.StatusBadRequest)
		return "", false
	}
	return clean, true
}

// SendMessage handles the POST /previews/{sessionId}/messages request.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var sid string
	if !s.bindPath(w, r, "sessionId", &sid) {
		return
	}
	text, ok := s.readInput(w, r)
	if !ok {
		return
	}
	state, err := s.Studio.Sessions().Send(r.Context(), sid, text)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetButtons handles the GET /previews/{sessionId}/buttons request.
// It lists the quick replies of the latest buttons instruction, if the
// preview is waiting on one.
func (s *Server) GetButtons(w http.ResponseWriter, r *http.Request) {
	var sid string
	if !s.bindPath(w, r, "sessionId", &sid) {
		return
	}
	state, err := s.Studio.Sessions().Load(r.Context(), sid)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	buttons := []domain.Button{}
	if msg, ok := state.LastBotMessage(); ok && msg.IsButtons() {
		found, err := s.Studio.Sessions().Buttons(sid, msg)
		if err != nil {
			s.fail(w, err, http.StatusInternalServerError)
			return
		}
		buttons = append(buttons, found...)
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Button{"buttons": buttons})
}

// ClickButton handles the POST /previews/{sessionId}/buttons request.
func (s *Server) ClickButton(w http.ResponseWriter, r *http.Request) {
	var sid string
	if !s.bindPath(w, r, "sessionId", &sid) {
		return
	}
	text, ok := s.readInput(w, r)
	if !ok {
		return
	}
	state, err := s.Studio.Sessions().Click(r.Context(), sid, text)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ResetPreview handles the POST /previews/{sessionId}/reset request.
func (s *Server) ResetPreview(w http.ResponseWriter, r *http.Request) {
	var sid string
	if !s.bindPath(w, r, "sessionId", &sid) {
		return
	}
	state, err := s.Studio.Sessions().Reset(r.Context(), sid)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// observe turns every persisted snapshot into a diff against the previous one.
func (s *Server) observe(sessionID string, state *domain.SimulationState) {
	s.lastMu.Lock()
	diff := domain.Diff(s.last[sessionID], state)
	s.last[sessionID] = state
	s.lastMu.Unlock()

	if diff != nil {
		s.Streams.Broadcast(sessionID, diff)
	}
}

// SubscribeEvents handles the GET /previews/{sessionId}/events request (SSE).
// The first event carries the whole transcript; later events carry diffs.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	var sid string
	if !s.bindPath(w, r, "sessionId", &sid) {
		return
	}
	var watch []string
	if !s.bindQuery(w, r, "watch", &watch) {
		return
	}
	filter := parseWatch(watch)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	ch, cancel := s.Streams.Subscribe(sid)
	defer cancel()

	state, err := s.Studio.Sessions().Load(r.Context(), sid)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to Session Updates", "session_id", sid)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	writeEvent(w, domain.Diff(nil, state))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "session_id", sid)
			return
		case diff, ok := <-ch:
			if !ok {
				return
			}
			if !filter.matches(diff) {
				continue
			}
			writeEvent(w, diff)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, diff *domain.TranscriptDiff) {
	if diff == nil {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// watchFilter selects which diffs a stream client cares about. Empty means all.
type watchFilter map[string]bool

func parseWatch(fields []string) watchFilter {
	f := watchFilter{}
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			f[field] = true
		}
	}
	return f
}

func (f watchFilter) matches(d *domain.TranscriptDiff) bool {
	if len(f) == 0 {
		return true
	}
	return (f["messages"] && (len(d.Appended) > 0 || d.Reset)) ||
		(f["status"] && d.Status != nil) ||
		(f["node"] && d.CurrentNodeID != nil)
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "error", err)
		s.fail(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return false
	}
	return true
}

type errorResponse struct {
	Error string   `json:"error"`
	Roots []string `json:"roots,omitempty"`
}

// fail maps domain errors to status codes; other errors get fallback.
func (s *Server) fail(w http.ResponseWriter, err error, fallback int) {
	status := statusFor(err, fallback)
	resp := errorResponse{Error: err.Error()}

	var topo *domain.InvalidFlowTopologyError
	if errors.As(err, &topo) {
		resp.Error = topo.Message
		resp.Roots = topo.Roots
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, resp)
}

func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, domain.ErrFlowNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFlowExists),
		errors.Is(err, domain.ErrDuplicateNode):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidFlowTopology):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSelfConnection),
		errors.Is(err, domain.ErrUnknownNodeType),
		errors.Is(err, domain.ErrNoButtons):
		return http.StatusBadRequest
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
