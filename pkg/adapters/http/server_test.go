package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/testutils"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t       *testing.T
	clock   *schedule.Manual
	server  *Server
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := schedule.NewManual(time.Unix(0, 0))
	studio := chatflow.New(chatflow.WithScheduler(clock))
	server := NewServer(studio)
	t.Cleanup(func() {
		server.Close()
		studio.Close()
	})
	return &fixture{t: t, clock: clock, server: server, handler: server.Handler()}
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestMeta(t *testing.T) {
	f := newFixture(t)

	w := f.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	info := decodeBody[map[string]string](t, f.do("GET", "/info", nil))
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.Equal(t, strings.TrimSpace(chatflow.Version), info["version"])

	w = f.do("GET", "/openapi.yaml", nil)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	types := decodeBody[[]map[string]any](t, f.do("GET", "/node-types", nil))
	require.NotEmpty(t, types)
	assert.Equal(t, "message", types[0]["type"])

	w = f.do("OPTIONS", "/flows", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestFlowEditing(t *testing.T) {
	f := newFixture(t)

	w := f.do("POST", "/flows", testutils.WelcomeFlowJSON)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[flowResponse](t, w)
	assert.Equal(t, "welcome", created.ID)
	assert.Len(t, created.Flow.Nodes, 2)

	w = f.do("POST", "/flows", testutils.WelcomeFlowJSON)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do("POST", "/flows/welcome/nodes", addNodeRequest{Type: "textNode", Position: domain.Position{X: 10}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decodeBody[domain.Node](t, w)
	assert.Equal(t, domain.NodeTypeMessage, added.Type)

	w = f.do("GET", "/flows/welcome/validation", nil)
	report := decodeBody[map[string]any](t, w)
	assert.Equal(t, false, report["isValid"])
	assert.Equal(t, []any{added.ID}, report["disconnected"])

	w = f.do("POST", "/flows/welcome/save", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	rejected := decodeBody[errorResponse](t, w)
	assert.Equal(t, domain.MultipleRootsMessage, rejected.Error)
	assert.Equal(t, []string{"greet", added.ID}, rejected.Roots)

	got := decodeBody[flowResponse](t, f.do("GET", "/flows/welcome", nil))
	assert.Equal(t, domain.MultipleRootsMessage, got.SaveError)

	w = f.do("POST", "/flows/welcome/connections", domain.Edge{Source: "menu", Target: added.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do("POST", "/flows/welcome/save", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do("POST", "/flows/welcome/connections", domain.Edge{Source: "menu", Target: "menu"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("PATCH", "/flows/welcome/nodes/"+added.ID, map[string]any{"label": "Bye"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bye", decodeBody[domain.Node](t, w).Label())

	w = f.do("POST", "/flows/welcome/nodes/menu/buttons", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, decodeBody[domain.Node](t, w).Buttons(), 3)

	w = f.do("DELETE", "/flows/welcome/nodes/menu/buttons/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No", decodeBody[domain.Node](t, w).Buttons()[0].Text)

	w = f.do("POST", "/flows/welcome/nodes/greet/buttons", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("GET", "/flows/welcome/graph", nil)
	assert.Contains(t, w.Body.String(), "greet --> menu")

	w = f.do("GET", "/flows/welcome/lint", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do("DELETE", "/flows/welcome/connections/greet-menu", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do("DELETE", "/flows/welcome/connections/greet-menu", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do("DELETE", "/flows/welcome/nodes/"+added.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	ids := decodeBody[map[string][]string](t, f.do("GET", "/flows", nil))
	assert.Equal(t, []string{"welcome"}, ids["flows"])

	w = f.do("DELETE", "/flows/welcome", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do("GET", "/flows/welcome", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFlowReplace(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do("POST", "/flows", `{"id":"f"}`).Code)

	w := f.do("PUT", "/flows/f", `{"nodes":[{"id":"a","type":"message","data":{"label":"x"}}],"edges":[]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decodeBody[flowResponse](t, w).Flow.Nodes, 1)

	w = f.do("PUT", "/flows/f", `{"nodes":[{"id":"a","type":"message"},{"id":"a","type":"message"}]}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do("PUT", "/flows/f", `{"nodes":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewConversation(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do("POST", "/flows", testutils.WelcomeFlowJSON).Code)

	w := f.do("POST", "/previews", startPreviewRequest{FlowID: "welcome"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	started := decodeBody[domain.SimulationState](t, w)
	sid := started.SessionID
	require.NotEmpty(t, sid)
	assert.Equal(t, domain.StatusAdvancing, started.Status)

	f.clock.RunAll()
	state := decodeBody[domain.SimulationState](t, f.do("GET", "/previews/"+sid, nil))
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "Hi there!", state.Messages[0].Content)

	w = f.do("POST", "/previews/"+sid+"/messages", inputRequest{Text: "hello\x1b[31m"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello[31m", decodeBody[domain.SimulationState](t, w).Messages[1].Content)
	f.clock.RunAll()

	buttons := decodeBody[map[string][]domain.Button](t, f.do("GET", "/previews/"+sid+"/buttons", nil))
	require.Len(t, buttons["buttons"], 2)
	assert.Equal(t, "Yes", buttons["buttons"][0].Text)

	w = f.do("POST", "/previews/"+sid+"/buttons", inputRequest{Text: "Yes"})
	require.Equal(t, http.StatusOK, w.Code)
	state = decodeBody[domain.SimulationState](t, w)
	assert.Len(t, state.Messages, 5)
	assert.Equal(t, domain.StatusAwaitingInput, state.Status)

	w = f.do("POST", "/previews/"+sid+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state = decodeBody[domain.SimulationState](t, w)
	assert.Empty(t, state.Messages)
	assert.Equal(t, uint64(2), state.Generation)

	list := decodeBody[map[string][]string](t, f.do("GET", "/previews", nil))
	assert.Equal(t, []string{sid}, list["sessions"])

	assert.Equal(t, http.StatusNoContent, f.do("DELETE", "/previews/"+sid, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/previews/"+sid, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do("POST", "/previews/"+sid+"/reset", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do("POST", "/previews", startPreviewRequest{FlowID: "nope"}).Code)
}

func TestPreviewRestartsOnEdit(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do("POST", "/flows", testutils.WelcomeFlowJSON).Code)
	sid := decodeBody[domain.SimulationState](t, f.do("POST", "/previews", startPreviewRequest{FlowID: "welcome"})).SessionID
	f.clock.RunAll()

	require.Equal(t, http.StatusOK, f.do("PATCH", "/flows/welcome/nodes/greet", map[string]any{"label": "Howdy"}).Code)
	f.clock.RunAll()

	state := decodeBody[domain.SimulationState](t, f.do("GET", "/previews/"+sid, nil))
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "Howdy", state.Messages[0].Content)
	assert.Equal(t, uint64(2), state.Generation)

	graph := f.do("GET", "/flows/welcome/graph?session_id="+sid, nil).Body.String()
	assert.Contains(t, graph, "class greet current;")
}

func TestSubscribeEvents(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do("POST", "/flows", testutils.WelcomeFlowJSON).Code)
	sid := decodeBody[domain.SimulationState](t, f.do("POST", "/previews", startPreviewRequest{FlowID: "welcome"})).SessionID

	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/previews/"+sid+"/events?watch=messages", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 32)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				lines <- data
			}
		}
	}()

	next := func() *domain.TranscriptDiff {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed")
				if line == "connected" {
					continue
				}
				var diff domain.TranscriptDiff
				require.NoError(t, json.Unmarshal([]byte(line), &diff))
				return &diff
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for event")
				return nil
			}
		}
	}

	initial := next()
	assert.Equal(t, sid, initial.SessionID)
	assert.Empty(t, initial.Appended)

	require.Eventually(t, func() bool { return f.server.Streams.Subscribers(sid) == 1 }, time.Second, 10*time.Millisecond)
	f.clock.RunAll()

	diff := next()
	require.Len(t, diff.Appended, 1)
	assert.Equal(t, "Hi there!", diff.Appended[0].Content)

	require.Equal(t, http.StatusOK, f.do("POST", "/previews/"+sid+"/reset", nil).Code)
	diff = next()
	assert.True(t, diff.Reset)
}

func TestSubscribeEvents_UnknownSession(t *testing.T) {
	f := newFixture(t)
	w := f.do("GET", "/previews/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, f.server.Streams.Subscribers("missing"))
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain", input: "hello", want: "hello"},
		{name: "keeps whitespace controls", input: "a\tb\nc\r", want: "a\tb\nc\r"},
		{name: "strips escape and null", input: "a\x1b\x00b", want: "ab"},
		{name: "invalid utf8", input: "\xff", wantErr: ErrInvalidUTF8},
		{name: "too large", input: strings.Repeat("x", DefaultMaxInputSize+1), wantErr: ErrInputTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("env override", func(t *testing.T) {
		t.Setenv(EnvMaxInputSize, "3")
		_, err := SanitizeInput("abcd")
		assert.ErrorIs(t, err, ErrInputTooLarge)
	})
}

func TestWatchFilter(t *testing.T) {
	status := domain.StatusIdle
	statusOnly := &domain.TranscriptDiff{Status: &status}
	appended := &domain.TranscriptDiff{Appended: []domain.ConversationMessage{{Content: "x"}}}

	assert.True(t, parseWatch(nil).matches(statusOnly))
	assert.False(t, parseWatch([]string{"messages"}).matches(statusOnly))
	assert.True(t, parseWatch([]string{"messages"}).matches(appended))
	assert.True(t, parseWatch([]string{" node ", " status"}).matches(statusOnly))
}

func TestParameterBinding(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do("POST", "/flows", testutils.WelcomeFlowJSON).Code)

	t.Run("malformed index", func(t *testing.T) {
		w := f.do("DELETE", "/flows/welcome/nodes/menu/buttons/first", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody[errorResponse](t, w).Error, "Invalid format for parameter index")
	})

	t.Run("escaped ids", func(t *testing.T) {
		flow := `{"id": "sign up", "nodes": [{"id": "hello world", "type": "textNode", "data": {"label": "Hi"}}], "edges": []}`
		require.Equal(t, http.StatusCreated, f.do("POST", "/flows", flow).Code)

		w := f.do("PATCH", "/flows/sign%20up/nodes/hello%20world", map[string]any{"label": "Hey"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "hello world", decodeBody[domain.Node](t, w).ID)
	})

	t.Run("watch list", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/previews/x/events?watch=messages,node", nil)
		var watch []string
		require.NoError(t, queryParam(req, "watch", &watch))
		assert.Equal(t, []string{"messages", "node"}, watch)

		req = httptest.NewRequest("GET", "/previews/x/events", nil)
		watch = nil
		require.NoError(t, queryParam(req, "watch", &watch))
		assert.Nil(t, watch)
	})
}
