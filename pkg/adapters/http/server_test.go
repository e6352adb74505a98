package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/memory"
	httpadapter "github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/http"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/editor"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv      *httptest.Server
	store    *memory.Store
	sessions *session.Manager
	streams  *httpadapter.StreamManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore(&domain.Bot{ID: "bot", Name: "Support", Trigger: "oi"})
	streams := httpadapter.NewStreamManager(nil)
	sessions := session.NewManager(store, session.WithEditorOptions(
		editor.WithDebounce(time.Hour),
		editor.WithHooks(streams.Hooks()),
	))
	server := httpadapter.NewServer(sessions,
		httpadapter.WithStreams(streams),
		httpadapter.WithBotStore(store),
		httpadapter.WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "bozchat_up 1\n")
		})),
	)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = sessions.CloseAll(context.Background())
	})
	return &fixture{srv: srv, store: store, sessions: sessions, streams: streams}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeMutation(t *testing.T, data []byte) httpadapter.MutationResponse {
	t.Helper()
	var m httpadapter.MutationResponse
	require.NoError(t, json.Unmarshal(data, &m), string(data))
	return m
}

func TestServer_HealthInfoMetrics(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body = f.do(t, http.MethodGet, "/info", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"app":"bozchat-http"`)

	_, body = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, string(body), "bozchat_up 1")

	resp, _ = f.do(t, http.MethodOptions, "/bots/bot/nodes", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_EditScenario(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/bots/bot/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	g, err := domain.ParseGraph(body)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "oi", g.Nodes[0].Payload.Text)

	resp, body = f.do(t, http.MethodPost, "/bots/bot/nodes", httpadapter.AddChildRequest{SourceID: "node_0", Kind: domain.KindMessage})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	m := decodeMutation(t, body)
	assert.True(t, m.Changed)
	assert.Equal(t, "node_1", m.Node.ID)

	resp, body = f.do(t, http.MethodPost, "/bots/bot/nodes", httpadapter.AddChildRequest{SourceID: "node_1", Kind: domain.KindResponse})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "node_2", decodeMutation(t, body).Node.ID)

	resp, body = f.do(t, http.MethodDelete, "/bots/bot/nodes/node_1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m = decodeMutation(t, body)
	assert.Len(t, m.Graph.Nodes, 1)
	assert.Empty(t, m.Graph.Edges)

	_, body = f.do(t, http.MethodGet, "/bots/bot/history", nil)
	var history []httpadapter.SnapshotInfo
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "node_1", history[0].NodeID)
	assert.Equal(t, 3, history[0].Nodes)

	resp, body = f.do(t, http.MethodPost, "/bots/bot/undo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m = decodeMutation(t, body)
	require.NotNil(t, m.Saved)
	assert.True(t, *m.Saved)
	assert.Len(t, m.Graph.Nodes, 3)

	bot, err := f.store.Load(context.Background(), "bot")
	require.NoError(t, err)
	require.NotNil(t, bot.Instance, "undo saved immediately")
	assert.Len(t, bot.Instance.Nodes, 3)

	resp, body = f.do(t, http.MethodPost, "/bots/bot/undo", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.JSONEq(t, `{"changed":false,"error":"nothing to undo"}`, string(body))
}

func TestServer_RefusedEdits(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown source", http.MethodPost, "/bots/bot/nodes", httpadapter.AddChildRequest{SourceID: "node_9"}, http.StatusNotFound},
		{"unknown node", http.MethodDelete, "/bots/bot/nodes/node_9", nil, http.StatusNotFound},
		{"self edge", http.MethodPost, "/bots/bot/edges", httpadapter.ConnectRequest{SourceID: "node_0", TargetID: "node_0"}, http.StatusConflict},
		{"unknown bot", http.MethodGet, "/bots/ghost/graph", nil, http.StatusNotFound},
		{"pick without arm", http.MethodPost, "/bots/bot/loop/target", httpadapter.LoopRequest{TargetID: "node_0"}, http.StatusConflict},
		{"bad index", http.MethodPost, "/bots/bot/history/x/restore", nil, http.StatusBadRequest},
		{"missing snapshot", http.MethodPost, "/bots/bot/history/4/restore", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			assert.Contains(t, string(body), `"changed":false`)
		})
	}

	resp, _ := f.do(t, http.MethodPost, "/bots/bot/edges", "not an object")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body := f.do(t, http.MethodGet, "/bots/bot/graph", nil)
	g, err := domain.ParseGraph(body)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1, "refused edits leave the graph untouched")
}

func TestServer_PayloadAndLoops(t *testing.T) {
	f := newFixture(t)
	_, _ = f.do(t, http.MethodPost, "/bots/bot/nodes", httpadapter.AddChildRequest{SourceID: "node_0", Kind: domain.KindMessage})
	_, _ = f.do(t, http.MethodPost, "/bots/bot/nodes", httpadapter.AddChildRequest{SourceID: "node_1", Kind: domain.KindResponse})

	payload := json.RawMessage(`{"value":"Olá!","actions":[{"target":"pause","settings":{"minutes":"0"}}],"color":"red"}`)
	resp, body := f.do(t, http.MethodPut, "/bots/bot/nodes/node_1/payload", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	m := decodeMutation(t, body)
	assert.Equal(t, "Olá!", m.Node.Payload.Text)
	assert.True(t, m.Node.Payload.Actions[0].Misconfigured)
	assert.Contains(t, string(body), `"color":"red"`, "unknown data keys survive")

	resp, _ = f.do(t, http.MethodPost, "/bots/bot/loop", httpadapter.LoopRequest{SourceID: "node_2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = f.do(t, http.MethodPost, "/bots/bot/loop/target", httpadapter.LoopRequest{TargetID: "node_0"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	m = decodeMutation(t, body)
	n2, _ := m.Graph.Node("node_2")
	assert.Equal(t, "node_0", n2.Payload.LoopTargetID)
	assert.Len(t, m.Graph.Edges, 2)

	resp, body = f.do(t, http.MethodPost, "/bots/bot/nodes/node_1/loop", httpadapter.LoopRequest{TargetID: "node_1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, body = f.do(t, http.MethodDelete, "/bots/bot/nodes/node_2/loop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	n2, _ = decodeMutation(t, body).Graph.Node("node_2")
	assert.False(t, n2.Payload.HasLoop())

	_, body = f.do(t, http.MethodGet, "/bots/bot/validate", nil)
	assert.JSONEq(t, `{"valid":true}`, string(body))
}

func TestServer_FlushAndCloseSession(t *testing.T) {
	f := newFixture(t)
	_, _ = f.do(t, http.MethodPost, "/bots/bot/nodes", httpadapter.AddChildRequest{SourceID: "node_0", Kind: domain.KindMessage})

	resp, _ := f.do(t, http.MethodPost, "/bots/bot/flush", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	bot, err := f.store.Load(context.Background(), "bot")
	require.NoError(t, err)
	assert.Len(t, bot.Instance.Nodes, 2)

	_, _ = f.do(t, http.MethodPut, "/bots/bot/viewport", domain.Viewport{X: 10, Y: 20, Zoom: 0.5})
	resp, _ = f.do(t, http.MethodDelete, "/bots/bot/session", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, f.sessions.List())

	bot, err = f.store.Load(context.Background(), "bot")
	require.NoError(t, err)
	assert.Equal(t, 0.5, bot.Instance.Viewport.Zoom, "closing the session flushed the viewport")
}

func TestServer_SubscribeEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/bots/bot/events?watch=nodes", nil)
	require.NoError(t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 32)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	require.Equal(t, "event: ping", <-lines)
	require.Eventually(t, func() bool { return f.streams.Subscribers("bot") == 1 }, time.Second, 5*time.Millisecond)

	// Filtered out: the viewport diff has no node changes.
	_, _ = f.do(t, http.MethodPut, "/bots/bot/viewport", domain.Viewport{Zoom: 2})
	_, _ = f.do(t, http.MethodPost, "/bots/bot/nodes", httpadapter.AddChildRequest{SourceID: "node_0", Kind: domain.KindMessage})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended early")
			if !strings.HasPrefix(line, "data: {") {
				continue
			}
			var ev httpadapter.StreamEvent
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			assert.Equal(t, domain.OpAddChild, ev.Op, "the viewport event was filtered")
			assert.Equal(t, []string{"node_1"}, ev.Diff.AddedNodes)
			return
		case <-deadline:
			t.Fatal("no mutation event received")
		}
	}
}

func TestStreamManager_UnsubscribeTwice(t *testing.T) {
	sm := httpadapter.NewStreamManager(nil)
	_, cancel := sm.Subscribe("bot")
	assert.Equal(t, 1, sm.Subscribers("bot"))
	cancel()
	cancel()
	assert.Equal(t, 0, sm.Subscribers("bot"))
	sm.Broadcast(httpadapter.StreamEvent{BotID: "bot"})
}

func TestServer_RequestsCheckedAgainstAPIDocument(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/yaml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "openapi: 3.0.3")
	assert.Contains(t, string(body), "/bots/{botID}/history/{index}/restore")

	_, body = f.do(t, http.MethodGet, "/info", nil)
	assert.Contains(t, string(body), `"api_version":"0.1.0"`)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"numeric source", "/bots/bot/edges", map[string]any{"sourceId": 5, "targetId": "node_0"}},
		{"array body", "/bots/bot/nodes", []string{"node_0"}},
		{"text zoom", "/bots/bot/viewport", map[string]any{"zoom": "far"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodPost
			if strings.HasSuffix(tt.path, "/viewport") {
				method = http.MethodPut
			}
			resp, body := f.do(t, method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
			assert.Contains(t, string(body), `"changed":false`)
		})
	}

	_, body = f.do(t, http.MethodGet, "/bots/bot/graph", nil)
	g, err := domain.ParseGraph(body)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1)
	assert.Equal(t, domain.DefaultViewport, g.Viewport)
}
