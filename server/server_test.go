package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konecto/actuator-agent/engine"
)

type fakeAgent struct {
	lastMessage string
	lastConvID  string
	calls       int
}

func (f *fakeAgent) Run(_ context.Context, message, conversationID string) *engine.Result {
	f.calls++
	f.lastMessage = message
	f.lastConvID = conversationID
	id := conversationID
	if id == "" {
		id = "conv-123"
	}
	return &engine.Result{Response: "echo: " + message, ConversationID: id}
}

type fakeHealth struct{ semantic bool }

func (f fakeHealth) SemanticAvailable() bool { return f.semantic }

func newTestServer(agent Agent, health HealthReporter) *httptest.Server {
	s := New(Config{Agent: agent, Health: health, AllowAnyOrigin: true})
	return httptest.NewServer(s.Handler())
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(&fakeAgent{}, fakeHealth{semantic: true})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["semantic_search"])
}

func TestConversationHappyPath(t *testing.T) {
	agent := &fakeAgent{}
	ts := newTestServer(agent, fakeHealth{})
	defer ts.Close()

	payload := `{"message": "what torque?", "conversation_id": "abc"}`
	resp, err := http.Post(ts.URL+"/conversation", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body conversationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "echo: what torque?", body.Response)
	assert.Equal(t, "abc", body.ConversationID)
	assert.Equal(t, "abc", agent.lastConvID)
}

func TestConversationRejectsEmptyMessage(t *testing.T) {
	agent := &fakeAgent{}
	ts := newTestServer(agent, fakeHealth{})
	defer ts.Close()

	for _, payload := range []string{`{"message": ""}`, `{"message": "   "}`, `not json`} {
		resp, err := http.Post(ts.URL+"/conversation", "application/json", bytes.NewReader([]byte(payload)))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "payload %q", payload)
	}
	assert.Equal(t, 0, agent.calls)
}

func TestWebSocketReusesConversation(t *testing.T) {
	agent := &fakeAgent{}
	ts := newTestServer(agent, fakeHealth{})
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/conversation/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "first"}))
	var reply conversationResponse
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "echo: first", reply.Response)
	assert.Equal(t, "conv-123", reply.ConversationID)

	// The second frame omits the id; the connection reuses the first one.
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "second"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "conv-123", reply.ConversationID)
	assert.Equal(t, "conv-123", agent.lastConvID)
}

func TestWebSocketRejectsEmptyMessage(t *testing.T) {
	ts := newTestServer(&fakeAgent{}, fakeHealth{})
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/conversation/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": ""}))
	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "message must not be empty", reply["error"])
}
