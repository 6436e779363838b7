package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
)

type received struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	return setupWithConfig(t, chatservice.Config{})
}

func setupWithConfig(t *testing.T, cfg chatservice.Config) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService(cfg)
	r := chi.NewRouter()
	NewWebSocketHandler(chatSvc, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		_ = chatSvc.Shutdown(context.Background())
		srv.Close()
	})
	return srv, chatSvc
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "text",
		"data": map[string]string{"text": text},
	}))
}

func TestUnknownSessionRejected(t *testing.T) {
	srv, _ := setup(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConnectSendsSnapshot(t *testing.T) {
	srv, chatSvc := setup(t)
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	conn := dial(t, srv, session.ID())
	msg := read(t, conn)
	require.Equal(t, TypeSnapshot, msg.Type)
	assert.Equal(t, session.ID(), msg.SessionID)

	var snapshot chat.Snapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snapshot))
	require.Len(t, snapshot.Messages, 1)
	assert.Equal(t, chat.WelcomeMessage, snapshot.Messages[0].Content)
}

func TestTextRoundTrip(t *testing.T) {
	srv, chatSvc := setup(t)
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	conn := dial(t, srv, session.ID())
	require.Equal(t, TypeSnapshot, read(t, conn).Type)

	sendText(t, conn, "What is the ideal soil pH for vegetables?")

	accepted := false
	var assistant *chat.Message
	for !accepted || assistant == nil {
		msg := read(t, conn)
		switch msg.Type {
		case TypeAccepted:
			var question chat.Message
			require.NoError(t, json.Unmarshal(msg.Data, &question))
			assert.Equal(t, chat.SenderUser, question.Sender)
			accepted = true
		case TypeEvent:
			var ev chatservice.Event
			require.NoError(t, json.Unmarshal(msg.Data, &ev))
			if ev.Message != nil && ev.Message.IsAssistant() {
				assistant = ev.Message
			}
		default:
			t.Fatalf("unexpected message type %s", msg.Type)
		}
	}

	assert.NotEmpty(t, assistant.Content)
	require.Eventually(t, func() bool { return session.State() == chat.StateIdle }, 5*time.Second, 10*time.Millisecond)
}

func TestBlankTextIgnored(t *testing.T) {
	srv, chatSvc := setup(t)
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	conn := dial(t, srv, session.ID())
	require.Equal(t, TypeSnapshot, read(t, conn).Type)

	sendText(t, conn, "   ")
	msg := read(t, conn)
	require.Equal(t, TypeIgnored, msg.Type)
	assert.JSONEq(t, `{"reason":"empty_input"}`, string(msg.Data))
	assert.Len(t, session.Messages(), 1)
}

func TestUnsupportedType(t *testing.T) {
	srv, chatSvc := setup(t)
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	conn := dial(t, srv, session.ID())
	require.Equal(t, TypeSnapshot, read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "audio"}))
	assert.Equal(t, TypeError, read(t, conn).Type)
}

func TestSessionCloseEndsConnection(t *testing.T) {
	srv, chatSvc := setup(t)
	ctx := context.Background()
	session, err := chatSvc.CreateSession(ctx)
	require.NoError(t, err)

	conn := dial(t, srv, session.ID())
	require.Equal(t, TypeSnapshot, read(t, conn).Type)

	require.NoError(t, chatSvc.CloseSession(ctx, session.ID()))
	assert.Equal(t, TypeClosed, read(t, conn).Type)

	var msg received
	err = conn.ReadJSON(&msg)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestDisconnectedViewIsEvicted(t *testing.T) {
	srv, chatSvc := setupWithConfig(t, chatservice.Config{
		SessionTTL:    50 * time.Millisecond,
		SweepInterval: 5 * time.Millisecond,
	})
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)
	_, hold := session.Subscribe()

	conn := dial(t, srv, session.ID())
	require.Equal(t, TypeSnapshot, read(t, conn).Type)
	hold()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, chatSvc.Count(), "attached view keeps the session alive")

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool { return chatSvc.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestWriterFailureUnblocksReader(t *testing.T) {
	chatSvc := chatservice.NewService(chatservice.Config{})
	t.Cleanup(func() { _ = chatSvc.Shutdown(context.Background()) })
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	h := NewWebSocketHandler(chatSvc, nil)
	writeErr := errors.New("write failed")
	served := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			served <- err
			return
		}
		conn := &connection{conn: raw, sessionID: session.ID()}
		served <- h.serve(context.Background(), conn, session, zap.NewNop(),
			func(context.Context) error { return writeErr },
		)
	}))
	t.Cleanup(srv.Close)

	// The client stays connected and silent, so only the failed writer can end the read.
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	select {
	case err := <-served:
		assert.ErrorIs(t, err, writeErr)
	case <-time.After(2 * time.Second):
		t.Fatal("reader kept the connection open after a writer failed")
	}
}
