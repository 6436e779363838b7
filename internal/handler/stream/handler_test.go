package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
)

type sseEvent struct {
	name string
	data string
}

// readEvent returns the next named event, skipping comments.
func readEvent(t *testing.T, reader *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		case line == "" && ev.name != "":
			return ev
		}
	}
}

func setup(t *testing.T) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService(chatservice.Config{})
	h := New(chatSvc, nil)
	h.keepAlive = 20 * time.Millisecond

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		_ = chatSvc.Shutdown(context.Background())
		srv.Close()
	})
	return srv, chatSvc
}

func TestEventsUnknownSession(t *testing.T) {
	srv, _ := setup(t)
	resp, err := http.Get(srv.URL + "/sessions/missing/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventsStreamsTurn(t *testing.T) {
	srv, chatSvc := setup(t)
	ctx := context.Background()

	session, err := chatSvc.CreateSession(ctx)
	require.NoError(t, err)

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/sessions/"+session.ID()+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	require.Equal(t, EventSnapshot, first.name)

	var snapshot chat.Snapshot
	require.NoError(t, json.Unmarshal([]byte(first.data), &snapshot))
	assert.Equal(t, session.ID(), snapshot.SessionID)
	assert.Len(t, snapshot.Messages, 1)

	turn, err := session.Submit("How often should I water tomatoes?")
	require.NoError(t, err)
	<-turn.Done()

	var got []chatservice.Event
	for len(got) < 4 {
		ev := readEvent(t, reader)
		var payload chatservice.Event
		require.NoError(t, json.Unmarshal([]byte(ev.data), &payload))
		assert.Equal(t, string(payload.Type), ev.name)
		got = append(got, payload)
	}

	assert.Equal(t, chatservice.EventMessage, got[0].Type)
	assert.Equal(t, chat.SenderUser, got[0].Message.Sender)
	assert.Equal(t, chat.StateAwaitingResponse, got[1].State)
	assert.Equal(t, chat.SenderAssistant, got[2].Message.Sender)
	assert.Equal(t, chat.StateIdle, got[3].State)
}

func TestEventsEndWhenSessionCloses(t *testing.T) {
	srv, chatSvc := setup(t)
	ctx := context.Background()

	session, err := chatSvc.CreateSession(ctx)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/sessions/" + session.ID() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	require.Equal(t, EventSnapshot, readEvent(t, reader).name)

	require.NoError(t, chatSvc.CloseSession(ctx, session.ID()))
	assert.Equal(t, EventClosed, readEvent(t, reader).name)
}
