package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	chatservice "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Outbound message types.
const (
	TypeSnapshot = "snapshot"
	TypeEvent    = "event"
	TypeAccepted = "accepted"
	TypeIgnored  = "ignored"
	TypeClosed   = "closed"
	TypeError    = "error"
)

// WebSocketHandler 会话的WebSocket处理器
type WebSocketHandler struct {
	chatSvc  *chatservice.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatservice.Service, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		chatSvc: chatSvc,
		logger:  logger.With(zap.String("component", "websocket")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// TextMessage 用户提交的问题
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection serialises writes; gorilla allows one concurrent writer.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *connection) send(msgType string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (c *connection) closeNormal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer raw.Close()

	logger := h.logger.With(zap.String("session", sessionID))
	logger.Info("connection opened")
	defer logger.Info("connection closed")

	conn := &connection{conn: raw, sessionID: sessionID}

	events, unsubscribe := session.Subscribe()
	defer unsubscribe()

	if err := conn.send(TypeSnapshot, session.Snapshot()); err != nil {
		logger.Warn("send snapshot failed", zap.Error(err))
		return
	}

	err = h.serve(r.Context(), conn, session, logger,
		func(ctx context.Context) error { return h.forward(ctx, conn, events) },
		func(ctx context.Context) error { return h.pingLoop(ctx, conn) },
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("writer stopped", zap.Error(err))
	}
}

// serve reads client messages while the writers run. A failing writer
// closes the connection so the blocked reader returns at once.
func (h *WebSocketHandler) serve(ctx context.Context, conn *connection, session *chatservice.Session, logger *zap.Logger, writers ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, write := range writers {
		g.Go(func() error { return write(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.conn.Close()
		return nil
	})

	h.readLoop(gctx, conn, session, logger)

	cancel()
	return g.Wait()
}

func (h *WebSocketHandler) readLoop(ctx context.Context, conn *connection, session *chatservice.Session, logger *zap.Logger) {
	_ = conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if ctx.Err() != nil {
			return
		}

		var msg inboundMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("read error", zap.Error(err))
			}
			return
		}
		_ = conn.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != session.ID() {
			h.sendError(conn, "session mismatch")
			continue
		}

		h.handleMessage(conn, session, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(conn *connection, session *chatservice.Session, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(conn, session, msg.Data)
	case "snapshot":
		if err := conn.send(TypeSnapshot, session.Snapshot()); err != nil {
			h.logger.Debug("send snapshot failed", zap.Error(err))
		}
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(conn *connection, session *chatservice.Session, raw json.RawMessage) {
	var payload TextMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(conn, "invalid text payload")
		return
	}

	turn, err := session.Submit(payload.Text)
	var sendErr error
	switch {
	case errors.Is(err, chatservice.ErrEmptyInput):
		sendErr = conn.send(TypeIgnored, map[string]string{"reason": "empty_input"})
	case errors.Is(err, chatservice.ErrSessionBusy):
		sendErr = conn.send(TypeIgnored, map[string]string{"reason": "session_busy"})
	case err != nil:
		h.sendError(conn, err.Error())
	default:
		sendErr = conn.send(TypeAccepted, turn.Question)
	}
	if sendErr != nil {
		h.logger.Debug("send reply failed", zap.Error(sendErr))
	}
}

// forward relays session events until ctx ends or the session closes.
func (h *WebSocketHandler) forward(ctx context.Context, conn *connection, events <-chan chatservice.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				_ = conn.send(TypeClosed, nil)
				conn.closeNormal()
				return nil
			}
			if err := conn.send(TypeEvent, ev); err != nil {
				return err
			}
		}
	}
}

func (h *WebSocketHandler) sendError(conn *connection, message string) {
	if err := conn.send(TypeError, map[string]string{"message": message}); err != nil {
		h.logger.Debug("write error failed", zap.Error(err))
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *connection) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return err
			}
		}
	}
}
