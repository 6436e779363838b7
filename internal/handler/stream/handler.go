package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chatService "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/pkg/utils"
)

// SSE event names besides the session event types.
const (
	EventSnapshot = "snapshot"
	EventClosed   = "closed"

	defaultKeepAlive = 15 * time.Second
)

// Handler streams session changes to the conversation view via Server-Sent Events
type Handler struct {
	chatSvc   *chatService.Service
	logger    *zap.Logger
	keepAlive time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:   chatSvc,
		logger:    logger.With(zap.String("component", "sse")),
		keepAlive: defaultKeepAlive,
	}
}

// RegisterRoutes 注册事件流路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/events", h.handleEvents)
}

// handleEvents sends a snapshot first, then every message and state change
// until the client goes away or the session is closed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		_ = utils.RespondError(w, status, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before the snapshot so nothing falls between them.
	events, unsubscribe := session.Subscribe()
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	logger := h.logger.With(zap.String("session", sessionID))
	logger.Debug("event stream opened")
	defer logger.Debug("event stream closed")

	if err := utils.SendSSEEvent(w, flusher, EventSnapshot, session.Snapshot()); err != nil {
		logger.Warn("send snapshot failed", zap.Error(err))
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = utils.SendSSEEvent(w, flusher, EventClosed, map[string]string{"sessionId": sessionID})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				logger.Warn("send event failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}
