package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/export"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	chatService "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/pkg/utils"
)

// Submission statuses reported by POST /sessions/{id}/messages.
const (
	StatusAccepted = "accepted"
	StatusIgnored  = "ignored"

	ReasonEmptyInput  = "empty_input"
	ReasonSessionBusy = "session_busy"
)

// Handler 聊天会话的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	logger  *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger.With(zap.String("component", "chat-handler")),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Delete("/sessions/{sessionID}", h.handleCloseSession)
	r.Post("/sessions/{sessionID}/messages", h.handleSubmit)
	r.Get("/sessions/{sessionID}/transcript", h.handleTranscript)
}

// SubmitResponse reports what happened to a submission.
type SubmitResponse struct {
	Status  string        `json:"status"`
	Reason  string        `json:"reason,omitempty"`
	State   chat.State    `json:"state"`
	Message *chat.Message `json:"message,omitempty"`
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respond(w, http.StatusCreated, session.Snapshot())
}

// handleGetSession 返回会话状态与消息列表
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.chatSvc.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respond(w, http.StatusOK, snapshot)
}

// handleCloseSession 关闭会话
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit 提交用户问题
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	turn, err := session.Submit(payload.Text)
	switch {
	case errors.Is(err, chatService.ErrEmptyInput):
		h.respond(w, http.StatusOK, SubmitResponse{Status: StatusIgnored, Reason: ReasonEmptyInput, State: session.State()})
	case errors.Is(err, chatService.ErrSessionBusy):
		h.respond(w, http.StatusOK, SubmitResponse{Status: StatusIgnored, Reason: ReasonSessionBusy, State: session.State()})
	case err != nil:
		h.respondServiceError(w, err)
	default:
		h.respond(w, http.StatusAccepted, SubmitResponse{Status: StatusAccepted, State: chat.StateAwaitingResponse, Message: &turn.Question})
	}
}

// handleTranscript 导出会话记录
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	exporter, err := export.NewExporter(r.URL.Query().Get("format"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, err := h.chatSvc.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename=\"transcript-"+snapshot.SessionID+"."+exporter.Extension()+"\"")
	if err := exporter.Export(snapshot, w); err != nil {
		h.logger.Warn("transcript export failed", zap.String("session", snapshot.SessionID), zap.Error(err))
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrSessionClosed):
		h.respondError(w, http.StatusGone, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, strings.TrimSpace(err.Error()))
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, payload any) {
	if err := utils.RespondJSON(w, status, payload); err != nil {
		h.logger.Warn("write response failed", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	if err := utils.RespondError(w, status, message); err != nil {
		h.logger.Warn("write response failed", zap.Error(err))
	}
}
