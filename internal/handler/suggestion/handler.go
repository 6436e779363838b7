package suggestion

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/suggestion"
	"github.com/zhouzirui/farm-assistant/backend/pkg/utils"
)

// Handler 快捷问题的HTTP处理器
type Handler struct {
	suggestions suggestion.Store
}

// New 创建快捷问题处理器
func New(suggestions suggestion.Store) *Handler {
	return &Handler{
		suggestions: suggestions,
	}
}

// RegisterRoutes 注册快捷问题相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/suggestions", h.handleList)
	r.Get("/suggestions/{suggestionID}", h.handleGet)
}

// handleList 列出所有快捷问题
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	_ = utils.RespondJSON(w, http.StatusOK, h.suggestions.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	item, ok := h.suggestions.FindByID(chi.URLParam(r, "suggestionID"))
	if !ok {
		_ = utils.RespondError(w, http.StatusNotFound, "suggestion not found")
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, item)
}
