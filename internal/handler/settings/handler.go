package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/credentials"
	"github.com/zhouzirui/farm-assistant/backend/pkg/utils"
)

// Handler 推理凭据设置的HTTP处理器
type Handler struct {
	store  credentials.Store
	logger *zap.Logger
}

// New 创建设置处理器
func New(store credentials.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:  store,
		logger: logger.With(zap.String("component", "settings-handler")),
	}
}

// RegisterRoutes 注册设置相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.handleGet)
	r.Put("/settings", h.handleUpdate)
}

// View is what the settings page shows. The raw key never leaves the server.
type View struct {
	APIKeyConfigured bool   `json:"apiKeyConfigured"`
	APIKey           string `json:"apiKey,omitempty"`
	Model            string `json:"model"`
	DefaultModel     string `json:"defaultModel"`
}

// UpdateRequest changes only the fields that are present. An empty string clears a field.
type UpdateRequest struct {
	APIKey *string `json:"apiKey"`
	Model  *string `json:"model"`
}

func newView(creds credentials.Credentials) View {
	return View{
		APIKeyConfigured: creds.HasAPIKey(),
		APIKey:           creds.MaskedAPIKey(),
		Model:            creds.ModelOrDefault(),
		DefaultModel:     credentials.DefaultModel,
	}
}

// handleGet 读取当前设置
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	creds, err := h.store.Credentials(r.Context())
	if err != nil {
		h.logger.Error("load credentials failed", zap.Error(err))
		_ = utils.RespondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, newView(creds))
}

// handleUpdate 更新设置
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	creds, err := h.store.Credentials(r.Context())
	if err != nil {
		h.logger.Error("load credentials failed", zap.Error(err))
		_ = utils.RespondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if req.APIKey != nil {
		creds.APIKey = *req.APIKey
	}
	if req.Model != nil {
		creds.Model = *req.Model
	}

	if err := h.store.Save(r.Context(), creds); err != nil {
		h.logger.Error("save credentials failed", zap.Error(err))
		_ = utils.RespondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	h.logger.Info("settings updated", zap.Bool("apiKeyConfigured", creds.HasAPIKey()), zap.String("model", creds.ModelOrDefault()))
	_ = utils.RespondJSON(w, http.StatusOK, newView(creds))
}
