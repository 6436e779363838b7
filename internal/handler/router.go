package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/handler/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/handler/settings"
	"github.com/zhouzirui/farm-assistant/backend/internal/handler/stream"
	"github.com/zhouzirui/farm-assistant/backend/internal/handler/suggestion"
	"github.com/zhouzirui/farm-assistant/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/farm-assistant/backend/internal/middleware"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/credentials"
	suggestionModel "github.com/zhouzirui/farm-assistant/backend/internal/model/suggestion"
	chatService "github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/pkg/utils"
)

// Deps are the services the HTTP surface talks to.
type Deps struct {
	Chat        *chatService.Service
	Credentials credentials.Store
	Suggestions suggestionModel.Store
	Logger      *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Chat.Count(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		chat.New(deps.Chat, logger).RegisterRoutes(api)
		stream.New(deps.Chat, logger).RegisterRoutes(api)
		ws.NewWebSocketHandler(deps.Chat, logger).RegisterRoutes(api)
		suggestion.New(deps.Suggestions).RegisterRoutes(api)

		if deps.Credentials != nil {
			settings.New(deps.Credentials, logger).RegisterRoutes(api)
		}
	})

	return r
}
