// Package app assembles the services shared by the API server and farmctl.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/config"
	"github.com/zhouzirui/farm-assistant/backend/internal/handler"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/credentials"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/suggestion"
	"github.com/zhouzirui/farm-assistant/backend/internal/repository/kv"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/fallback"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/inference"
)

// App holds the wired services.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Store       *kv.Store
	Credentials credentials.Store
	Suggestions suggestion.Store
	Fallback    *fallback.Responder
	Inference   *inference.Client
	Chat        *chat.Service
}

// New opens the settings store and builds every service from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	responder, err := newResponder(cfg.Fallback)
	if err != nil {
		return nil, err
	}

	store, err := kv.Open(ctx, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}
	logger.Info("settings store opened", zap.String("path", cfg.Store.Path))

	creds := credentials.NewKVStore(store)
	client := inference.NewClient(inference.Config{
		BaseURL:      cfg.Inference.BaseURL,
		MaxNewTokens: cfg.Inference.MaxNewTokens,
		Temperature:  cfg.Inference.Temperature,
		Timeout:      cfg.Inference.Timeout,
	}, logger)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Credentials: creds,
		Suggestions: suggestion.NewMemoryStore(suggestion.Seed()),
		Fallback:    responder,
		Inference:   client,
		Chat: chat.NewService(chat.Config{
			Credentials: creds,
			Generator:   client,
			Fallback:    responder,
			Logger:      logger,

			SessionTTL:    cfg.Session.TTL,
			SweepInterval: cfg.Session.SweepInterval,
		}),
	}, nil
}

func newResponder(cfg config.FallbackConfig) (*fallback.Responder, error) {
	pool := fallback.DefaultPool()
	if cfg.PoolFile != "" {
		loaded, err := fallback.LoadPool(cfg.PoolFile)
		if err != nil {
			return nil, err
		}
		pool = loaded
	}
	if cfg.Seed != 0 {
		return fallback.NewSeeded(pool, cfg.Seed), nil
	}
	return fallback.NewResponder(pool, nil), nil
}

// Router returns the HTTP surface over the app's services.
func (a *App) Router() http.Handler {
	return handler.NewRouter(handler.Deps{
		Chat:        a.Chat,
		Credentials: a.Credentials,
		Suggestions: a.Suggestions,
		Logger:      a.Logger,
	})
}

// Close ends every session, waiting for in-flight turns until ctx expires,
// then closes the settings store.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Chat.Shutdown(ctx), a.Store.Close())
}
