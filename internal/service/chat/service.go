package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/credentials"
)

var ErrSessionNotFound = errors.New("session not found")

// Config wires collaborators shared by every session the service opens.
type Config struct {
	Credentials credentials.Source
	Generator   Generator
	Fallback    Responder
	Logger      *zap.Logger
	Clock       func() time.Time

	// SessionTTL evicts a session once no view has been attached and no
	// message appended for this long. Zero keeps sessions until closed.
	SessionTTL time.Duration
	// SweepInterval is how often abandoned sessions are looked for.
	// Defaults to SessionTTL/2, at most one minute.
	SweepInterval time.Duration
}

// Service keeps the live sessions, one per mounted conversation view.
type Service struct {
	cfg    Config
	logger *zap.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	janitorDone chan struct{}

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService bootstraps the in-memory session registry.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:      cfg,
		logger:   cfg.Logger.With(zap.String("component", "chat")),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}

	if cfg.SessionTTL > 0 {
		interval := cfg.SweepInterval
		if interval <= 0 {
			interval = min(cfg.SessionTTL/2, time.Minute)
		}
		s.janitorDone = make(chan struct{})
		go s.janitor(interval)
	}
	return s
}

func (s *Service) janitor(interval time.Duration) {
	defer close(s.janitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}

// EvictIdle closes every session that has had no view attached and no
// activity for SessionTTL, and returns how many were removed.
func (s *Service) EvictIdle() int {
	ttl := s.cfg.SessionTTL
	if ttl <= 0 {
		return 0
	}
	now := s.cfg.Clock()

	s.mu.Lock()
	var expired []*Session
	for id, session := range s.sessions {
		last, idle := session.idleSince()
		if idle && now.Sub(last) >= ttl {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		session.Close()
		s.logger.Info("abandoned session evicted", zap.String("session", session.ID()))
	}
	return len(expired)
}

// CreateSession opens a new conversation.
func (s *Service) CreateSession(_ context.Context) (*Session, error) {
	session := NewSession(s.ctx, Options{
		ID:          uuid.NewString(),
		Credentials: s.cfg.Credentials,
		Generator:   s.cfg.Generator,
		Fallback:    s.cfg.Fallback,
		Logger:      s.cfg.Logger,
		Clock:       s.cfg.Clock,
	})

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("session", session.ID()))
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Submit forwards text to the session's Submit.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (*Turn, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Submit(text)
}

// LoadTranscript returns the messages of the session in display order.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Messages(), nil
}

// Snapshot returns the session state together with its transcript.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (chat.Snapshot, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// CloseSession discards the conversation.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	s.logger.Info("session closed", zap.String("session", sessionID))
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown closes every session and waits for in-flight lookups until ctx expires.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	s.cancel()
	if s.janitorDone != nil {
		<-s.janitorDone
	}

	done := make(chan struct{})
	go func() {
		for _, session := range sessions {
			session.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
