package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/credentials"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/fallback"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/inference"
)

var (
	ErrEmptyInput    = errors.New("message is empty")
	ErrSessionBusy   = errors.New("session is awaiting a response")
	ErrSessionClosed = errors.New("session is closed")
)

// Generator starts one inference call.
type Generator interface {
	Start(ctx context.Context, question, apiKey, model string) *inference.Task
}

// Responder supplies a canned answer when no API key is configured.
type Responder interface {
	Reply() string
}

// Outcome records which branch produced the assistant reply of a turn.
type Outcome string

const (
	OutcomeInference       Outcome = "inference"
	OutcomeEmptyGeneration Outcome = "empty_generation"
	OutcomeUpstreamFailure Outcome = "upstream_failure"
	OutcomeNoCredentials   Outcome = "no_credentials"
)

// EventType distinguishes session notifications.
type EventType string

const (
	EventMessage EventType = "message"
	EventState   EventType = "state"
)

// Event notifies subscribers that the conversation changed.
type Event struct {
	Type      EventType     `json:"type"`
	SessionID string        `json:"sessionId"`
	State     chat.State    `json:"state"`
	Message   *chat.Message `json:"message,omitempty"`
}

// Turn is one accepted submission. It settles once the assistant reply is appended.
type Turn struct {
	Question chat.Message

	done    chan struct{}
	reply   chat.Message
	outcome Outcome
}

// Done is closed when the reply has been appended and the session is idle again.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the turn settles.
func (t *Turn) Wait() (chat.Message, Outcome) {
	<-t.done
	return t.reply, t.outcome
}

// Options wires a Session to its collaborators. Nil fields get defaults.
type Options struct {
	ID          string
	Credentials credentials.Source
	Generator   Generator
	Fallback    Responder
	Logger      *zap.Logger
	Clock       func() time.Time
	// EventBuffer sizes each subscriber channel.
	EventBuffer int
}

// Session owns one conversation and drives its request/response cycle.
// A session accepts a question only while idle; the reply lookup runs in
// the background and always returns the session to idle.
type Session struct {
	id        string
	createdAt time.Time

	creds     credentials.Source
	generator Generator
	fallback  Responder
	logger    *zap.Logger
	now       func() time.Time
	bufSize   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	state    chat.State
	closed   bool
	messages []chat.Message
	subs     map[int]chan Event
	nextSub  int

	// lastActive moves on every append and every subscribe/unsubscribe.
	lastActive time.Time
}

// NewSession opens a conversation seeded with the assistant welcome message.
// Lookups run under ctx until Close is called.
func NewSession(ctx context.Context, opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Credentials == nil {
		opts.Credentials = credentials.NewMemoryStore(credentials.Credentials{})
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Generator == nil {
		opts.Generator = inference.NewClient(inference.Config{}, opts.Logger)
	}
	if opts.Fallback == nil {
		opts.Fallback = fallback.NewResponder(nil, nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 16
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:        opts.ID,
		creds:     opts.Credentials,
		generator: opts.Generator,
		fallback:  opts.Fallback,
		logger:    opts.Logger.With(zap.String("component", "session"), zap.String("session", opts.ID)),
		now:       opts.Clock,
		bufSize:   opts.EventBuffer,
		ctx:       sessionCtx,
		cancel:    cancel,
		state:     chat.StateIdle,
		messages:  make([]chat.Message, 0, 16),
		subs:      make(map[int]chan Event),
	}

	welcome := s.appendLocked(chat.SenderAssistant, chat.WelcomeMessage)
	s.createdAt = welcome.CreatedAt
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Submit accepts a question. The user message is appended before Submit
// returns; the assistant reply follows once the returned Turn settles.
// Blank text yields ErrEmptyInput and a busy session yields ErrSessionBusy,
// neither of which changes the conversation.
func (s *Session) Submit(rawText string) (*Turn, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.state != chat.StateIdle {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}

	question := s.appendLocked(chat.SenderUser, text)
	s.state = chat.StateAwaitingResponse
	s.publishLocked(Event{Type: EventMessage, Message: &question})
	s.publishLocked(Event{Type: EventState})

	turn := &Turn{Question: question, done: make(chan struct{})}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.resolve(turn, rawText)
	return turn, nil
}

func (s *Session) resolve(turn *Turn, rawText string) {
	defer s.wg.Done()

	content, outcome := s.answer(rawText)

	s.mu.Lock()
	reply := s.appendLocked(chat.SenderAssistant, content)
	s.state = chat.StateIdle
	s.publishLocked(Event{Type: EventMessage, Message: &reply})
	s.publishLocked(Event{Type: EventState})
	s.mu.Unlock()

	turn.reply = reply
	turn.outcome = outcome
	close(turn.done)

	s.logger.Info("turn completed", zap.String("outcome", string(outcome)), zap.String("reply", reply.ID))
}

// answer picks the reply source for one turn. It never fails: every error
// becomes a fixed reply sentence.
func (s *Session) answer(question string) (string, Outcome) {
	creds, err := s.creds.Credentials(s.ctx)
	if err != nil {
		s.logger.Warn("credentials unavailable, answering from fallback pool", zap.Error(err))
		creds = credentials.Credentials{}
	}

	if !creds.HasAPIKey() {
		return s.fallback.Reply(), OutcomeNoCredentials
	}

	model := creds.ModelOrDefault()
	text, err := s.generator.Start(s.ctx, question, creds.APIKey, model).Wait()
	switch {
	case err != nil:
		s.logger.Warn("inference failed", zap.String("model", model), zap.Error(err))
		return fallback.TechnicalDifficultyReply, OutcomeUpstreamFailure
	case strings.TrimSpace(text) == "":
		return fallback.EmptyGenerationReply, OutcomeEmptyGeneration
	default:
		return text, OutcomeInference
	}
}

// appendLocked adds a message. Timestamps never go backwards.
func (s *Session) appendLocked(sender chat.Sender, content string) chat.Message {
	createdAt := s.now()
	if n := len(s.messages); n > 0 && createdAt.Before(s.messages[n-1].CreatedAt) {
		createdAt = s.messages[n-1].CreatedAt
	}

	msg := chat.Message{
		ID:        newMessageID(),
		Content:   content,
		Sender:    sender,
		CreatedAt: createdAt,
	}
	s.messages = append(s.messages, msg)
	s.lastActive = createdAt
	return msg
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// State returns the current session state.
func (s *Session) State() chat.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Messages returns a copy of the transcript in display order.
func (s *Session) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Message(nil), s.messages...)
}

// Snapshot returns state and transcript read atomically.
func (s *Session) Snapshot() chat.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chat.Snapshot{
		SessionID: s.id,
		State:     s.state,
		CreatedAt: s.createdAt,
		Messages:  append([]chat.Message(nil), s.messages...),
	}
}

// Subscribe registers for change events. Events are dropped for a subscriber
// whose buffer is full. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, s.bufSize)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.touchLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
				s.touchLocked()
			}
		})
	}
}

func (s *Session) touchLocked() {
	if now := s.now(); now.After(s.lastActive) {
		s.lastActive = now
	}
}

// idleSince reports the last activity and whether the session is abandoned:
// no view subscribed and no turn in flight.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive, !s.closed && len(s.subs) == 0 && s.state == chat.StateIdle
}

func (s *Session) publishLocked(ev Event) {
	ev.SessionID = s.id
	ev.State = s.state
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("subscriber lagging, event dropped", zap.Int("subscriber", id), zap.String("event", string(ev.Type)))
		}
	}
}

// Close ends the session. New submissions are rejected and subscribers are
// released; a lookup already in flight is cancelled and still settles.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.cancel()
}

// Wait blocks until every in-flight lookup has settled.
func (s *Session) Wait() {
	s.wg.Wait()
}
