package chat

import "time"

// State gates submissions: only an idle session accepts a new question.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingResponse State = "awaitingResponse"
)

// Snapshot is the read a conversation view performs before rendering.
type Snapshot struct {
	SessionID string    `json:"sessionId" yaml:"sessionId"`
	State     State     `json:"state" yaml:"state"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	Messages  []Message `json:"messages" yaml:"messages"`
}

// Typing reports whether the view should show the typing indicator.
func (s Snapshot) Typing() bool {
	return s.State == StateAwaitingResponse
}
