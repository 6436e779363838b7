package chat

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one immutable turn of the transcript.
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Content   string    `json:"content" yaml:"content"`
	Sender    Sender    `json:"sender" yaml:"sender"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// IsAssistant reports whether the message was produced by the assistant.
func (m Message) IsAssistant() bool {
	return m.Sender == SenderAssistant
}

// WelcomeMessage greets the farmer when a session is opened.
const WelcomeMessage = "Hello! I'm your AI farming assistant. I'm here to help you with agricultural questions, farming techniques, crop management, and more. What would you like to know about farming today?"
