package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
)

// ClockFormat renders message times the way the chat window shows them.
const ClockFormat = "15:04"

// MarkdownExporter exports snapshots as a readable transcript.
type MarkdownExporter struct{}

// Export writes snapshot as Markdown.
func (e *MarkdownExporter) Export(snapshot chat.Snapshot, w io.Writer) error {
	var b strings.Builder

	b.WriteString("# Farm AI Assistant\n\n")
	fmt.Fprintf(&b, "Session `%s`, started %s\n\n", snapshot.SessionID, snapshot.CreatedAt.Format("2006-01-02 15:04"))

	for _, msg := range snapshot.Messages {
		speaker := "You"
		if msg.IsAssistant() {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "**%s** (%s)\n\n", speaker, msg.CreatedAt.Format(ClockFormat))
		for _, line := range strings.Split(msg.Content, "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if snapshot.Typing() {
		b.WriteString("_Assistant is typing..._\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Extension returns the file extension for this format.
func (e *MarkdownExporter) Extension() string {
	return "md"
}

// ContentType returns the MIME type for this format.
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown; charset=utf-8"
}
