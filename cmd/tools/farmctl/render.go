package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/farm-assistant/backend/internal/export"
	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("34")).
			MarginBottom(1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("70")).
			Bold(true)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	contentStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Width(80).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func renderTranscript(w io.Writer, snapshot chat.Snapshot) error {
	if _, err := fmt.Fprintln(w, titleStyle.Render("Farm AI Assistant")); err != nil {
		return err
	}

	for _, msg := range snapshot.Messages {
		speaker := userStyle.Render("You")
		if msg.IsAssistant() {
			speaker = assistantStyle.Render("Assistant")
		}
		header := fmt.Sprintf("%s %s", speaker, timeStyle.Render(msg.CreatedAt.Format(export.ClockFormat)))
		if _, err := fmt.Fprintf(w, "%s\n%s\n", header, contentStyle.Render(msg.Content)); err != nil {
			return err
		}
	}

	if snapshot.Typing() {
		_, err := fmt.Fprintln(w, timeStyle.Render("Assistant is typing..."))
		return err
	}
	return nil
}
