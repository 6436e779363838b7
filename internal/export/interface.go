// Package export renders a conversation snapshot in a downloadable format.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
)

// Exporter writes one snapshot to w.
type Exporter interface {
	Export(snapshot chat.Snapshot, w io.Writer) error
	Extension() string
	ContentType() string
}

// NewExporter creates an exporter for format.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, markdown)", format)
	}
}
