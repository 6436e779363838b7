package export

import (
	"encoding/json"
	"io"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
)

// JSONExporter exports snapshots as indented JSON.
type JSONExporter struct{}

// Export writes snapshot as JSON.
func (e *JSONExporter) Export(snapshot chat.Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}

// Extension returns the file extension for this format.
func (e *JSONExporter) Extension() string {
	return "json"
}

// ContentType returns the MIME type for this format.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}
