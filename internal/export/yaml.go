package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/chat"
)

// YAMLExporter exports snapshots in YAML format.
type YAMLExporter struct{}

// Export writes snapshot as YAML.
func (e *YAMLExporter) Export(snapshot chat.Snapshot, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(snapshot)
}

// Extension returns the file extension for this format.
func (e *YAMLExporter) Extension() string {
	return "yaml"
}

// ContentType returns the MIME type for this format.
func (e *YAMLExporter) ContentType() string {
	return "application/yaml"
}
