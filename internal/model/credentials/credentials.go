package credentials

import "strings"

// DefaultModel is used whenever no model identifier has been configured.
const DefaultModel = "microsoft/DialoGPT-medium"

// Credentials configure access to the inference endpoint.
type Credentials struct {
	APIKey string `json:"apiKey,omitempty"`
	Model  string `json:"model,omitempty"`
}

// HasAPIKey reports whether a usable key is configured.
func (c Credentials) HasAPIKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// ModelOrDefault returns the configured model or DefaultModel.
func (c Credentials) ModelOrDefault() string {
	if model := strings.TrimSpace(c.Model); model != "" {
		return model
	}
	return DefaultModel
}

// MaskedAPIKey hides all but the last four characters of the key.
func (c Credentials) MaskedAPIKey() string {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
