// Package inference calls a remote text-generation endpoint for one answer.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL      = "https://api-inference.huggingface.co"
	DefaultMaxNewTokens = 150
	DefaultTemperature  = 0.7

	promptTemplate = "As a knowledgeable farming assistant, respond to this question about agriculture: {question}"

	// upstream error bodies are kept for logs only
	maxErrorBody = 4 << 10
)

// Config controls how requests are built and sent.
type Config struct {
	BaseURL      string
	MaxNewTokens int
	Temperature  float64
	// Timeout bounds one request. Zero leaves the transport default in place.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Parameters are the generation settings sent with every request.
type Parameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

// Request is the JSON body posted to the endpoint.
type Request struct {
	Inputs     string     `json:"inputs"`
	Parameters Parameters `json:"parameters"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

// Client wraps the text-generation endpoint.
type Client struct {
	baseURL    string
	params     Parameters
	timeout    time.Duration
	httpClient *http.Client
	template   prompt.ChatTemplate
	logger     *zap.Logger
}

// NewClient creates a client, filling unset config fields with defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxTokens := cfg.MaxNewTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxNewTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: baseURL,
		params: Parameters{
			MaxNewTokens:   maxTokens,
			Temperature:    temperature,
			ReturnFullText: false,
		},
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		template:   prompt.FromMessages(schema.FString, schema.UserMessage(promptTemplate)),
		logger:     logger.With(zap.String("component", "inference")),
	}
}

// BuildRequest embeds question in the farming-assistant instruction.
func (c *Client) BuildRequest(ctx context.Context, question string) (Request, error) {
	messages, err := c.template.Format(ctx, map[string]any{"question": question})
	if err != nil {
		return Request{}, fmt.Errorf("render prompt: %w", err)
	}
	if len(messages) == 0 || messages[0] == nil {
		return Request{}, fmt.Errorf("render prompt: no message produced")
	}
	return Request{Inputs: messages[0].Content, Parameters: c.params}, nil
}

// Endpoint returns the URL serving model.
func (c *Client) Endpoint(model string) string {
	return c.baseURL + "/models/" + strings.TrimLeft(model, "/")
}

// Generate sends question to model and returns the generated text.
// A successful call without generated text returns "" and a nil error;
// every other failure is an *UpstreamError.
func (c *Client) Generate(ctx context.Context, question, apiKey, model string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := c.BuildRequest(ctx, question)
	if err != nil {
		return "", &UpstreamError{Model: model, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &UpstreamError{Model: model, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(model), bytes.NewReader(body))
	if err != nil {
		return "", &UpstreamError{Model: model, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Model: model, Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("inference request rejected",
			zap.String("model", model),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(started)))
		return "", &UpstreamError{Model: model, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var generations []generation
	if err := json.NewDecoder(resp.Body).Decode(&generations); err != nil {
		return "", &UpstreamError{Model: model, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	if len(generations) == 0 || strings.TrimSpace(generations[0].GeneratedText) == "" {
		c.logger.Info("inference returned no text", zap.String("model", model), zap.Int("items", len(generations)))
		return "", nil
	}

	text := generations[0].GeneratedText
	c.logger.Debug("inference completed",
		zap.String("model", model),
		zap.Int("length", len(text)),
		zap.Duration("elapsed", time.Since(started)))
	return text, nil
}

// Start runs Generate in the background and returns its pending result.
func (c *Client) Start(ctx context.Context, question, apiKey, model string) *Task {
	return Go(func() (string, error) {
		return c.Generate(ctx, question, apiKey, model)
	})
}
