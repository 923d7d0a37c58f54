package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 8192

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a client. An empty model uses
// DefaultAnthropicModel; baseURL is only set for tests and proxies.
func NewAnthropicClient(apiKey, model, baseURL string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY: %w", ErrNoAPIKey)
	}
	if model == "" {
		model = DefaultAnthropicModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are handled by Retrier.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)

	slog.Debug("Initializing Anthropic client", "model", model)
	return &AnthropicClient{client: &client, model: model}, nil
}

// Generate implements Client.
func (a *AnthropicClient) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	start := time.Now()

	maxTokens := defaultMaxTokens
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if params.System != "" {
		req.System = []anthropic.TextBlockParam{{Text: params.System}}
	}
	if params.Temperature != nil {
		req.Temperature = anthropic.Float(float64(*params.Temperature))
	}
	if params.TopP != nil {
		req.TopP = anthropic.Float(float64(*params.TopP))
	}
	if len(params.Stop) > 0 {
		req.StopSequences = params.Stop
	}

	resp, err := a.client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	slog.Debug("Anthropic call complete",
		"model", a.model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", time.Since(start))

	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return text.String(), nil
}

// Name implements Client.
func (a *AnthropicClient) Name() string {
	return "anthropic/" + a.model
}
