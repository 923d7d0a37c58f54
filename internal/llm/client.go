// Package llm turns feedback into change plans using a language-model backend.
//
// The package is split across several files:
//   - client.go: Client interface, provider selection and the New factory
//   - anthropic.go, openai.go, ollama.go: backend implementations
//   - retry.go: backoff, circuit breaker and concurrency limiting
//   - json_parser.go, plan.go: tolerant parsing of model output into plans
//   - prompt.go, generator.go: prompt construction and the plan generator
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Provider names a supported backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
)

// IsValid checks if the provider is one of the supported backends
func (p Provider) IsValid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama:
		return true
	}
	return false
}

// ErrNoAPIKey is returned when a hosted backend has no credentials.
var ErrNoAPIKey = errors.New("API key not set")

// Params tunes a single generation call. Nil fields use backend defaults.
type Params struct {
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
	Stop        []string
	// System is an optional system prompt.
	System string
	// JSON asks the backend for a JSON object when it supports that.
	JSON bool
}

// Client is the interface every backend implements.
type Client interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
	// Name identifies the backend and model for logs and status output.
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	Provider Provider
	Model    string
	// BaseURL overrides the API endpoint (required for Ollama unless the
	// default local address is used).
	BaseURL string
	// APIKey overrides the provider's environment variable.
	APIKey string
	Retry  RetryConfig
}

// Default models per provider.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultOllamaModel    = "llama3.2:latest"
	DefaultOllamaBaseURL  = "http://localhost:11434"
)

// New creates the client named by cfg.Provider, wrapped with retries.
func New(cfg Config) (Client, error) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderAnthropic
	}
	if !cfg.Provider.IsValid() {
		return nil, fmt.Errorf("unknown LLM provider %q (want anthropic, openai or ollama)", cfg.Provider)
	}

	retry := cfg.Retry
	if retry == (RetryConfig{}) {
		retry = DefaultRetryConfig()
	}

	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		client, err = NewAnthropicClient(apiKey(cfg.APIKey, "ANTHROPIC_API_KEY"), cfg.Model, cfg.BaseURL)
	case ProviderOpenAI:
		client, err = NewOpenAIClient(apiKey(cfg.APIKey, "OPENAI_API_KEY"), cfg.Model, cfg.BaseURL)
	case ProviderOllama:
		client, err = NewOllamaClient(cfg.BaseURL, cfg.Model)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(client, NewRetrier(retry)), nil
}

func apiKey(explicit, envVar string) string {
	if explicit != "" {
		return explicit
	}
	return strings.TrimSpace(os.Getenv(envVar))
}

// retryingClient runs every Generate call through a Retrier.
type retryingClient struct {
	inner   Client
	retrier *Retrier
}

// WithRetry wraps c so each call gets backoff, circuit breaking and
// concurrency limiting.
func WithRetry(c Client, r *Retrier) Client {
	return &retryingClient{inner: c, retrier: r}
}

func (c *retryingClient) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	var out string
	err := c.retrier.Do(ctx, "generate", func(attemptCtx context.Context) error {
		resp, err := c.inner.Generate(attemptCtx, prompt, params)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	return out, err
}

func (c *retryingClient) Name() string {
	return c.inner.Name()
}
