// Package ai implements the model gateway used by ChartEye features on top of the
// OpenAI, Gemini and Anthropic SDKs.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"charteye/pkg/charteye"
)

// Provider names a model vendor.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

const (
	defaultAIBaseURL       = "https://api.openai.com/v1"
	defaultGeminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultOpenAIModel     = "gpt-4o"
	defaultOpenAIEmbedding = "text-embedding-3-small"
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultGeminiEmbedding = "text-embedding-004"
	defaultAnthropicModel  = "claude-3-5-sonnet-latest"
	defaultMaxOutputTokens = 1000
)

// ErrMissingAPIKey is returned by New when no key is configured.
var ErrMissingAPIKey = errors.New("ai api key is required")

// ErrEmbeddingUnsupported is returned by providers without an embeddings endpoint.
var ErrEmbeddingUnsupported = errors.New("embeddings are not supported by this provider")

// Config selects and configures the model provider.
type Config struct {
	Provider       Provider
	APIKey         string
	BaseURL        string
	Model          string
	VisionModel    string
	EmbeddingModel string
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

type backend interface {
	complete(ctx context.Context, model string, req charteye.CompletionRequest) (charteye.Completion, error)
	embed(ctx context.Context, model string, texts []string) ([][]float64, error)
}

// Client is a charteye.AIGateway backed by one provider.
type Client struct {
	provider       Provider
	backend        backend
	model          string
	visionModel    string
	embeddingModel string
	endpoint       string
	logger         *slog.Logger
}

var _ charteye.AIGateway = (*Client)(nil)

// New builds a client for cfg. The provider is inferred from the model name and base URL
// when cfg.Provider is empty.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	provider, err := ResolveProvider(cfg.Provider, cfg.BaseURL, cfg.Model)
	if err != nil {
		return nil, err
	}

	c := &Client{provider: provider, logger: logger.With("component", "ai", "provider", string(provider))}
	switch provider {
	case ProviderGemini:
		if shouldFallbackToGeminiDefaultBaseURL(cfg.BaseURL) && strings.TrimSpace(cfg.BaseURL) != "" {
			c.logger.Warn("gemini provider configured with openai base url; using gemini base url",
				"configured_base_url", cfg.BaseURL,
				"fallback_base_url", defaultGeminiBaseURL,
			)
		}
		b, err := newGeminiBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.backend, c.endpoint = b, b.endpoint
		c.model = defaultString(cfg.Model, defaultGeminiModel)
		c.embeddingModel = defaultString(cfg.EmbeddingModel, defaultGeminiEmbedding)
	case ProviderAnthropic:
		b, err := newAnthropicBackend(cfg)
		if err != nil {
			return nil, err
		}
		c.backend, c.endpoint = b, b.endpoint
		c.model = defaultString(cfg.Model, defaultAnthropicModel)
	default:
		b, err := newOpenAIBackend(cfg)
		if err != nil {
			return nil, err
		}
		c.backend, c.endpoint = b, b.endpoint
		c.model = defaultString(cfg.Model, defaultOpenAIModel)
		c.embeddingModel = defaultString(cfg.EmbeddingModel, defaultOpenAIEmbedding)
	}
	c.visionModel = defaultString(cfg.VisionModel, c.model)
	return c, nil
}

// Provider returns the resolved provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// Model returns the default completion model.
func (c *Client) Model() string {
	return c.model
}

// Complete runs one completion. Requests with images use the vision model.
func (c *Client) Complete(ctx context.Context, req charteye.CompletionRequest) (charteye.Completion, error) {
	model := c.model
	if len(req.Images) > 0 {
		model = c.visionModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxOutputTokens
	}
	logAIPromptDebug(c.logger, c.endpoint, model, req.SystemPrompt, req.UserPrompt)

	completion, err := c.backend.complete(ctx, model, req)
	if err != nil {
		return charteye.Completion{}, fmt.Errorf("%s completion failed: %w", c.provider, err)
	}
	completion.Content = strings.TrimSpace(completion.Content)
	if completion.Content == "" {
		return charteye.Completion{}, errors.New("ai response content is empty")
	}
	if completion.Model == "" {
		completion.Model = model
	}
	logAIResponseDebug(c.logger, c.endpoint, completion.Model, completion.Content)
	return completion, nil
}

// Embed returns one vector per text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.embeddingModel == "" {
		return nil, ErrEmbeddingUnsupported
	}
	vectors, err := c.backend.embed(ctx, c.embeddingModel, texts)
	if err != nil {
		return nil, fmt.Errorf("%s embeddings failed: %w", c.provider, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%s embeddings returned %d vectors for %d inputs", c.provider, len(vectors), len(texts))
	}
	return vectors, nil
}

// ResolveProvider picks the provider for the given settings.
func ResolveProvider(provider Provider, baseURL, model string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(string(provider)))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderGemini:
		return ProviderGemini, nil
	case ProviderAnthropic:
		return ProviderAnthropic, nil
	case "":
	default:
		return "", fmt.Errorf("unknown ai provider %q", provider)
	}
	if isGeminiRequest(baseURL, model) {
		return ProviderGemini, nil
	}
	if isAnthropicRequest(baseURL, model) {
		return ProviderAnthropic, nil
	}
	return ProviderOpenAI, nil
}

func isGeminiRequest(endpointURL, model string) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gemini") {
		return true
	}
	endpointLower := strings.ToLower(strings.TrimSpace(endpointURL))
	if endpointLower == "" {
		return false
	}
	return strings.Contains(endpointLower, "generativelanguage.googleapis.com") || strings.Contains(endpointLower, "/gemini")
}

func isAnthropicRequest(endpointURL, model string) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "claude") {
		return true
	}
	return strings.Contains(strings.ToLower(endpointURL), "anthropic.com")
}

// normalizeAIClientBaseURL converts a configured base URL or full endpoint into the
// API root the SDK clients expect, e.g. https://api.openai.com/v1.
func normalizeAIClientBaseURL(baseURL string) (string, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		trimmed = defaultAIBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	trimmed = strings.TrimRight(trimmed, "/")
	lower := strings.ToLower(trimmed)

	root := trimmed
	switch {
	case strings.HasSuffix(lower, "/chat/completions"):
		root = trimmed[:len(trimmed)-len("/chat/completions")]
	case strings.HasSuffix(lower, "/responses"):
		root = trimmed[:len(trimmed)-len("/responses")]
	case strings.HasSuffix(lower, "/v1"):
	default:
		root = trimmed + "/v1"
	}

	parsed, err := url.Parse(root)
	if err != nil {
		return "", fmt.Errorf("invalid base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid base_url scheme: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", errors.New("invalid base_url host")
	}
	return root, nil
}

func dataURL(img charteye.Image) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func defaultString(v, fallback string) string {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		return trimmed
	}
	return fallback
}

func logAIPromptDebug(logger *slog.Logger, endpoint, model, systemPrompt, userPrompt string) {
	logger.Debug("ai request prompt",
		"endpoint", strings.TrimSpace(endpoint),
		"model", strings.TrimSpace(model),
		"system_prompt", systemPrompt,
		"user_prompt", userPrompt,
	)
}

func logAIResponseDebug(logger *slog.Logger, endpoint, model, content string) {
	logger.Debug("ai raw response",
		"endpoint", strings.TrimSpace(endpoint),
		"model", model,
		"content_bytes", len(content),
		"content", content,
	)
}
