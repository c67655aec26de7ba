package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"charteye/pkg/charteye"
	"google.golang.org/genai"
)

type geminiBackend struct {
	client   *genai.Client
	endpoint string
}

func newGeminiBackend(ctx context.Context, cfg Config) (*geminiBackend, error) {
	clientConfig, err := buildGeminiClientConfig(cfg.BaseURL, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	return &geminiBackend{
		client:   client,
		endpoint: clientConfig.HTTPOptions.BaseURL + clientConfig.HTTPOptions.APIVersion,
	}, nil
}

func (b *geminiBackend) complete(ctx context.Context, model string, req charteye.CompletionRequest) (charteye.Completion, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	parts := []*genai.Part{{Text: req.UserPrompt}}
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	response, err := b.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return charteye.Completion{}, fmt.Errorf("gemini generate content failed: %w", err)
	}
	return charteye.Completion{
		Model:   defaultString(response.ModelVersion, model),
		Content: response.Text(),
	}, nil
}

func (b *geminiBackend) embed(ctx context.Context, model string, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}})
	}
	resp, err := b.client.Models.EmbedContent(ctx, model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content failed: %w", err)
	}
	vectors := make([][]float64, 0, len(resp.Embeddings))
	for _, embedding := range resp.Embeddings {
		if embedding == nil {
			vectors = append(vectors, nil)
			continue
		}
		v := make([]float64, len(embedding.Values))
		for i, x := range embedding.Values {
			v[i] = float64(x)
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func buildGeminiClientConfig(endpoint, apiKey string) (*genai.ClientConfig, error) {
	normalizedEndpoint := strings.TrimSpace(endpoint)
	if shouldFallbackToGeminiDefaultBaseURL(normalizedEndpoint) {
		normalizedEndpoint = defaultGeminiBaseURL
	}
	baseURL, apiVersion, err := parseGeminiBaseURLAndVersion(normalizedEndpoint)
	if err != nil {
		return nil, err
	}
	return &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: apiVersion,
		},
	}, nil
}

func shouldFallbackToGeminiDefaultBaseURL(endpoint string) bool {
	trimmed := strings.TrimSpace(endpoint)
	return trimmed == "" || isOpenAIHost(trimmed)
}

func isOpenAIHost(endpoint string) bool {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), "api.openai.com")
}

// parseGeminiBaseURLAndVersion splits an endpoint such as https://host/proxy/v1beta
// into the SDK base URL (https://host/proxy/) and API version (v1beta).
func parseGeminiBaseURLAndVersion(endpoint string) (string, string, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = defaultGeminiBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("invalid gemini endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", fmt.Errorf("invalid gemini endpoint scheme: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("invalid gemini endpoint host")
	}

	var segments []string
	if path := strings.Trim(parsed.Path, "/"); path != "" {
		segments = strings.Split(path, "/")
	}
	apiVersion := "v1beta"
	prefix := segments
	for idx, segment := range segments {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(segment)), "v1") {
			apiVersion = segment
			prefix = segments[:idx]
			break
		}
	}

	baseURL := fmt.Sprintf("%s://%s/", parsed.Scheme, parsed.Host)
	if basePath := strings.Trim(strings.Join(prefix, "/"), "/"); basePath != "" {
		baseURL += basePath + "/"
	}
	return baseURL, apiVersion, nil
}
