package ai

import (
	"context"
	"encoding/base64"
	"strings"

	"charteye/pkg/charteye"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com"

type anthropicBackend struct {
	client   anthropic.Client
	endpoint string
}

func newAnthropicBackend(cfg Config) (*anthropicBackend, error) {
	endpoint := defaultAnthropicBaseURL
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(cfg.APIKey),
		anthropicoption.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" && !isOpenAIHost(baseURL) {
		endpoint = strings.TrimRight(baseURL, "/")
		opts = append(opts, anthropicoption.WithBaseURL(endpoint+"/"))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, anthropicoption.WithHTTPClient(cfg.HTTPClient))
	}
	return &anthropicBackend{client: anthropic.NewClient(opts...), endpoint: endpoint}, nil
}

func (b *anthropicBackend) complete(ctx context.Context, model string, req charteye.CompletionRequest) (charteye.Completion, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Images)+1)
	for _, img := range req.Images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.UserPrompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	message, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return charteye.Completion{}, err
	}
	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return charteye.Completion{Model: string(message.Model), Content: text.String()}, nil
}

func (b *anthropicBackend) embed(context.Context, string, []string) ([][]float64, error) {
	return nil, ErrEmbeddingUnsupported
}
