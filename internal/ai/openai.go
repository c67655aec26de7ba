package ai

import (
	"context"
	"errors"
	"fmt"

	"charteye/pkg/charteye"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

type openAIBackend struct {
	client   openai.Client
	endpoint string
}

func newOpenAIBackend(cfg Config) (*openAIBackend, error) {
	baseURL, err := normalizeAIClientBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL + "/"),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &openAIBackend{client: openai.NewClient(opts...), endpoint: baseURL}, nil
}

func (b *openAIBackend) complete(ctx context.Context, model string, req charteye.CompletionRequest) (charteye.Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	if len(req.Images) == 0 {
		messages = append(messages, openai.UserMessage(req.UserPrompt))
	} else {
		parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(req.UserPrompt)}
		for _, img := range req.Images {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(img),
			}))
		}
		messages = append(messages, openai.UserMessage(parts))
	}

	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(req.MaxTokens)),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return charteye.Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return charteye.Completion{}, errors.New("response has no choices")
	}
	return charteye.Completion{Model: resp.Model, Content: resp.Choices[0].Message.Content}, nil
}

func (b *openAIBackend) embed(ctx context.Context, model string, texts []string) ([][]float64, error) {
	resp, err := b.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}
	vectors := make([][]float64, len(texts))
	for i, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(vectors) {
			idx = i
		}
		if idx < len(vectors) {
			vectors[idx] = item.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vectors, nil
}
