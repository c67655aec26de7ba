package charteye

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultAITimeout = 2 * time.Minute

// Image is an inline image attached to a completion request.
type Image struct {
	MIMEType string
	Data     []byte
}

// CompletionRequest is one bounded call to the model gateway.
type CompletionRequest struct {
	Feature      string
	SystemPrompt string
	UserPrompt   string
	Images       []Image
	MaxTokens    int
	Temperature  *float64
	JSON         bool
}

// Completion is the raw text returned by the model gateway.
type Completion struct {
	Model   string
	Content string
}

// Completer produces text completions.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// AIGateway is the external model service used by every analysis feature.
type AIGateway interface {
	Completer
	Embedder
}

// ObjectStore persists uploaded chart images and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// PaymentProvider creates checkout links and reports order states.
type PaymentProvider interface {
	CreatePaymentLink(ctx context.Context, userID string) (string, error)
	OrderState(ctx context.Context, orderID string) (string, error)
}

var errEmptyCompletion = errors.New("ai response content is empty")

// complete runs one gateway call and converts every failure into a synthetic value.
func complete[T any](ctx context.Context, c *Core, req CompletionRequest, parse func(Completion) (T, error), synth func(FallbackReason) T) Outcome[T] {
	if c.ai == nil {
		c.logger.Debug("ai gateway not configured; using synthetic result", "feature", req.Feature)
		return synthetic(synth, ReasonUnavailable)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.aiTimeout)
	defer cancel()

	start := c.now()
	completion, err := c.ai.Complete(callCtx, req)
	if err == nil && strings.TrimSpace(completion.Content) == "" {
		err = errEmptyCompletion
	}
	if err != nil {
		c.logger.Warn("ai gateway call failed; using synthetic result",
			"feature", req.Feature,
			"duration_ms", c.now().Sub(start).Milliseconds(),
			"err", err,
		)
		return synthetic(synth, ReasonUpstream)
	}

	value, err := parse(completion)
	if err != nil {
		c.logger.Warn("ai response rejected; using synthetic result",
			"feature", req.Feature,
			"model", completion.Model,
			"err", err,
		)
		return synthetic(synth, ReasonMalformed)
	}
	c.logger.Info("ai gateway call succeeded",
		"feature", req.Feature,
		"model", completion.Model,
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)
	return Outcome[T]{Value: value, Origin: OriginModel}
}

func synthetic[T any](synth func(FallbackReason) T, reason FallbackReason) Outcome[T] {
	return Outcome[T]{Value: synth(reason), Origin: OriginSynthetic, Reason: reason}
}

func temperature(v float64) *float64 {
	return &v
}

func cleanupModelJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		lines := strings.Split(trimmed, "\n")
		if len(lines) >= 2 {
			lines = lines[1:]
			if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
				lines = lines[:len(lines)-1]
			}
			trimmed = strings.Join(lines, "\n")
		}
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		trimmed = trimmed[start : end+1]
	}
	return strings.TrimSpace(trimmed)
}

func modelJSONError(feature string, err error) error {
	return fmt.Errorf("%s: model returned invalid JSON: %w", feature, err)
}
