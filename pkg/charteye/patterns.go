package charteye

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const patternRecognitionSystemPrompt = `You are an expert in recognizing chart patterns for trading. Analyze the provided chart image and identify any technical patterns present.
For each pattern detected, provide:
1. Pattern name
2. Confidence level (0.0-1.0)
3. Trading signal (Bullish/Bearish/Neutral)
4. Brief description of the pattern

Also identify key support and resistance levels visible on the chart.

Format your response as JSON with the following structure:
{
  "patterns": [
    {"name": "Pattern Name", "probability": 0.85, "tradingSignal": "Bullish/Bearish/Neutral", "description": "Brief description"}
  ],
  "keyLevels": {"support": [123.45, 120.00], "resistance": [130.00, 135.50]},
  "summary": "Brief overall analysis of the patterns detected"
}`

const patternRecognitionUserPrompt = "Identify the chart patterns in this image with confidence levels."

// ChartPattern is one detected chart formation.
type ChartPattern struct {
	Name          string  `json:"name"`
	Probability   float64 `json:"probability"`
	TradingSignal string  `json:"tradingSignal"`
	Description   string  `json:"description"`
}

// KeyLevels lists support and resistance prices.
type KeyLevels struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

// PatternRecognition is the result of scanning a chart for formations.
type PatternRecognition struct {
	Patterns  []ChartPattern `json:"patterns"`
	KeyLevels KeyLevels      `json:"keyLevels"`
	Summary   string         `json:"summary"`
	CreatedAt string         `json:"createdAt"`
	Provenance
}

var syntheticPatternCatalog = []ChartPattern{
	{Name: "Head and Shoulders", TradingSignal: "Bearish", Description: "A reversal pattern consisting of three peaks, with the middle peak being the highest."},
	{Name: "Double Bottom", TradingSignal: "Bullish", Description: "A reversal pattern where price makes two lows at approximately the same level."},
	{Name: "Cup and Handle", TradingSignal: "Bullish", Description: "A bullish continuation pattern resembling a cup with a handle."},
	{Name: "Bull Flag", TradingSignal: "Bullish", Description: "A consolidation pattern that occurs after a strong upward movement."},
	{Name: "Falling Wedge", TradingSignal: "Bullish", Description: "A bullish pattern formed by converging trendlines, with both sloping downward."},
}

// RecognizePatterns identifies chart formations and key levels in an image.
func (c *Core) RecognizePatterns(ctx context.Context, image Image) (*PatternRecognition, error) {
	if len(image.Data) == 0 {
		return nil, NewError(ErrCodeInvalidInput, "Missing file")
	}
	contentType, err := validateChartUpload(&ChartUpload{ContentType: image.MIMEType, Data: image.Data})
	if err != nil {
		return nil, err
	}
	image.MIMEType = contentType

	outcome := complete(ctx, c, CompletionRequest{
		Feature:      "pattern_recognition",
		SystemPrompt: patternRecognitionSystemPrompt,
		UserPrompt:   patternRecognitionUserPrompt,
		Images:       []Image{image},
		MaxTokens:    1000,
		JSON:         true,
	}, parsePatternRecognition, c.syntheticPatternRecognition)

	result := shape(outcome)
	result.CreatedAt = c.timestamp()
	return &result, nil
}

type patternPayload struct {
	Patterns []struct {
		Name          flexString `json:"name"`
		Probability   flexFloat  `json:"probability"`
		TradingSignal flexString `json:"tradingSignal"`
		Description   flexString `json:"description"`
	} `json:"patterns"`
	KeyLevels struct {
		Support    []flexFloat `json:"support"`
		Resistance []flexFloat `json:"resistance"`
	} `json:"keyLevels"`
	Summary flexString `json:"summary"`
}

func parsePatternRecognition(completion Completion) (PatternRecognition, error) {
	var payload patternPayload
	if err := json.Unmarshal([]byte(cleanupModelJSON(completion.Content)), &payload); err != nil {
		return PatternRecognition{}, modelJSONError("pattern_recognition", err)
	}

	result := PatternRecognition{
		Patterns: make([]ChartPattern, 0, len(payload.Patterns)),
		KeyLevels: KeyLevels{
			Support:    priceLevels(payload.KeyLevels.Support),
			Resistance: priceLevels(payload.KeyLevels.Resistance),
		},
		Summary: defaultString(string(payload.Summary), "No summary provided."),
	}
	for _, p := range payload.Patterns {
		name := strings.TrimSpace(string(p.Name))
		if name == "" {
			continue
		}
		probability := float64(p.Probability)
		if probability > 1 && probability <= 100 {
			probability /= 100
		}
		result.Patterns = append(result.Patterns, ChartPattern{
			Name:          name,
			Probability:   round2(clamp(probability, 0, 1)),
			TradingSignal: defaultString(string(p.TradingSignal), "Neutral"),
			Description:   defaultString(string(p.Description), "No description provided."),
		})
	}
	sortPatterns(result.Patterns)
	return result, nil
}

func priceLevels(values []flexFloat) []float64 {
	levels := make([]float64, 0, len(values))
	for _, v := range values {
		if v <= 0 {
			continue
		}
		levels = append(levels, decimal.NewFromFloat(float64(v)).Round(2).InexactFloat64())
	}
	return levels
}

func sortPatterns(patterns []ChartPattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Probability > patterns[j].Probability
	})
}

func (c *Core) syntheticPatternRecognition(reason FallbackReason) PatternRecognition {
	if reason != ReasonUnavailable {
		return PatternRecognition{
			Patterns: []ChartPattern{{
				Name:          "Double Top",
				Probability:   0.75,
				TradingSignal: "Bearish",
				Description:   "A reversal pattern forming after an uptrend, consisting of two peaks at approximately the same level.",
			}},
			KeyLevels: KeyLevels{
				Support:    []float64{105.50, 100.00},
				Resistance: []float64{115.25, 120.50},
			},
			Summary: "The chart shows a Double Top pattern which indicates a potential reversal of the current uptrend. Key support levels should be monitored for confirmation.",
		}
	}

	count := c.synth.intn(3) + 1
	pool := append([]ChartPattern(nil), syntheticPatternCatalog...)
	patterns := make([]ChartPattern, 0, count)
	for i := 0; i < count && len(pool) > 0; i++ {
		idx := c.synth.intn(len(pool))
		pattern := pool[idx]
		pattern.Probability = c.syntheticProbability()
		patterns = append(patterns, pattern)
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	sortPatterns(patterns)

	phrase := "a pattern"
	if len(patterns) > 1 {
		phrase = "multiple patterns"
	}
	return PatternRecognition{
		Patterns: patterns,
		KeyLevels: KeyLevels{
			Support:    []float64{c.syntheticLevel(0, 100), c.syntheticLevel(0, 90)},
			Resistance: []float64{c.syntheticLevel(100, 210), c.syntheticLevel(150, 270)},
		},
		Summary: fmt.Sprintf("The chart displays %s with %s being the most prominent. This suggests a %s bias in the near term.",
			phrase, patterns[0].Name, strings.ToLower(patterns[0].TradingSignal)),
	}
}

// syntheticLevel returns a price in [lo, hi) truncated to one decimal.
func (c *Core) syntheticLevel(lo, hi float64) float64 {
	return decimal.NewFromFloat(c.synth.float(lo, hi)).Truncate(1).InexactFloat64()
}
