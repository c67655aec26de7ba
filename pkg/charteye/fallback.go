package charteye

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Origin tags where a result came from.
type Origin string

const (
	OriginModel     Origin = "model"
	OriginSynthetic Origin = "synthetic"
)

// FallbackReason explains why a synthetic result was produced.
type FallbackReason string

const (
	ReasonNone        FallbackReason = ""
	ReasonUnavailable FallbackReason = "gateway_unavailable"
	ReasonUpstream    FallbackReason = "gateway_error"
	ReasonMalformed   FallbackReason = "malformed_response"
	ReasonNoData      FallbackReason = "no_data"
)

// Outcome is a feature result together with its origin.
type Outcome[T any] struct {
	Value  T
	Origin Origin
	Reason FallbackReason
}

// Synthetic reports whether the value was generated locally.
func (o Outcome[T]) Synthetic() bool {
	return o.Origin == OriginSynthetic
}

// Provenance returns the client-facing markers for the outcome.
func (o Outcome[T]) Provenance() Provenance {
	if o.Origin != OriginSynthetic {
		return Provenance{}
	}
	switch o.Reason {
	case ReasonUnavailable:
		return Provenance{Mock: true, DevMode: true}
	case ReasonNoData:
		return Provenance{Mock: true}
	default:
		return Provenance{Mock: true, APIError: true}
	}
}

// Provenance flags a response that was not produced by the model.
type Provenance struct {
	Mock     bool `json:"_mock,omitempty"`
	APIError bool `json:"_apiError,omitempty"`
	DevMode  bool `json:"_devMode,omitempty"`
}

func (p *Provenance) setProvenance(v Provenance) {
	*p = v
}

// shape copies the outcome value and stamps its provenance markers.
func shape[T any, P interface {
	*T
	setProvenance(Provenance)
}](o Outcome[T]) T {
	value := o.Value
	P(&value).setProvenance(o.Provenance())
	return value
}

// flexFloat decodes numbers that models sometimes emit as strings ("1.85", "55%").
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*f = 0
	case float64:
		*f = flexFloat(v)
	case string:
		cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%"))
		cleaned = strings.TrimPrefix(cleaned, "$")
		if cleaned == "" {
			*f = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return fmt.Errorf("invalid number %q", v)
		}
		*f = flexFloat(parsed)
	default:
		return fmt.Errorf("unsupported number type %T", raw)
	}
	return nil
}

// flexString decodes scalars of any kind into text.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = flexString(anyToString(raw))
	return nil
}

func anyToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// round1 and round2 map non-finite input to zero so results always encode.
func round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func percent(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64) + "%"
}

func normalizeLines(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

func defaultString(v, fallback string) string {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		return trimmed
	}
	return fallback
}

func defaultLines(items, fallback []string) []string {
	if normalized := normalizeLines(items); len(normalized) > 0 {
		return normalized
	}
	return append([]string{}, fallback...)
}

// flexLines decodes a list of text items that may arrive as a single string or
// as objects carrying the text under some key.
type flexLines []string

func (l *flexLines) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*l = nil
	case string:
		*l = flexLines{strings.TrimSpace(v)}
	case []any:
		out := make(flexLines, 0, len(v))
		for _, item := range v {
			if text := lineText(item); text != "" {
				out = append(out, text)
			}
		}
		*l = out
	default:
		return fmt.Errorf("unsupported list type %T", raw)
	}
	return nil
}

func lineText(item any) string {
	obj, ok := item.(map[string]any)
	if !ok {
		return anyToString(item)
	}
	for _, key := range []string{"text", "recommendation", "description", "content", "title"} {
		if text := anyToString(obj[key]); text != "" {
			return text
		}
	}
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if text, ok := obj[key].(string); ok && strings.TrimSpace(text) != "" {
			parts = append(parts, strings.TrimSpace(text))
		}
	}
	return strings.Join(parts, " - ")
}
