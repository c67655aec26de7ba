package charteye

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const indicatorMaxTokens = 2000

var indicatorLanguages = map[string]string{
	"pine": "Pine Script for TradingView",
	"mql4": "MQL4 for MetaTrader 4",
	"mql5": "MQL5 for MetaTrader 5",
}

var indicatorPlatforms = map[string]string{
	"pine": "TradingView",
	"mql4": "MetaTrader 4",
	"mql5": "MetaTrader 5",
}

// IndicatorRequest asks for generated indicator code. UserID is empty for anonymous callers.
type IndicatorRequest struct {
	UserID      string
	Name        string
	Language    string
	Description string
	IsPublic    bool
}

// GenerateIndicator produces indicator source code for the requested platform.
// The result is stored when the request carries a user.
func (c *Core) GenerateIndicator(ctx context.Context, req IndicatorRequest) (*IndicatorCode, error) {
	language := strings.ToLower(strings.TrimSpace(req.Language))
	description := strings.TrimSpace(req.Description)
	if language == "" || description == "" {
		return nil, NewError(ErrCodeInvalidInput, "Missing required fields")
	}
	languageName, ok := indicatorLanguages[language]
	if !ok {
		return nil, NewError(ErrCodeInvalidInput, fmt.Sprintf("Unsupported language %q", req.Language))
	}

	outcome := complete(ctx, c, CompletionRequest{
		Feature: "indicator_code",
		SystemPrompt: fmt.Sprintf("You are an expert programmer specializing ONLY in %s. Given a user request, generate clean, accurate, "+
			"and well-commented code for the trading indicator. Include comments explaining the logic. The output should ONLY be code "+
			"with comments, no explanations outside of code comments.", languageName),
		UserPrompt: description,
		MaxTokens:  indicatorMaxTokens,
	}, func(completion Completion) (string, error) {
		return stripCodeFence(completion.Content), nil
	}, func(reason FallbackReason) string {
		return syntheticIndicatorCode(languageName, description, reason)
	})

	indicator := &IndicatorCode{
		UserID:      strings.TrimSpace(req.UserID),
		Name:        defaultString(req.Name, indicatorName(description)),
		Description: description,
		Code:        outcome.Value,
		Language:    language,
		Platform:    indicatorPlatforms[language],
		IsPublic:    req.IsPublic,
		CreatedAt:   c.timestamp(),
		Provenance:  outcome.Provenance(),
	}
	if indicator.UserID == "" {
		return indicator, nil
	}

	indicator.ID = uuid.NewString()
	if _, err := c.db.Exec(
		`INSERT INTO indicator_codes (id, user_id, name, description, code, language, platform, is_public, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		indicator.ID, indicator.UserID, indicator.Name, indicator.Description, indicator.Code,
		indicator.Language, indicator.Platform, boolToInt(indicator.IsPublic), indicator.CreatedAt,
	); err != nil {
		return nil, WrapError(ErrCodeDatabase, "save indicator code", err)
	}
	return indicator, nil
}

// ListIndicators returns the indicator code saved by userID, newest first.
func (c *Core) ListIndicators(userID string) ([]IndicatorCode, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, NewError(ErrCodeInvalidInput, "user id is required")
	}
	rows, err := c.db.Query(
		`SELECT id, user_id, name, description, code, language, platform, is_public, created_at
		 FROM indicator_codes WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "list indicator codes", err)
	}
	defer rows.Close()

	result := []IndicatorCode{}
	for rows.Next() {
		var (
			item     IndicatorCode
			isPublic int
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.Name, &item.Description, &item.Code,
			&item.Language, &item.Platform, &isPublic, &item.CreatedAt); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan indicator code", err)
		}
		item.IsPublic = isPublic != 0
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrCodeDatabase, "list indicator codes", err)
	}
	return result, nil
}

func indicatorName(description string) string {
	name := strings.Join(strings.Fields(description), " ")
	if runes := []rune(name); len(runes) > 60 {
		name = strings.TrimSpace(string(runes[:60])) + "..."
	}
	return name
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func syntheticIndicatorCode(languageName, description string, reason FallbackReason) string {
	note := "This is a placeholder generated in development mode"
	if reason != ReasonUnavailable {
		note = "This is generated due to an API error"
	}
	return fmt.Sprintf("// Mock %s code for: %s\n// %s\n\n// Sample indicator code\nindicator(%q, overlay=true);\n\n"+
		"// Calculate some example values\nfloat value = ta.sma(close, 14);\n\n// Plot the result\nplot(value, color=color.blue, title=\"Example\")\n",
		languageName, description, note, description)
}
