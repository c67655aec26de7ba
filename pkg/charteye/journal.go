package charteye

import (
	"context"
	"encoding/json"
)

const journalSystemPrompt = `You are an expert trading coach analyzing a trader's journal entries. Identify patterns, strengths, weaknesses, and provide actionable recommendations to improve trading performance. Focus on psychological aspects, risk management, and strategy optimization. Format your response as JSON with the keys "strengths", "weaknesses", "patterns", "recommendations" (arrays of strings) and "summary" (string).`

// JournalEntry is one free-form trading journal record.
type JournalEntry map[string]any

// JournalAnalysis is coaching feedback derived from journal entries.
type JournalAnalysis struct {
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Patterns        []string `json:"patterns"`
	Recommendations []string `json:"recommendations"`
	Summary         string   `json:"summary"`
	Provenance
}

// AnalyzeJournal reviews trading journal entries.
func (c *Core) AnalyzeJournal(ctx context.Context, entries []JournalEntry) (*JournalAnalysis, error) {
	if len(entries) == 0 {
		return nil, NewError(ErrCodeInvalidInput, "Missing or invalid journal entries")
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "encode journal entries", err)
	}

	outcome := complete(ctx, c, CompletionRequest{
		Feature:      "trading_journal",
		SystemPrompt: journalSystemPrompt,
		UserPrompt:   "Analyze these trading journal entries: " + string(payload),
		MaxTokens:    1500,
		JSON:         true,
	}, parseJournalAnalysis, syntheticJournalAnalysis)

	result := shape(outcome)
	return &result, nil
}

type journalPayload struct {
	Strengths       flexLines  `json:"strengths"`
	Weaknesses      flexLines  `json:"weaknesses"`
	Patterns        flexLines  `json:"patterns"`
	Recommendations flexLines  `json:"recommendations"`
	Summary         flexString `json:"summary"`
}

func parseJournalAnalysis(completion Completion) (JournalAnalysis, error) {
	var payload journalPayload
	if err := json.Unmarshal([]byte(cleanupModelJSON(completion.Content)), &payload); err != nil {
		return JournalAnalysis{}, modelJSONError("trading_journal", err)
	}
	return JournalAnalysis{
		Strengths:       defaultLines(payload.Strengths, []string{}),
		Weaknesses:      defaultLines(payload.Weaknesses, []string{}),
		Patterns:        defaultLines(payload.Patterns, []string{}),
		Recommendations: defaultLines(payload.Recommendations, []string{"Keep journaling every trade with entry, exit and reasoning."}),
		Summary:         defaultString(string(payload.Summary), "Journal analysis completed."),
	}, nil
}

func syntheticJournalAnalysis(reason FallbackReason) JournalAnalysis {
	if reason == ReasonUnavailable {
		return JournalAnalysis{
			Strengths: []string{
				"Consistent use of stop losses",
				"Good trade planning",
				"Patience in entry execution",
			},
			Weaknesses: []string{
				"Frequently exiting profitable trades too early",
				"Overtrading during volatile market conditions",
				"Inconsistent position sizing",
			},
			Patterns: []string{
				"Most successful on trend-following strategies",
				"Better performance on longer timeframes",
				"Higher win rate in morning trading sessions",
			},
			Recommendations: []string{
				"Consider scaling out of profitable trades instead of full exits",
				"Implement a minimum wait time before entering trades during high volatility",
				"Standardize position sizing based on volatility",
			},
			Summary: "Your trading shows a solid foundation with good risk management. Main areas for improvement include holding winners longer and more consistent position sizing.",
		}
	}
	return JournalAnalysis{
		Strengths: []string{
			"Consistent application of trading plan",
			"Patience in waiting for setup confirmation",
			"Good record-keeping discipline",
		},
		Weaknesses: []string{
			"Tendency to move stop losses during trades",
			"Overtrading during drawdown periods",
			"Chasing entries after missing initial setup",
		},
		Patterns: []string{
			"Higher success rate with trend-following vs. counter-trend trades",
			"Better performance in less crowded markets",
			"Consistent weakness in holding winners long enough",
		},
		Recommendations: []string{
			"Implement a rule against moving stop losses once placed",
			"Add mandatory break after 3 consecutive losses",
			"Use trailing stops for winning trades to maximize gains",
			"Consider a trading checklist before each entry to ensure discipline",
		},
		Summary: "Your trading journal shows solid fundamentals but room for improvement in discipline and maximizing winners. Focus on letting profitable trades run longer and maintaining strict stop loss discipline.",
	}
}
