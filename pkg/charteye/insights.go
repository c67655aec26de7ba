package charteye

import (
	"context"
	"strings"
)

const tradingInsightsSystemPrompt = `You are a master retail trader with years of experience in the markets. You've made millions by staying patient, observant, and disciplined. Your approach combines technical analysis, market psychology, and risk management.

Your goal is to help traders with practical, actionable advice. Focus on:
- Providing specific trading strategies and setups
- Explaining technical analysis concepts clearly
- Teaching proper risk management techniques
- Helping with market psychology and emotional control
- Being realistic about market expectations and potential returns

When giving advice, be specific but also explain the reasoning behind your suggestions. Help traders develop their own skills rather than just following your signals.

FORMATTING GUIDELINES:
1. Use clear paragraph breaks between different thoughts or sections.
2. Use "- " for bullet lists and "1. " for numbered steps, each list preceded by a blank line.
3. Use fenced code blocks for indicator formulas or calculations.
4. Use *asterisks* for emphasis and backticks for technical terms.
5. Keep paragraphs concise (3-5 lines) and focused.

Always emphasize proper risk management and include specific examples where possible.`

const tradingInsightsFallback = "As a seasoned trader, I've learned that the most important aspect of trading is risk management. " +
	"Always define your risk before entering a position, and never risk more than 1-2% of your account on a single trade.\n\n" +
	"This approach has helped me stay in the game during tough market periods and capitalize on opportunities when they arise.\n\n" +
	"Here are the key risk management principles I follow:\n\n" +
	"- Setting stop losses before entering trades\n" +
	"- Position sizing based on account percentage rather than fixed amounts\n" +
	"- Diversifying across different assets and strategies\n" +
	"- Never averaging down on losing positions\n\n" +
	"The formula for position sizing is actually quite simple:\n\n" +
	"```\nPosition Size = Account Size × Risk Percentage ÷ Stop Loss Distance\n```\n\n" +
	"For example, if you have a $10,000 account, are willing to risk 1%, and your stop loss is 50 pips away, " +
	"your position size would be adjusted to risk exactly $100 on that trade.\n\n" +
	"What specific trading challenge are you facing right now?"

// TradingInsight is a chat answer from the trading mentor.
type TradingInsight struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	Provenance
}

// TradingInsights answers a free-form trading question.
func (c *Core) TradingInsights(ctx context.Context, message string) (*TradingInsight, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, NewError(ErrCodeInvalidInput, "Missing message content")
	}
	outcome := complete(ctx, c, CompletionRequest{
		Feature:      "trading_insights",
		SystemPrompt: tradingInsightsSystemPrompt,
		UserPrompt:   message,
		MaxTokens:    1000,
		Temperature:  temperature(0.7),
	}, func(completion Completion) (string, error) {
		return strings.TrimSpace(completion.Content), nil
	}, func(FallbackReason) string {
		return tradingInsightsFallback
	})

	insight := &TradingInsight{
		Response:   outcome.Value,
		Timestamp:  c.timestamp(),
		Provenance: outcome.Provenance(),
	}
	return insight, nil
}
