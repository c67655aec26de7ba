package charteye

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const economicNewsSystemPrompt = `You are an expert financial analyst specializing in economic news interpretation. Analyze the provided news items and explain their potential impact on markets. Identify which sectors may be affected, market sentiment, and possible trading opportunities. Use the real-time market data provided to inform your analysis and recommend specific trading actions based on the news in the context of current market conditions. Format your response as JSON with this structure:
{
  "summary": "...",
  "marketSentiment": "Positive/Negative/Neutral/Mixed",
  "keyEvents": [{"event": "...", "impact": "...", "analysis": "..."}],
  "sectorImpact": [{"sector": "...", "impact": "...", "details": "..."}],
  "tradingOpportunities": ["..."]
}`

// KeyEvent is one market-moving event identified in the news.
type KeyEvent struct {
	Event    string `json:"event"`
	Impact   string `json:"impact"`
	Analysis string `json:"analysis"`
}

// SectorImpact is the expected effect of the news on one sector.
type SectorImpact struct {
	Sector  string `json:"sector"`
	Impact  string `json:"impact"`
	Details string `json:"details"`
}

// EconomicNewsAnalysis is the market interpretation of a batch of news items.
type EconomicNewsAnalysis struct {
	Summary              string         `json:"summary"`
	MarketSentiment      string         `json:"marketSentiment"`
	KeyEvents            []KeyEvent     `json:"keyEvents"`
	SectorImpact         []SectorImpact `json:"sectorImpact"`
	TradingOpportunities []string       `json:"tradingOpportunities"`
	MarketData           MarketSnapshot `json:"marketData"`
	Provenance
}

var (
	marketImpacts     = []string{"Positive", "Negative", "Neutral", "Mixed"}
	newsImpactSectors = []string{"Technology", "Finance", "Healthcare", "Retail", "Energy"}
)

// AnalyzeEconomicNews interprets news items against the current market snapshot.
func (c *Core) AnalyzeEconomicNews(ctx context.Context, newsItems []string) (*EconomicNewsAnalysis, error) {
	items := normalizeLines(newsItems)
	if len(items) == 0 {
		return nil, NewError(ErrCodeInvalidInput, "Missing or invalid news items")
	}
	snapshot := c.MarketSnapshot()
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "encode news items", err)
	}
	prompt := fmt.Sprintf("Analyze these economic news items and their market impact: %s\n\nHere is current market data to incorporate in your analysis:\n%s",
		encoded, formatMarketSnapshot(snapshot))

	outcome := complete(ctx, c, CompletionRequest{
		Feature:      "economic_news",
		SystemPrompt: economicNewsSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    1500,
		JSON:         true,
	}, parseEconomicNews, c.syntheticEconomicNews)

	result := shape(outcome)
	result.MarketData = snapshot
	return &result, nil
}

type economicNewsPayload struct {
	Summary         flexString `json:"summary"`
	MarketSentiment flexString `json:"marketSentiment"`
	KeyEvents       []struct {
		Event    flexString `json:"event"`
		Impact   flexString `json:"impact"`
		Analysis flexString `json:"analysis"`
	} `json:"keyEvents"`
	SectorImpact []struct {
		Sector  flexString `json:"sector"`
		Impact  flexString `json:"impact"`
		Details flexString `json:"details"`
	} `json:"sectorImpact"`
	TradingOpportunities flexLines `json:"tradingOpportunities"`
}

func parseEconomicNews(completion Completion) (EconomicNewsAnalysis, error) {
	var payload economicNewsPayload
	if err := json.Unmarshal([]byte(cleanupModelJSON(completion.Content)), &payload); err != nil {
		return EconomicNewsAnalysis{}, modelJSONError("economic_news", err)
	}
	result := EconomicNewsAnalysis{
		Summary:              defaultString(string(payload.Summary), "No summary provided."),
		MarketSentiment:      defaultString(string(payload.MarketSentiment), "Neutral"),
		KeyEvents:            []KeyEvent{},
		SectorImpact:         []SectorImpact{},
		TradingOpportunities: defaultLines(payload.TradingOpportunities, nil),
	}
	for _, e := range payload.KeyEvents {
		if strings.TrimSpace(string(e.Event)) == "" {
			continue
		}
		result.KeyEvents = append(result.KeyEvents, KeyEvent{
			Event:    strings.TrimSpace(string(e.Event)),
			Impact:   defaultString(string(e.Impact), "Neutral"),
			Analysis: defaultString(string(e.Analysis), "No analysis provided."),
		})
	}
	for _, s := range payload.SectorImpact {
		if strings.TrimSpace(string(s.Sector)) == "" {
			continue
		}
		result.SectorImpact = append(result.SectorImpact, SectorImpact{
			Sector:  strings.TrimSpace(string(s.Sector)),
			Impact:  defaultString(string(s.Impact), "Neutral"),
			Details: defaultString(string(s.Details), "No details provided."),
		})
	}
	if result.TradingOpportunities == nil {
		result.TradingOpportunities = []string{}
	}
	return result, nil
}

func (c *Core) syntheticEconomicNews(reason FallbackReason) EconomicNewsAnalysis {
	if reason != ReasonUnavailable {
		return EconomicNewsAnalysis{
			Summary:         "Recent economic news indicates mixed signals with inflation concerns balanced against solid employment data.",
			MarketSentiment: "Mixed",
			KeyEvents: []KeyEvent{
				{Event: "CPI Data Release", Impact: "Negative", Analysis: "Inflation came in higher than expected, raising concerns about aggressive monetary policy."},
				{Event: "GDP Growth Figures", Impact: "Positive", Analysis: "Economic growth exceeded forecasts, suggesting resilience despite higher interest rates."},
			},
			SectorImpact: []SectorImpact{
				{Sector: "Technology", Impact: "Negative", Details: "Higher rates typically pressure growth stocks valuation models."},
				{Sector: "Finance", Impact: "Positive", Details: "Banks may benefit from higher interest rate spreads if rates remain elevated."},
			},
			TradingOpportunities: []string{
				"Consider value stocks over growth if inflation remains persistent",
				"Financial sector may outperform in rising rate environment",
				"Watch for defensive stocks if economic uncertainty increases",
			},
		}
	}

	sectors := make([]SectorImpact, 0, len(newsImpactSectors))
	for _, sector := range newsImpactSectors {
		effect := "face headwinds due to"
		if c.synth.float(0, 1) > 0.5 {
			effect = "benefit from"
		}
		sectors = append(sectors, SectorImpact{
			Sector:  sector,
			Impact:  c.synth.pick(marketImpacts),
			Details: fmt.Sprintf("%s stocks may %s recent developments.", sector, effect),
		})
	}
	return EconomicNewsAnalysis{
		Summary:         "Recent economic data suggests moderate growth with inflation gradually declining. Central banks may maintain current monetary policy in the near term.",
		MarketSentiment: c.synth.pick(marketImpacts),
		KeyEvents: []KeyEvent{
			{Event: "Federal Reserve Meeting", Impact: c.synth.pick(marketImpacts), Analysis: "The Fed indicated a possible rate cut in the coming months if inflation continues to decline."},
			{Event: "Unemployment Report", Impact: c.synth.pick(marketImpacts), Analysis: "Job growth exceeded expectations, suggesting economic resilience."},
		},
		SectorImpact: sectors,
		TradingOpportunities: []string{
			"Consider defensive stocks if economic uncertainty increases",
			"Watch for opportunities in sectors benefiting from policy changes",
			"Monitor yield curve for potential shift in market direction",
		},
	}
}
