package charteye

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"charteye/internal/news"
	"github.com/google/uuid"
)

const (
	defaultCurrency   = "XAU"
	newsRefreshPeriod = 15 * time.Minute
	headlineSource    = "Financial News"
)

var currencyCode = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

var currencyNames = map[string]string{
	"XAU": "Gold",
	"USD": "US Dollar",
	"EUR": "Euro",
	"GBP": "British Pound",
	"JPY": "Japanese Yen",
}

// NewsSource provides scraped news for the live feed and news chat.
type NewsSource interface {
	Digest() (news.Digest, error)
	Documents(limit int) ([]news.Document, error)
}

// NewsHeadline is one headline in the live feed.
type NewsHeadline struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// NewsAnalysis is one AI commentary card in the live feed.
type NewsAnalysis struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Currency  string `json:"currency,omitempty"`
}

// LiveNews is the live headline feed with its commentary.
type LiveNews struct {
	Headlines      []NewsHeadline `json:"headlines"`
	Analyses       []NewsAnalysis `json:"analyses"`
	LastUpdated    string         `json:"lastUpdated"`
	NextUpdateTime string         `json:"nextUpdateTime"`
	Provenance
}

type liveNewsSections struct {
	MarketSummary   string
	MarketImpact    string
	SectorAnalysis  string
	TrendPrediction string
}

// NormalizeCurrency upper-cases a currency code, defaulting to XAU.
func NormalizeCurrency(raw string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(raw))
	if currency == "" {
		return defaultCurrency, nil
	}
	if !currencyCode.MatchString(currency) {
		return "", NewError(ErrCodeInvalidInput, "Invalid currency")
	}
	return currency, nil
}

func currencyName(currency string) string {
	if name, ok := currencyNames[currency]; ok {
		return name
	}
	return currency
}

// LiveNews returns the latest headlines with currency-focused commentary.
func (c *Core) LiveNews(ctx context.Context, currency string) (*LiveNews, error) {
	currency, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	var digest news.Digest
	if c.news != nil {
		digest, err = c.news.Digest()
		if err != nil {
			c.logger.Warn("read news digest failed", "err", err)
			digest = news.Digest{}
		}
	}

	now := c.now().UTC()
	timestamp := now.Format(time.RFC3339)
	headlineTime := defaultString(digest.LastScrape, timestamp)
	headlines := make([]NewsHeadline, 0, len(digest.Headlines))
	for _, text := range digest.Headlines {
		headlines = append(headlines, NewsHeadline{
			ID:        uuid.NewString(),
			Text:      text,
			Source:    headlineSource,
			Timestamp: headlineTime,
		})
	}

	var outcome Outcome[liveNewsSections]
	if len(digest.Headlines) == 0 {
		c.logger.Info("no news headlines available; using synthetic commentary", "currency", currency)
		outcome = synthetic(syntheticLiveNews, ReasonNoData)
	} else {
		outcome = complete(ctx, c, CompletionRequest{
			Feature:      "live_news",
			SystemPrompt: "You are a financial analyst specializing in currency and market analysis. Provide concise, data-driven insights.",
			UserPrompt:   liveNewsPrompt(currency, digest),
			MaxTokens:    1000,
			Temperature:  temperature(0.7),
			JSON:         true,
		}, parseLiveNews, syntheticLiveNews)
	}

	sections := outcome.Value
	card := func(category, title, content string) NewsAnalysis {
		return NewsAnalysis{
			ID:        uuid.NewString(),
			Category:  category,
			Title:     fmt.Sprintf("%s %s", currency, title),
			Content:   content,
			Timestamp: timestamp,
			Currency:  currency,
		}
	}
	return &LiveNews{
		Headlines: headlines,
		Analyses: []NewsAnalysis{
			card("summary", "Market Summary", sections.MarketSummary),
			card("market-impact", "Market Impact Analysis", sections.MarketImpact),
			card("sector-analysis", "Sector Analysis", sections.SectorAnalysis),
			card("trend-prediction", "Trend Prediction", sections.TrendPrediction),
		},
		LastUpdated:    timestamp,
		NextUpdateTime: now.Add(newsRefreshPeriod).Format(time.RFC3339),
		Provenance:     outcome.Provenance(),
	}, nil
}

func liveNewsPrompt(currency string, digest news.Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following financial news headlines and snippets specifically for %s (%s):\n\n", currency, currencyName(currency))
	b.WriteString("Headlines:\n")
	b.WriteString(strings.Join(digest.Headlines, "\n"))
	b.WriteString("\n\n")
	if len(digest.Snippets) > 0 {
		b.WriteString("Additional Context:\n")
		b.WriteString(strings.Join(digest.Snippets, "\n"))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, `Please provide a comprehensive analysis including:
1. A brief market summary focusing on %[1]s
2. Market impact analysis specific to %[1]s
3. Sector analysis related to %[1]s
4. Short-term trend prediction for %[1]s

Format the response as a JSON object with the following structure:
{
  "marketSummary": "string",
  "marketImpact": "string",
  "sectorAnalysis": "string",
  "trendPrediction": "string"
}`, currency)
	return b.String()
}

func parseLiveNews(completion Completion) (liveNewsSections, error) {
	var payload struct {
		MarketSummary   flexString `json:"marketSummary"`
		Summary         flexString `json:"summary"`
		MarketImpact    flexString `json:"marketImpact"`
		SectorAnalysis  flexString `json:"sectorAnalysis"`
		TrendPrediction flexString `json:"trendPrediction"`
	}
	if err := json.Unmarshal([]byte(cleanupModelJSON(completion.Content)), &payload); err != nil {
		return liveNewsSections{}, modelJSONError("live_news", err)
	}
	return liveNewsSections{
		MarketSummary:   defaultString(string(payload.MarketSummary), defaultString(string(payload.Summary), "Summary not available")),
		MarketImpact:    defaultString(string(payload.MarketImpact), "Impact analysis not available"),
		SectorAnalysis:  defaultString(string(payload.SectorAnalysis), "Sector analysis not available"),
		TrendPrediction: defaultString(string(payload.TrendPrediction), "Trend prediction not available"),
	}, nil
}

func syntheticLiveNews(FallbackReason) liveNewsSections {
	return liveNewsSections{
		MarketSummary:   "Mock market summary data",
		MarketImpact:    "Mock market impact analysis",
		SectorAnalysis:  "Mock sector analysis",
		TrendPrediction: "Mock trend prediction",
	}
}
