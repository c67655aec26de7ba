package charteye

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

const portfolioSystemPrompt = `You are an expert portfolio analyst. Analyze the provided portfolio holdings and provide insights on diversification, risk assessment, and recommendations for improvement. Format your response as JSON with this structure:
{
  "diversification": {"score": 7.5, "sectorExposure": [{"sector": "Technology", "percentage": "40%"}], "riskLevel": "Moderate"},
  "recommendations": ["..."],
  "riskAssessment": {"volatility": 0.8, "sharpeRatio": 0.7, "betaAverage": 1.1},
  "summary": "..."
}`

// Holding is one position in a portfolio.
type Holding struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Shares       decimal.Decimal `json:"shares"`
	EntryPrice   decimal.Decimal `json:"entryPrice"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Sector       string          `json:"sector"`
}

// MarketValue is shares times the current price, or the entry price when no quote is known.
func (h Holding) MarketValue() decimal.Decimal {
	price := h.CurrentPrice
	if price.IsZero() {
		price = h.EntryPrice
	}
	return h.Shares.Mul(price)
}

// SectorExposure is the share of the portfolio held in one sector.
type SectorExposure struct {
	Sector     string `json:"sector"`
	Percentage string `json:"percentage"`
}

// Diversification summarizes how spread out a portfolio is.
type Diversification struct {
	Score          float64          `json:"score"`
	SectorExposure []SectorExposure `json:"sectorExposure"`
	RiskLevel      string           `json:"riskLevel"`
}

// RiskAssessment holds portfolio level risk statistics.
type RiskAssessment struct {
	Volatility  float64 `json:"volatility"`
	SharpeRatio float64 `json:"sharpeRatio"`
	BetaAverage float64 `json:"betaAverage"`
}

// PortfolioAnalysis is the diversification and risk review of a set of holdings.
type PortfolioAnalysis struct {
	Diversification Diversification `json:"diversification"`
	Recommendations []string        `json:"recommendations"`
	RiskAssessment  RiskAssessment  `json:"riskAssessment"`
	Summary         string          `json:"summary"`
	Provenance
}

type sectorWeight struct {
	sector string
	weight float64
}

// AnalyzePortfolio reviews holdings for diversification and risk.
func (c *Core) AnalyzePortfolio(ctx context.Context, holdings []Holding) (*PortfolioAnalysis, error) {
	if len(holdings) == 0 {
		return nil, NewError(ErrCodeInvalidInput, "Missing or invalid holdings data")
	}

	weights := sectorWeights(holdings)
	payload, err := json.Marshal(holdings)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "encode holdings", err)
	}
	prompt := fmt.Sprintf("Analyze this portfolio: %s\n\nComputed sector weights:\n%s\nConcentration index (0-1, higher is more concentrated): %.3f",
		payload, formatSectorWeights(weights), concentration(weights))

	outcome := complete(ctx, c, CompletionRequest{
		Feature:      "portfolio_analysis",
		SystemPrompt: portfolioSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    1500,
		JSON:         true,
	}, func(completion Completion) (PortfolioAnalysis, error) {
		return parsePortfolioAnalysis(completion, weights)
	}, func(reason FallbackReason) PortfolioAnalysis {
		return c.syntheticPortfolioAnalysis(reason, weights)
	})

	result := shape(outcome)
	return &result, nil
}

// sectorWeights returns each sector's fraction of total market value, largest first.
func sectorWeights(holdings []Holding) []sectorWeight {
	totals := map[string]decimal.Decimal{}
	sum := decimal.Zero
	for _, h := range holdings {
		value := h.MarketValue()
		if value.IsNegative() {
			continue
		}
		sector := defaultString(h.Sector, "Other")
		totals[sector] = totals[sector].Add(value)
		sum = sum.Add(value)
	}
	if sum.IsZero() {
		return nil
	}
	weights := make([]sectorWeight, 0, len(totals))
	for sector, total := range totals {
		weights = append(weights, sectorWeight{sector: sector, weight: total.Div(sum).InexactFloat64()})
	}
	sort.Slice(weights, func(i, j int) bool {
		if weights[i].weight == weights[j].weight {
			return weights[i].sector < weights[j].sector
		}
		return weights[i].weight > weights[j].weight
	})
	return weights
}

// concentration is the Herfindahl index of the sector weights.
func concentration(weights []sectorWeight) float64 {
	if len(weights) == 0 {
		return 0
	}
	w := make([]float64, len(weights))
	for i, sw := range weights {
		w[i] = sw.weight
	}
	return floats.Dot(w, w)
}

func formatSectorWeights(weights []sectorWeight) string {
	if len(weights) == 0 {
		return "- unavailable (no prices supplied)\n"
	}
	var b strings.Builder
	for _, sw := range weights {
		fmt.Fprintf(&b, "- %s: %s\n", sw.sector, percent(sw.weight*100, 1))
	}
	return b.String()
}

func exposureFromWeights(weights []sectorWeight) []SectorExposure {
	exposure := make([]SectorExposure, 0, len(weights))
	for _, sw := range weights {
		exposure = append(exposure, SectorExposure{Sector: sw.sector, Percentage: percent(sw.weight*100, 1)})
	}
	return exposure
}

type portfolioPayload struct {
	Diversification struct {
		Score          flexFloat `json:"score"`
		SectorExposure []struct {
			Sector     flexString `json:"sector"`
			Percentage flexString `json:"percentage"`
		} `json:"sectorExposure"`
		RiskLevel flexString `json:"riskLevel"`
	} `json:"diversification"`
	Recommendations flexLines `json:"recommendations"`
	RiskAssessment  struct {
		Volatility  flexFloat `json:"volatility"`
		SharpeRatio flexFloat `json:"sharpeRatio"`
		BetaAverage flexFloat `json:"betaAverage"`
	} `json:"riskAssessment"`
	Summary flexString `json:"summary"`
}

func parsePortfolioAnalysis(completion Completion, weights []sectorWeight) (PortfolioAnalysis, error) {
	var payload portfolioPayload
	if err := json.Unmarshal([]byte(cleanupModelJSON(completion.Content)), &payload); err != nil {
		return PortfolioAnalysis{}, modelJSONError("portfolio_analysis", err)
	}

	score := float64(payload.Diversification.Score)
	if score <= 0 {
		score = defaultGrade
	}
	exposure := make([]SectorExposure, 0, len(payload.Diversification.SectorExposure))
	for _, item := range payload.Diversification.SectorExposure {
		sector := strings.TrimSpace(string(item.Sector))
		if sector == "" {
			continue
		}
		pct := strings.TrimSpace(string(item.Percentage))
		if pct != "" && !strings.HasSuffix(pct, "%") {
			pct += "%"
		}
		exposure = append(exposure, SectorExposure{Sector: sector, Percentage: defaultString(pct, "0%")})
	}
	if len(exposure) == 0 {
		exposure = exposureFromWeights(weights)
	}

	return PortfolioAnalysis{
		Diversification: Diversification{
			Score:          round1(clamp(score, 0, 10)),
			SectorExposure: exposure,
			RiskLevel:      defaultString(string(payload.Diversification.RiskLevel), "Moderate"),
		},
		Recommendations: defaultLines(payload.Recommendations, []string{"Review position sizing across sectors."}),
		RiskAssessment: RiskAssessment{
			Volatility:  round2(float64(payload.RiskAssessment.Volatility)),
			SharpeRatio: round2(float64(payload.RiskAssessment.SharpeRatio)),
			BetaAverage: round2(float64(payload.RiskAssessment.BetaAverage)),
		},
		Summary: defaultString(string(payload.Summary), "Portfolio analysis completed."),
	}, nil
}

var portfolioRiskLevels = []string{"Low", "Moderate", "High"}

func (c *Core) syntheticPortfolioAnalysis(reason FallbackReason, weights []sectorWeight) PortfolioAnalysis {
	if reason != ReasonUnavailable {
		return PortfolioAnalysis{
			Diversification: Diversification{
				Score: 7.5,
				SectorExposure: []SectorExposure{
					{Sector: "Technology", Percentage: "42%"},
					{Sector: "Finance", Percentage: "28%"},
					{Sector: "Healthcare", Percentage: "15%"},
				},
				RiskLevel: "Moderate-High",
			},
			Recommendations: []string{
				"Consider adding exposure to defensive sectors like Utilities and Consumer Staples",
				"Your portfolio is technology-heavy, which increases volatility",
				"Consider adding some fixed income assets for stability",
			},
			RiskAssessment: RiskAssessment{Volatility: 0.85, SharpeRatio: 0.68, BetaAverage: 1.25},
			Summary:        "Your portfolio shows moderate diversification but is concentrated in technology and finance sectors. Consider broadening your holdings to reduce sector-specific risks.",
		}
	}

	exposure := exposureFromWeights(weights)
	if len(exposure) == 0 {
		for _, sector := range []string{"Technology", "Healthcare", "Finance"} {
			exposure = append(exposure, SectorExposure{Sector: sector, Percentage: percent(round1(c.synth.float(10, 50)), 1)})
		}
	}
	return PortfolioAnalysis{
		Diversification: Diversification{
			Score:          c.syntheticGrade(),
			SectorExposure: exposure,
			RiskLevel:      c.synth.pick(portfolioRiskLevels),
		},
		Recommendations: []string{
			"Consider adding exposure to defensive sectors for better balance",
			"Your portfolio may be overweight in technology stocks",
			"Look into adding more dividend-paying stocks for income",
		},
		RiskAssessment: RiskAssessment{
			Volatility:  round2(c.synth.float(0.6, 1.0)),
			SharpeRatio: round2(c.synth.float(0.5, 1.5)),
			BetaAverage: round2(c.synth.float(0.5, 2.0)),
		},
		Summary: "Your portfolio shows moderate diversification but may benefit from exposure to additional sectors. The overall risk profile is moderate with a slight tilt toward growth assets.",
	}
}
