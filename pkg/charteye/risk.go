package charteye

import (
	"context"
	"encoding/json"
	"strings"
)

const riskSystemPrompt = `You are an expert risk manager for trading. Analyze the provided trade setup and calculate optimal position size, stop loss placement, take profit levels, and overall risk assessment. Consider account size, market volatility, and trading style in your analysis. Format your response as JSON with this structure:
{
  "positionSize": {"recommended": "2%", "units": 100},
  "riskRewardRatio": 2.0,
  "stopLoss": {"price": 95.0, "distance": "1.5%"},
  "targetPrice": {"price": 105.0, "distance": "3%"},
  "winProbability": "55%",
  "expectancy": 0.3,
  "recommendations": ["..."]
}`

// TradeSetup is the caller-supplied description of a planned trade.
type TradeSetup map[string]any

// PositionSize is the recommended exposure for a trade.
type PositionSize struct {
	Recommended string `json:"recommended"`
	Units       int    `json:"units"`
}

// PriceLevel is a price and its distance from entry.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Distance string  `json:"distance"`
}

// RiskAnalysis is the sizing and reward review of a trade setup.
type RiskAnalysis struct {
	PositionSize    PositionSize `json:"positionSize"`
	RiskRewardRatio float64      `json:"riskRewardRatio"`
	StopLoss        PriceLevel   `json:"stopLoss"`
	TargetPrice     PriceLevel   `json:"targetPrice"`
	WinProbability  string       `json:"winProbability"`
	Expectancy      float64      `json:"expectancy"`
	Recommendations []string     `json:"recommendations"`
	Provenance
}

// AnalyzeRisk sizes a trade setup and estimates its risk/reward.
func (c *Core) AnalyzeRisk(ctx context.Context, setup TradeSetup) (*RiskAnalysis, error) {
	if setup == nil {
		return nil, NewError(ErrCodeInvalidInput, "Missing or invalid trade setup data")
	}
	payload, err := json.Marshal(setup)
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "encode trade setup", err)
	}

	outcome := complete(ctx, c, CompletionRequest{
		Feature:      "risk_analysis",
		SystemPrompt: riskSystemPrompt,
		UserPrompt:   "Analyze risk for this trade setup: " + string(payload),
		MaxTokens:    1000,
		JSON:         true,
	}, parseRiskAnalysis, c.syntheticRiskAnalysis)

	result := shape(outcome)
	return &result, nil
}

type riskPayload struct {
	PositionSize struct {
		Recommended flexString `json:"recommended"`
		Units       flexFloat  `json:"units"`
	} `json:"positionSize"`
	RiskRewardRatio flexFloat `json:"riskRewardRatio"`
	StopLoss        struct {
		Price    flexFloat  `json:"price"`
		Distance flexString `json:"distance"`
	} `json:"stopLoss"`
	TargetPrice struct {
		Price    flexFloat  `json:"price"`
		Distance flexString `json:"distance"`
	} `json:"targetPrice"`
	WinProbability  flexString `json:"winProbability"`
	Expectancy      flexFloat  `json:"expectancy"`
	Recommendations flexLines  `json:"recommendations"`
}

func parseRiskAnalysis(completion Completion) (RiskAnalysis, error) {
	var payload riskPayload
	if err := json.Unmarshal([]byte(cleanupModelJSON(completion.Content)), &payload); err != nil {
		return RiskAnalysis{}, modelJSONError("risk_analysis", err)
	}
	return RiskAnalysis{
		PositionSize: PositionSize{
			Recommended: percentText(string(payload.PositionSize.Recommended), "1%"),
			Units:       int(payload.PositionSize.Units),
		},
		RiskRewardRatio: round2(float64(payload.RiskRewardRatio)),
		StopLoss: PriceLevel{
			Price:    round2(float64(payload.StopLoss.Price)),
			Distance: percentText(string(payload.StopLoss.Distance), "N/A"),
		},
		TargetPrice: PriceLevel{
			Price:    round2(float64(payload.TargetPrice.Price)),
			Distance: percentText(string(payload.TargetPrice.Distance), "N/A"),
		},
		WinProbability:  percentText(string(payload.WinProbability), "50%"),
		Expectancy:      round2(float64(payload.Expectancy)),
		Recommendations: defaultLines(payload.Recommendations, []string{"Define the stop loss before entering the trade."}),
	}, nil
}

// percentText appends a percent sign to bare numbers.
func percentText(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	last := v[len(v)-1]
	if last >= '0' && last <= '9' {
		return v + "%"
	}
	return v
}

func (c *Core) syntheticRiskAnalysis(reason FallbackReason) RiskAnalysis {
	if reason != ReasonUnavailable {
		return RiskAnalysis{
			PositionSize:    PositionSize{Recommended: "2.5%", Units: 250},
			RiskRewardRatio: 1.85,
			StopLoss:        PriceLevel{Price: 95.30, Distance: "1.5%"},
			TargetPrice:     PriceLevel{Price: 105.75, Distance: "2.8%"},
			WinProbability:  "55%",
			Expectancy:      0.27,
			Recommendations: []string{
				"Current risk-reward ratio is acceptable but could be improved",
				"Consider multiple take-profit levels (partial exits)",
				"Given current market conditions, this position size is appropriate",
			},
		}
	}
	return RiskAnalysis{
		PositionSize: PositionSize{
			Recommended: percent(round1(c.synth.float(1, 5)), 1),
			Units:       c.synth.intn(500) + 100,
		},
		RiskRewardRatio: round2(c.synth.float(1, 4)),
		StopLoss:        PriceLevel{Price: round2(c.synth.float(90, 100)), Distance: percent(round1(c.synth.float(0.5, 2.5)), 1)},
		TargetPrice:     PriceLevel{Price: round2(c.synth.float(110, 130)), Distance: percent(round1(c.synth.float(3, 8)), 1)},
		WinProbability:  percent(float64(40+c.synth.intn(30)), 0),
		Expectancy:      round2(c.synth.float(0.1, 0.5)),
		Recommendations: []string{
			"Consider tightening stop loss to improve risk-reward ratio",
			"Multiple take-profit levels may improve overall profitability",
			"Current market volatility suggests reducing position size",
		},
	}
}
