package charteye

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func testHoldings() []Holding {
	return []Holding{
		{Symbol: "AAPL", Shares: decimal.NewFromInt(10), EntryPrice: decimal.NewFromInt(150), CurrentPrice: decimal.NewFromInt(300), Sector: "Technology"},
		{Symbol: "JPM", Shares: decimal.NewFromInt(5), EntryPrice: decimal.NewFromInt(200), Sector: "Finance"},
	}
}

func TestAnalyzePortfolioBranches(t *testing.T) {
	ctx := context.Background()

	t.Run("model", func(t *testing.T) {
		gateway := &stubGateway{replies: map[string]string{
			"portfolio_analysis": "Here you go:\n```json\n{\"diversification\":{\"score\":\"6.2\",\"sectorExposure\":[{\"sector\":\"Technology\",\"percentage\":75}],\"riskLevel\":\"High\"}," +
				"\"recommendations\":[{\"text\":\"Trim tech\"},\"Add bonds\"],\"riskAssessment\":{\"volatility\":\"0.914\",\"sharpeRatio\":0.7,\"betaAverage\":1.234},\"summary\":\"Concentrated.\"}\n```",
		}}
		core := setupTestCore(t, Options{AI: gateway})

		result, err := core.AnalyzePortfolio(ctx, testHoldings())
		if err != nil {
			t.Fatalf("AnalyzePortfolio: %v", err)
		}
		if result.Mock {
			t.Fatalf("unexpected mock flag")
		}
		if result.Diversification.Score != 6.2 || result.Diversification.RiskLevel != "High" {
			t.Fatalf("unexpected diversification %+v", result.Diversification)
		}
		if len(result.Diversification.SectorExposure) != 1 || result.Diversification.SectorExposure[0].Percentage != "75%" {
			t.Fatalf("unexpected exposure %+v", result.Diversification.SectorExposure)
		}
		if strings.Join(result.Recommendations, "|") != "Trim tech|Add bonds" {
			t.Fatalf("unexpected recommendations %v", result.Recommendations)
		}
		if result.RiskAssessment != (RiskAssessment{Volatility: 0.91, SharpeRatio: 0.7, BetaAverage: 1.23}) {
			t.Fatalf("unexpected risk assessment %+v", result.RiskAssessment)
		}
		if !strings.Contains(gateway.lastRequest(t).UserPrompt, "Technology: 75.0%") {
			t.Fatalf("expected computed sector weights in prompt, got %q", gateway.lastRequest(t).UserPrompt)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		core := setupTestCore(t, Options{AI: &stubGateway{replies: map[string]string{"portfolio_analysis": "not json at all"}}})
		result, err := core.AnalyzePortfolio(ctx, testHoldings())
		if err != nil {
			t.Fatalf("AnalyzePortfolio: %v", err)
		}
		if !result.Mock || !result.APIError {
			t.Fatalf("expected api error provenance, got %+v", result.Provenance)
		}
		if result.Diversification.Score != 7.5 || result.RiskAssessment.Volatility != 0.85 {
			t.Fatalf("expected fixed error fallback, got %+v", result)
		}
	})

	t.Run("no gateway", func(t *testing.T) {
		core := setupTestCore(t, Options{})
		result, err := core.AnalyzePortfolio(ctx, testHoldings())
		if err != nil {
			t.Fatalf("AnalyzePortfolio: %v", err)
		}
		if !result.Mock || !result.DevMode {
			t.Fatalf("expected dev mode provenance, got %+v", result.Provenance)
		}
		exposure := result.Diversification.SectorExposure
		if len(exposure) != 2 || exposure[0].Sector != "Technology" || exposure[0].Percentage != "75.0%" || exposure[1].Percentage != "25.0%" {
			t.Fatalf("expected exposure from holdings, got %+v", exposure)
		}
		if result.Diversification.Score < 6 || result.Diversification.Score > 9 {
			t.Fatalf("synthetic score out of range: %v", result.Diversification.Score)
		}
	})

	t.Run("empty", func(t *testing.T) {
		core := setupTestCore(t, Options{})
		if _, err := core.AnalyzePortfolio(ctx, nil); !IsErrorCode(err, ErrCodeInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})
}

func TestConcentration(t *testing.T) {
	weights := sectorWeights(testHoldings())
	if got := concentration(weights); got != 0.625 {
		t.Fatalf("expected herfindahl 0.625, got %v", got)
	}
	if concentration(nil) != 0 {
		t.Fatalf("expected zero for no weights")
	}
	if sectorWeights([]Holding{{Symbol: "X"}}) != nil {
		t.Fatalf("expected nil weights without prices")
	}
}

func TestAnalyzeRisk(t *testing.T) {
	ctx := context.Background()
	setup := TradeSetup{"symbol": "EURUSD", "entry": 1.085, "stop": 1.08}

	gateway := &stubGateway{replies: map[string]string{
		"risk_analysis": `{"positionSize":{"recommended":2,"units":"300"},"riskRewardRatio":"2.456","stopLoss":{"price":1.08,"distance":"0.5"},` +
			`"targetPrice":{"price":1.1,"distance":"1.4%"},"winProbability":60,"expectancy":"0.31","recommendations":"Scale out"}`,
	}}
	core := setupTestCore(t, Options{AI: gateway})
	result, err := core.AnalyzeRisk(ctx, setup)
	if err != nil {
		t.Fatalf("AnalyzeRisk: %v", err)
	}
	if result.PositionSize != (PositionSize{Recommended: "2%", Units: 300}) {
		t.Fatalf("unexpected position size %+v", result.PositionSize)
	}
	if result.RiskRewardRatio != 2.46 || result.WinProbability != "60%" || result.StopLoss.Distance != "0.5%" || result.TargetPrice.Distance != "1.4%" {
		t.Fatalf("unexpected risk analysis %+v", result)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0] != "Scale out" {
		t.Fatalf("unexpected recommendations %v", result.Recommendations)
	}
	if !strings.Contains(gateway.lastRequest(t).UserPrompt, `"symbol":"EURUSD"`) {
		t.Fatalf("expected trade setup in prompt")
	}

	synthetic := setupTestCore(t, Options{})
	result, err = synthetic.AnalyzeRisk(ctx, setup)
	if err != nil {
		t.Fatalf("AnalyzeRisk synthetic: %v", err)
	}
	if !result.DevMode || result.PositionSize.Units < 100 || result.PositionSize.Units >= 600 {
		t.Fatalf("unexpected synthetic risk %+v", result)
	}
	if _, err := synthetic.AnalyzeRisk(ctx, nil); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestNonFiniteModelNumbersFallBack(t *testing.T) {
	ctx := context.Background()

	if _, err := parseRiskAnalysis(Completion{Content: `{"riskRewardRatio":"NaN"}`}); err == nil {
		t.Fatalf("expected NaN ratio to be rejected")
	}

	gateway := &stubGateway{replies: map[string]string{
		"risk_analysis":      `{"riskRewardRatio":"NaN","expectancy":"Infinity"}`,
		"portfolio_analysis": `{"diversification":{"score":"NaN"},"riskAssessment":{"volatility":"-Inf"}}`,
	}}
	core := setupTestCore(t, Options{AI: gateway})

	risk, err := core.AnalyzeRisk(ctx, TradeSetup{"symbol": "EURUSD"})
	if err != nil {
		t.Fatalf("AnalyzeRisk: %v", err)
	}
	if !risk.Mock || !risk.APIError {
		t.Fatalf("expected synthetic risk after non-finite reply, got %+v", risk.Provenance)
	}
	body, err := json.Marshal(risk)
	if err != nil || len(body) == 0 {
		t.Fatalf("risk analysis must encode: %v", err)
	}

	portfolio, err := core.AnalyzePortfolio(ctx, testHoldings())
	if err != nil {
		t.Fatalf("AnalyzePortfolio: %v", err)
	}
	if !portfolio.Mock || !portfolio.APIError {
		t.Fatalf("expected synthetic portfolio after non-finite reply, got %+v", portfolio)
	}
	if _, err := json.Marshal(portfolio); err != nil {
		t.Fatalf("portfolio analysis must encode: %v", err)
	}
}

func TestAnalyzeEconomicNews(t *testing.T) {
	ctx := context.Background()

	gateway := &stubGateway{replies: map[string]string{
		"economic_news": `{"summary":"Hot CPI","marketSentiment":"Bearish","keyEvents":[{"event":"CPI","impact":"Negative"},{"event":""}],` +
			`"sectorImpact":[{"sector":"Tech","details":"Rates up"}],"tradingOpportunities":["Short duration"]}`,
	}}
	core := setupTestCore(t, Options{AI: gateway})
	result, err := core.AnalyzeEconomicNews(ctx, []string{" CPI beats ", ""})
	if err != nil {
		t.Fatalf("AnalyzeEconomicNews: %v", err)
	}
	if result.Summary != "Hot CPI" || len(result.KeyEvents) != 1 || result.KeyEvents[0].Analysis != "No analysis provided." {
		t.Fatalf("unexpected analysis %+v", result)
	}
	if result.SectorImpact[0].Impact != "Neutral" {
		t.Fatalf("expected default impact, got %+v", result.SectorImpact)
	}
	if len(result.MarketData.Indices) != 3 || result.MarketData.Timestamp == "" {
		t.Fatalf("expected market snapshot, got %+v", result.MarketData)
	}
	prompt := gateway.lastRequest(t).UserPrompt
	if !strings.Contains(prompt, `["CPI beats"]`) || !strings.Contains(prompt, "S&P 500") {
		t.Fatalf("unexpected prompt %q", prompt)
	}

	failing := setupTestCore(t, Options{AI: &stubGateway{err: errors.New("boom")}})
	result, err = failing.AnalyzeEconomicNews(ctx, []string{"NFP"})
	if err != nil {
		t.Fatalf("AnalyzeEconomicNews failing: %v", err)
	}
	if !result.APIError || result.MarketSentiment != "Mixed" || len(result.MarketData.Currencies) != 3 {
		t.Fatalf("unexpected fallback %+v", result)
	}

	if _, err := failing.AnalyzeEconomicNews(ctx, []string{" ", ""}); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAnalyzeJournal(t *testing.T) {
	ctx := context.Background()
	entries := []JournalEntry{{"symbol": "ES", "pnl": -120, "notes": "moved stop"}}

	core := setupTestCore(t, Options{AI: &stubGateway{replies: map[string]string{
		"trading_journal": `{"strengths":["Discipline"],"weaknesses":"Moves stops","patterns":[],"summary":""}`,
	}}})
	result, err := core.AnalyzeJournal(ctx, entries)
	if err != nil {
		t.Fatalf("AnalyzeJournal: %v", err)
	}
	if result.Mock || result.Weaknesses[0] != "Moves stops" || len(result.Patterns) != 0 || result.Summary != "Journal analysis completed." {
		t.Fatalf("unexpected journal analysis %+v", result)
	}
	if len(result.Recommendations) != 1 {
		t.Fatalf("expected default recommendation, got %v", result.Recommendations)
	}

	devMode := setupTestCore(t, Options{})
	result, err = devMode.AnalyzeJournal(ctx, entries)
	if err != nil {
		t.Fatalf("AnalyzeJournal dev mode: %v", err)
	}
	if !result.DevMode || result.Strengths[0] != "Consistent use of stop losses" {
		t.Fatalf("unexpected dev mode journal %+v", result)
	}

	apiError := setupTestCore(t, Options{AI: &stubGateway{replies: map[string]string{"trading_journal": "[1,2"}}})
	result, err = apiError.AnalyzeJournal(ctx, entries)
	if err != nil {
		t.Fatalf("AnalyzeJournal api error: %v", err)
	}
	if !result.APIError || len(result.Recommendations) != 4 {
		t.Fatalf("unexpected api error journal %+v", result)
	}

	if _, err := devMode.AnalyzeJournal(ctx, nil); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGenerateIndicator(t *testing.T) {
	ctx := context.Background()
	gateway := &stubGateway{replies: map[string]string{"indicator_code": "```mql5\nint OnInit() { return 0; }\n```"}}
	core := setupTestCore(t, Options{AI: gateway})

	indicator, err := core.GenerateIndicator(ctx, IndicatorRequest{UserID: "u1", Language: "MQL5", Description: "  average   true range  ", IsPublic: true})
	if err != nil {
		t.Fatalf("GenerateIndicator: %v", err)
	}
	if indicator.Code != "int OnInit() { return 0; }" || indicator.Platform != "MetaTrader 5" || indicator.Language != "mql5" {
		t.Fatalf("unexpected indicator %+v", indicator)
	}
	if indicator.Name != "average true range" || indicator.ID == "" {
		t.Fatalf("expected derived name and stored id, got %+v", indicator)
	}
	if !strings.Contains(gateway.lastRequest(t).SystemPrompt, "MQL5 for MetaTrader 5") {
		t.Fatalf("expected platform in system prompt")
	}

	list, err := core.ListIndicators("u1")
	if err != nil {
		t.Fatalf("ListIndicators: %v", err)
	}
	if len(list) != 1 || list[0].Code != indicator.Code || !list[0].IsPublic {
		t.Fatalf("unexpected stored indicators %+v", list)
	}
	if empty, err := core.ListIndicators("u2"); err != nil || len(empty) != 0 {
		t.Fatalf("expected no indicators for u2, got %v (%v)", empty, err)
	}

	anonymous, err := core.GenerateIndicator(ctx, IndicatorRequest{Language: "pine", Description: "vwap"})
	if err != nil {
		t.Fatalf("GenerateIndicator anonymous: %v", err)
	}
	if anonymous.ID != "" {
		t.Fatalf("anonymous indicator must not be stored")
	}

	if _, err := core.GenerateIndicator(ctx, IndicatorRequest{Language: "cobol", Description: "x"}); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected unsupported language error, got %v", err)
	}
	if _, err := core.GenerateIndicator(ctx, IndicatorRequest{Language: "pine"}); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected missing fields error, got %v", err)
	}
}

func TestGenerateIndicatorFallbackNotes(t *testing.T) {
	ctx := context.Background()

	devMode := setupTestCore(t, Options{})
	indicator, err := devMode.GenerateIndicator(ctx, IndicatorRequest{Language: "pine", Description: "rsi"})
	if err != nil {
		t.Fatalf("GenerateIndicator: %v", err)
	}
	if !indicator.DevMode || !strings.Contains(indicator.Code, "development mode") {
		t.Fatalf("unexpected dev mode indicator %+v", indicator)
	}

	failing := setupTestCore(t, Options{AI: &stubGateway{err: errors.New("429")}})
	indicator, err = failing.GenerateIndicator(ctx, IndicatorRequest{Language: "pine", Description: "rsi"})
	if err != nil {
		t.Fatalf("GenerateIndicator failing: %v", err)
	}
	if !indicator.APIError || !strings.Contains(indicator.Code, "API error") {
		t.Fatalf("unexpected api error indicator %+v", indicator)
	}
}

func TestTradingInsights(t *testing.T) {
	ctx := context.Background()

	core := setupTestCore(t, Options{AI: &stubGateway{replies: map[string]string{"trading_insights": "  Cut losses early.  "}}})
	insight, err := core.TradingInsights(ctx, "How do I handle losses?")
	if err != nil {
		t.Fatalf("TradingInsights: %v", err)
	}
	if insight.Response != "Cut losses early." || insight.Mock || insight.Timestamp != "2024-03-15T12:00:00Z" {
		t.Fatalf("unexpected insight %+v", insight)
	}

	fallback := setupTestCore(t, Options{})
	insight, err = fallback.TradingInsights(ctx, "Anything?")
	if err != nil {
		t.Fatalf("TradingInsights fallback: %v", err)
	}
	if insight.Response != tradingInsightsFallback || !insight.DevMode {
		t.Fatalf("unexpected fallback insight %+v", insight)
	}
	if _, err := fallback.TradingInsights(ctx, "  "); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRecognizePatterns(t *testing.T) {
	ctx := context.Background()
	image := Image{MIMEType: "image/png", Data: pngData}

	core := setupTestCore(t, Options{AI: &stubGateway{replies: map[string]string{
		"pattern_recognition": `{"patterns":[{"name":"Bull Flag","probability":"65%","tradingSignal":"Bullish"},{"name":"Double Top","probability":0.8},{"name":""}],` +
			`"keyLevels":{"support":[101.234,"-5","99"],"resistance":[110]},"summary":"Flag forming"}`,
	}}})
	result, err := core.RecognizePatterns(ctx, image)
	if err != nil {
		t.Fatalf("RecognizePatterns: %v", err)
	}
	if len(result.Patterns) != 2 || result.Patterns[0].Name != "Double Top" || result.Patterns[1].Probability != 0.65 {
		t.Fatalf("expected patterns sorted by probability, got %+v", result.Patterns)
	}
	if result.Patterns[0].TradingSignal != "Neutral" {
		t.Fatalf("expected default signal, got %q", result.Patterns[0].TradingSignal)
	}
	if len(result.KeyLevels.Support) != 2 || result.KeyLevels.Support[0] != 101.23 {
		t.Fatalf("unexpected support levels %v", result.KeyLevels.Support)
	}

	synthetic := setupTestCore(t, Options{})
	result, err = synthetic.RecognizePatterns(ctx, image)
	if err != nil {
		t.Fatalf("RecognizePatterns synthetic: %v", err)
	}
	if !result.DevMode || len(result.Patterns) < 1 || len(result.Patterns) > 3 {
		t.Fatalf("unexpected synthetic patterns %+v", result)
	}
	for _, p := range result.Patterns {
		if p.Probability < 0.6 || p.Probability > 0.9 {
			t.Fatalf("probability out of range: %v", p.Probability)
		}
	}

	if _, err := synthetic.RecognizePatterns(ctx, Image{}); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected missing file, got %v", err)
	}
	if _, err := synthetic.RecognizePatterns(ctx, Image{Data: []byte("plain text")}); !IsErrorCode(err, ErrCodeInvalidInput) {
		t.Fatalf("expected non-image rejection, got %v", err)
	}
}
