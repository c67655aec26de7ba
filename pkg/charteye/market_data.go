package charteye

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Quote is one market instrument in a snapshot. Rates and volatility gauges leave PercentChange zero.
type Quote struct {
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percentChange,omitempty"`
}

// MarketSnapshot is the market context attached to economic news analysis.
type MarketSnapshot struct {
	Indices     []Quote `json:"indices"`
	Currencies  []Quote `json:"currencies"`
	Commodities []Quote `json:"commodities"`
	Rates       []Quote `json:"rates"`
	Volatility  []Quote `json:"volatility"`
	Timestamp   string  `json:"timestamp"`
}

type quoteSpec struct {
	name       string
	base       float64
	spread     float64
	volatility float64
}

var (
	indexSpecs = []quoteSpec{
		{"S&P 500", 5000, 200, 0.02},
		{"NASDAQ", 16000, 500, 0.02},
		{"Dow Jones", 38000, 1000, 0.02},
	}
	currencySpecs = []quoteSpec{
		{"EUR/USD", 1.08, 0.02, 0.01},
		{"USD/JPY", 150, 5, 0.01},
		{"GBP/USD", 1.26, 0.02, 0.01},
	}
	commoditySpecs = []quoteSpec{
		{"Gold", 2000, 100, 0.015},
		{"Crude Oil", 80, 10, 0.025},
	}
	rateSpecs = []quoteSpec{
		{"10-Year Treasury", 3.95, 0.5, 0.03},
		{"2-Year Treasury", 4.55, 0.5, 0.03},
	}
	volatilitySpecs = []quoteSpec{
		{"VIX", 15, 10, 0.05},
	}
)

// MarketSnapshot generates the current market context. No market data provider is wired,
// so values are simulated around realistic levels.
func (c *Core) MarketSnapshot() MarketSnapshot {
	return MarketSnapshot{
		Indices:     c.simulateQuotes(indexSpecs, true),
		Currencies:  c.simulateQuotes(currencySpecs, true),
		Commodities: c.simulateQuotes(commoditySpecs, true),
		Rates:       c.simulateQuotes(rateSpecs, false),
		Volatility:  c.simulateQuotes(volatilitySpecs, false),
		Timestamp:   c.timestamp(),
	}
}

func (c *Core) simulateQuotes(specs []quoteSpec, withPercent bool) []Quote {
	quotes := make([]Quote, 0, len(specs))
	for _, spec := range specs {
		base := spec.base + c.synth.float(0, spec.spread)
		change := c.synth.float(-1, 1) * base * spec.volatility
		quote := Quote{
			Name:   spec.name,
			Value:  roundTo(base+change, 4),
			Change: roundTo(change, 4),
		}
		if withPercent {
			quote.PercentChange = roundTo(change/base*100, 2)
		}
		quotes = append(quotes, quote)
	}
	return quotes
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// formatMarketSnapshot renders the snapshot as prompt context.
func formatMarketSnapshot(s MarketSnapshot) string {
	var b strings.Builder
	asOf := s.Timestamp
	if t, err := time.Parse(time.RFC3339, s.Timestamp); err == nil {
		asOf = t.Format("Jan 2, 2006 15:04 MST")
	}
	fmt.Fprintf(&b, "Current Market Conditions (as of %s):\n", asOf)

	section := func(title string, quotes []Quote, format func(Quote) string) {
		fmt.Fprintf(&b, "\n%s:\n", title)
		for _, q := range quotes {
			fmt.Fprintf(&b, "- %s\n", format(q))
		}
	}
	withPercent := func(prefix string, decimals int) func(Quote) string {
		return func(q Quote) string {
			return fmt.Sprintf("%s: %s%.*f, %s %.2f%%", q.Name, prefix, decimals, q.Value, direction(q.Change), math.Abs(q.PercentChange))
		}
	}
	absolute := func(suffix string) func(Quote) string {
		return func(q Quote) string {
			return fmt.Sprintf("%s: %.2f%s, %s %.2f", q.Name, q.Value, suffix, direction(q.Change), math.Abs(q.Change))
		}
	}

	section("MAJOR INDICES", s.Indices, withPercent("", 0))
	section("CURRENCIES", s.Currencies, withPercent("", 4))
	section("COMMODITIES", s.Commodities, withPercent("$", 2))
	section("BONDS", s.Rates, absolute("%"))
	section("VOLATILITY", s.Volatility, absolute(""))
	return b.String()
}

func direction(change float64) string {
	if change >= 0 {
		return "up"
	}
	return "down"
}
