package charteye

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const defaultGrade = 7.5

const chartAnalysisSystemPrompt = `You are an expert technical analyst for trading charts. Analyze the provided chart image in detail.
Focus on:
1. Chart pattern identification
2. Support & resistance levels
3. Trend analysis
4. Volume analysis
5. Momentum indicators
6. Key levels to watch

Then provide a grade on a scale of 1-10 for each of these lines, written exactly as "<label>: <number>":
- Pattern clarity
- Trend alignment
- Risk/reward ratio
- Volume confirmation
- Proximity to key levels
- Overall trading grade`

const chartAnalysisUserPrompt = "Please analyze this trading chart in detail and provide a technical analysis with grading."

var (
	gradePatternClarity     = regexp.MustCompile(`(?i)Pattern clarity\**:?\**\s*(\d+\.?\d*)`)
	gradeTrendAlignment     = regexp.MustCompile(`(?i)Trend alignment\**:?\**\s*(\d+\.?\d*)`)
	gradeRiskReward         = regexp.MustCompile(`(?i)Risk/reward ratio\**:?\**\s*(\d+\.?\d*)`)
	gradeVolumeConfirmation = regexp.MustCompile(`(?i)Volume confirmation\**:?\**\s*(\d+\.?\d*)`)
	gradeKeyLevelProximity  = regexp.MustCompile(`(?i)Proximity to key levels\**:?\**\s*(\d+\.?\d*)`)
	gradeOverall            = regexp.MustCompile(`(?i)Overall trading grade\**:?\**\s*(\d+\.?\d*)`)
)

var syntheticChartPatterns = []string{
	"bullish breakout", "bearish divergence", "double top", "double bottom",
	"head and shoulders", "inverse head and shoulders", "ascending triangle",
	"descending triangle", "cup and handle", "bull flag", "bear flag",
}

type chartModelResult struct {
	Analysis string
	Grading  Grading
}

// parseChartAnalysis extracts the narrative and the grade lines from free-form model text.
// Grades the model omitted fall back to 7.5.
func parseChartAnalysis(content string) (chartModelResult, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return chartModelResult{}, errEmptyCompletion
	}
	return chartModelResult{
		Analysis: text,
		Grading: Grading{
			PatternClarity:     extractGrade(gradePatternClarity, text),
			TrendAlignment:     extractGrade(gradeTrendAlignment, text),
			RiskReward:         extractGrade(gradeRiskReward, text),
			VolumeConfirmation: extractGrade(gradeVolumeConfirmation, text),
			KeyLevelProximity:  extractGrade(gradeKeyLevelProximity, text),
			OverallGrade:       extractGrade(gradeOverall, text),
		},
	}, nil
}

func extractGrade(pattern *regexp.Regexp, text string) float64 {
	match := pattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return defaultGrade
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return defaultGrade
	}
	return clamp(value, 0, 10)
}

func (c *Core) syntheticChartAnalysis(FallbackReason) chartModelResult {
	pattern := c.synth.pick(syntheticChartPatterns)
	momentum := "decreasing"
	if c.synth.float(0, 1) > 0.5 {
		momentum = "increasing"
	}
	bias := "bearish"
	if c.synth.float(0, 1) > 0.5 {
		bias = "bullish"
	}
	return chartModelResult{
		Analysis: fmt.Sprintf("This chart shows a %s pattern with strong confirmation from volume indicators. "+
			"Price is testing a key level, and momentum is %s. There are clear support and resistance levels "+
			"that can be used for entry and exit points. The overall structure suggests a %s bias in the near term.",
			pattern, momentum, bias),
		Grading: Grading{
			PatternClarity:     c.syntheticGrade(),
			TrendAlignment:     c.syntheticGrade(),
			RiskReward:         c.syntheticGrade(),
			VolumeConfirmation: c.syntheticGrade(),
			KeyLevelProximity:  c.syntheticGrade(),
			OverallGrade:       c.syntheticGrade(),
		},
	}
}

// syntheticGrade returns a grade in [6.0, 9.0] rounded to one decimal.
func (c *Core) syntheticGrade() float64 {
	return clamp(round1(c.synth.float(6, 9)), 6, 9)
}

// syntheticProbability returns a probability in [0.60, 0.90] rounded to two decimals.
func (c *Core) syntheticProbability() float64 {
	return clamp(round2(c.synth.float(0.6, 0.9)), 0.6, 0.9)
}
