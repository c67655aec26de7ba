package news

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is one page scraped by the collector.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// DefaultSources is used when no sources file is configured.
var DefaultSources = []Source{
	{Name: "DailyFX Economic Calendar", URL: "https://www.dailyfx.com/economic-calendar"},
	{Name: "FXStreet USD/JPY", URL: "https://www.fxstreet.com/currencies/usdjpy"},
	{Name: "FXStreet GBP/USD", URL: "https://www.fxstreet.com/currencies/gbpusd"},
	{Name: "FXStreet Bitcoin", URL: "https://www.fxstreet.com/cryptocurrencies/bitcoin"},
	{Name: "Business Insider Currencies", URL: "https://markets.businessinsider.com/currencies"},
	{Name: "FXStreet Gold", URL: "https://www.fxstreet.com/markets/commodities/metals/gold"},
	{Name: "DailyFX Real Time News", URL: "https://www.dailyfx.com/real-time-news"},
	{Name: "DailyFX Sentiment", URL: "https://www.dailyfx.com/sentiment"},
}

// LoadSources reads a YAML sources file of the form:
//
//	sources:
//	  - name: FXStreet Gold
//	    url: https://www.fxstreet.com/markets/commodities/metals/gold
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	sources := make([]Source, 0, len(file.Sources))
	for i, src := range file.Sources {
		src.URL = strings.TrimSpace(src.URL)
		if src.URL == "" {
			return nil, fmt.Errorf("source %d: url is required", i)
		}
		if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
			return nil, fmt.Errorf("source %d: unsupported url %q", i, src.URL)
		}
		if strings.TrimSpace(src.Name) == "" {
			src.Name = src.URL
		}
		sources = append(sources, src)
	}
	return sources, nil
}
