package news

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	maxPageBytes        = 5 << 20
	maxHeadlines        = 20
	maxSnippets         = 30
	maxFullText         = 5000
	headlinesPerSource  = 5
	metadataHeadlines   = 20
	headlineMaxLength   = 150
	minSegmentLength    = 10
	defaultFetchTimeout = 30 * time.Second
	userAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

var newsKeywords = []string{
	"market", "stock", "economy", "fed", "reserve", "inflation", "interest rate",
	"gdp", "growth", "recession", "bull", "bear", "rally", "crash", "index",
	"dow", "nasdaq", "sp500", "s&p", "forex", "currency", "bond", "yield",
	"treasury", "crude", "oil", "gold", "investor", "trade", "earnings",
}

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	nonASCIIRun    = regexp.MustCompile(`[^\x00-\x7F]+`)
	sentenceBreaks = regexp.MustCompile(`\.\s+`)
)

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true, "iframe": true, "template": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"title": true, "article": true, "section": true, "td": true, "tr": true, "br": true, "header": true, "footer": true, "a": true,
}

// Collector scrapes news sources into a Store.
type Collector struct {
	store   *Store
	sources []Source
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// CollectorOption customizes a Collector.
type CollectorOption func(*Collector)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) CollectorOption {
	return func(c *Collector) {
		c.client = client
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// NewCollector returns a collector writing to store.
func NewCollector(store *Store, sources []Source, opts ...CollectorOption) *Collector {
	c := &Collector{
		store:   store,
		sources: sources,
		client:  &http.Client{Timeout: defaultFetchTimeout},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "news_collector")
	return c
}

// Name identifies the collector as a scheduled job.
func (c *Collector) Name() string {
	return "news_collector"
}

// Run performs one collection with a bounded context.
func (c *Collector) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(len(c.sources)+1)*defaultFetchTimeout)
	defer cancel()
	return c.Collect(ctx)
}

// Collect scrapes every source, writes news_{i}.json per successful page and refreshes metadata.json.
// It fails only when no source could be scraped.
func (c *Collector) Collect(ctx context.Context) error {
	started := c.now()
	var (
		latest    []string
		succeeded int
		errs      []error
	)
	for i, src := range c.sources {
		text, err := c.fetch(ctx, src.URL)
		if err != nil {
			c.logger.Warn("news source fetch failed", "source", src.Name, "url", src.URL, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		headlines, snippets := extractHeadlinesAndSnippets(text)
		snap := Snapshot{
			SourceURL: src.URL,
			Source:    src.Name,
			Timestamp: c.now().UTC().Format(time.RFC3339),
			Headlines: headlines,
			Snippets:  snippets,
			FullText:  truncate(strings.Join(text, " "), maxFullText),
		}
		if err := c.store.WriteSnapshot(i, snap); err != nil {
			errs = append(errs, err)
			continue
		}
		succeeded++
		latest = append(latest, headlines[:min(len(headlines), headlinesPerSource)]...)
	}

	if len(latest) > metadataHeadlines {
		latest = latest[:metadataHeadlines]
	}
	if err := c.store.WriteMetadata(Metadata{
		LastScrape:      started.UTC().Format(time.RFC3339),
		LatestHeadlines: latest,
	}); err != nil {
		return err
	}

	c.logger.Info("news collection finished",
		"sources", len(c.sources),
		"succeeded", succeeded,
		"headlines", len(latest),
		"duration_ms", c.now().Sub(started).Milliseconds(),
	)
	if succeeded == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// fetch downloads a page and returns its cleaned text segments.
func (c *Collector) fetch(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return extractText(io.LimitReader(resp.Body, maxPageBytes))
}

// extractText parses HTML and returns the visible text of each block element.
func extractText(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var (
		segments []string
		current  strings.Builder
	)
	flush := func() {
		if text := cleanText(current.String()); text != "" {
			segments = append(segments, text)
		}
		current.Reset()
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if blockElements[n.Data] {
				flush()
				defer flush()
			}
		case html.TextNode:
			current.WriteString(n.Data)
			current.WriteByte(' ')
		case html.CommentNode:
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	flush()
	return segments, nil
}

func cleanText(text string) string {
	text = nonASCIIRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// extractHeadlinesAndSnippets picks short keyword-bearing sentences as headlines and
// long passages as snippets.
func extractHeadlinesAndSnippets(segments []string) ([]string, []string) {
	var (
		headlines []string
		snippets  []string
		seen      = map[string]bool{}
	)
	for _, segment := range segments {
		parts := sentenceBreaks.Split(segment, -1)
		for i, part := range parts {
			part = strings.TrimSpace(part)
			if len(part) < minSegmentLength || seen[part] {
				continue
			}
			seen[part] = true
			if isHeadline(part) {
				if len(headlines) < maxHeadlines {
					headlines = append(headlines, part)
				}
				continue
			}
			if len(part) > headlineMaxLength && len(snippets) < maxSnippets && (i < len(parts)-1 || len(parts) == 1) {
				snippets = append(snippets, part)
			}
		}
	}
	return headlines, snippets
}

func isHeadline(text string) bool {
	if len(text) >= headlineMaxLength || strings.HasSuffix(text, ",") {
		return false
	}
	lower := strings.ToLower(text)
	for _, keyword := range newsKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
