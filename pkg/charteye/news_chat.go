package charteye

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charteye/internal/news"
)

const (
	newsChatFiles   = 20
	newsChatTopK    = 10
	newsChatNoData  = "I apologize, but I don't have any recent news data available to answer your question. Please try again later when more news data is available."
	chatHistoryTurn = 20
)

const newsChatPromptTemplate = `You are an expert financial news analyst assistant. Use the following pieces of financial news context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
Be specific and reference the news you're basing your answer on.

Financial news context about %[1]s:
%[2]s

Previous chat history:
%[3]s

Question: %[4]s

Answer: Let me analyze the latest financial news about %[1]s to answer your question.`

// ChatTurn is one previous message in a news chat.
type ChatTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewsChatRequest is a question about recent news.
type NewsChatRequest struct {
	Message  string
	Currency string
	History  []ChatTurn
}

// NewsChatReply answers a news chat question.
type NewsChatReply struct {
	Response string `json:"response"`
	Provenance
}

// NewsChat answers a question using the most relevant recent news chunks as context.
func (c *Core) NewsChat(ctx context.Context, req NewsChatRequest) (*NewsChatReply, error) {
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return nil, NewError(ErrCodeInvalidInput, "Missing message")
	}
	currency, err := NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	var docs []news.Document
	if c.news != nil {
		docs, err = c.news.Documents(newsChatFiles)
		if err != nil {
			c.logger.Warn("load news documents failed", "err", err)
			docs = nil
		}
	}
	if len(docs) == 0 {
		return &NewsChatReply{Response: newsChatNoData}, nil
	}

	chunks := news.NewSplitter(news.DefaultChunkSize, news.DefaultChunkOverlap).SplitDocuments(docs)
	relevant := c.rankChunks(ctx, question, chunks, newsChatTopK)

	prompt := fmt.Sprintf(newsChatPromptTemplate, currency, formatNewsContext(relevant), formatChatHistory(req.History), question)
	outcome := complete(ctx, c, CompletionRequest{
		Feature:     "news_chat",
		UserPrompt:  prompt,
		MaxTokens:   1000,
		Temperature: temperature(0.7),
	}, func(completion Completion) (string, error) {
		return strings.TrimSpace(completion.Content), nil
	}, func(FallbackReason) string {
		return syntheticNewsChat(currency, relevant)
	})

	return &NewsChatReply{Response: outcome.Value, Provenance: outcome.Provenance()}, nil
}

// rankChunks orders chunks by embedding similarity to the question, falling back to
// term overlap when embeddings are unavailable.
func (c *Core) rankChunks(ctx context.Context, question string, chunks []news.Document, k int) []news.Document {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	var matches []news.Match
	if c.ai != nil {
		embedCtx, cancel := context.WithTimeout(ctx, c.aiTimeout)
		vectors, err := c.ai.Embed(embedCtx, append(texts, question))
		cancel()
		if err == nil && len(vectors) == len(texts)+1 {
			matches = news.RankByVector(vectors[len(texts)], vectors[:len(texts)], k)
		} else {
			if err == nil {
				err = fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts)+1)
			}
			c.logger.Warn("news embedding failed; ranking by term overlap", "err", err)
		}
	}
	if matches == nil {
		matches = news.RankByTerms(question, texts, k)
	}

	result := make([]news.Document, 0, len(matches))
	for _, m := range matches {
		result = append(result, chunks[m.Index])
	}
	return result
}

func formatNewsContext(docs []news.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		when := "Unknown time"
		if t, err := time.Parse(time.RFC3339, doc.Timestamp); err == nil {
			when = t.UTC().Format("Jan 2, 2006 15:04 MST")
		} else if doc.Timestamp != "" {
			when = doc.Timestamp
		}
		parts = append(parts, fmt.Sprintf("[%s from %s] %s", when, defaultString(doc.Source, "Unknown source"), doc.Content))
	}
	return strings.Join(parts, "\n\n")
}

func formatChatHistory(history []ChatTurn) string {
	if len(history) > chatHistoryTurn {
		history = history[len(history)-chatHistoryTurn:]
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", defaultString(turn.Role, "user"), content))
	}
	return strings.Join(lines, "\n")
}

func syntheticNewsChat(currency string, docs []news.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I can't reach the analysis service right now, but here are the most relevant recent %s news items:\n\n", currency)
	for i, doc := range docs {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "- %s (%s)\n", doc.Content, defaultString(doc.Source, "Unknown source"))
	}
	return strings.TrimSpace(b.String())
}
