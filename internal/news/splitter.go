package news

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Default chunking used for news retrieval.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter breaks text into overlapping chunks, preferring to cut at paragraph,
// then line, then word boundaries. Sizes are measured in runes.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	splitter     textsplitter.RecursiveCharacter
}

// NewSplitter returns a recursive character splitter with the default separators.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(defaultSeparators),
		),
	}
}

// Split returns the non-empty chunks of text.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	raw, err := s.splitter.SplitText(text)
	if err != nil {
		raw = []string{text}
	}
	chunks := make([]string, 0, len(raw))
	for _, chunk := range raw {
		if trimmed := strings.TrimSpace(chunk); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}

// SplitDocuments splits each document and copies its metadata onto every chunk.
func (s *Splitter) SplitDocuments(docs []Document) []Document {
	var out []Document
	for _, doc := range docs {
		for _, chunk := range s.Split(doc.Content) {
			piece := doc
			piece.Content = chunk
			out = append(out, piece)
		}
	}
	return out
}
