package news

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestSplitterShortText(t *testing.T) {
	s := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	assert.Equal(t, []string{"HEADLINE: Gold steady"}, s.Split("HEADLINE: Gold steady"))
	assert.Empty(t, s.Split("   "))
}

func TestSplitterWordsWithOverlap(t *testing.T) {
	s := NewSplitter(20, 5)
	chunks := s.Split("aaaa bbbb cccc dddd eeee ffff")
	if assert.GreaterOrEqual(t, len(chunks), 2) {
		assert.True(t, strings.HasPrefix(chunks[0], "aaaa"))
		assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "ffff"))
	}
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 20)
		if i == 0 {
			continue
		}
		prev := strings.Fields(chunks[i-1])
		assert.Equal(t, prev[len(prev)-1], strings.Fields(chunk)[0], "chunk %d should repeat the previous tail", i)
	}
}

func TestSplitterFallsBackToCharacters(t *testing.T) {
	s := NewSplitter(10, 3)
	text := "abcdefghijklmnopqrstuvwxy"
	chunks := s.Split(text)
	if assert.Greater(t, len(chunks), 2) {
		assert.True(t, strings.HasPrefix(chunks[0], "abc"))
		assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "xy"))
	}
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 10)
		assert.Contains(t, text, chunk)
	}
}

func TestSplitterPrefersParagraphs(t *testing.T) {
	s := NewSplitter(30, 0)
	chunks := s.Split("first paragraph here\n\nsecond paragraph here")
	assert.Equal(t, []string{"first paragraph here", "second paragraph here"}, chunks)
}

func TestNewSplitterNormalizesSizes(t *testing.T) {
	s := NewSplitter(0, -1)
	assert.Equal(t, DefaultChunkSize, s.ChunkSize)
	assert.Equal(t, 0, s.ChunkOverlap)

	s = NewSplitter(10, 10)
	assert.Equal(t, 0, s.ChunkOverlap)
}

func TestSplitDocumentsCopiesMetadata(t *testing.T) {
	s := NewSplitter(20, 5)
	docs := s.SplitDocuments([]Document{{
		Content:   "aaaa bbbb cccc dddd eeee ffff",
		Source:    "Wire",
		Timestamp: "2024-03-15T12:00:00Z",
		Kind:      "snippet",
	}})
	if assert.GreaterOrEqual(t, len(docs), 2) {
		for _, doc := range docs {
			assert.Equal(t, "Wire", doc.Source)
			assert.Equal(t, "2024-03-15T12:00:00Z", doc.Timestamp)
			assert.Equal(t, "snippet", doc.Kind)
		}
		assert.True(t, strings.HasSuffix(docs[len(docs)-1].Content, "ffff"))
	}
}

// Property: no chunk exceeds the chunk size and every word of the input survives.
func TestProperty_SplitterBoundsChunks(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	splitter := NewSplitter(50, 10)

	properties.Property("chunks are bounded and lose no words", prop.ForAll(
		func(words []string) bool {
			text := strings.Join(words, " ")
			chunks := splitter.Split(text)
			joined := strings.Join(chunks, " ")
			for _, chunk := range chunks {
				if chunk == "" || utf8.RuneCountInString(chunk) > splitter.ChunkSize {
					return false
				}
			}
			for _, word := range words {
				if len(word) <= splitter.ChunkSize && !strings.Contains(joined, word) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
