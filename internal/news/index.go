package news

import (
	"sort"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

// Match is a ranked chunk position with its similarity score.
type Match struct {
	Index int
	Score float64
}

// RankByVector returns the k vectors most similar to query by cosine similarity, best first.
// Vectors whose length differs from the query are skipped.
func RankByVector(query []float64, vectors [][]float64, k int) []Match {
	queryNorm := floats.Norm(query, 2)
	matches := make([]Match, 0, len(vectors))
	for i, v := range vectors {
		if len(v) != len(query) || len(v) == 0 {
			continue
		}
		norm := floats.Norm(v, 2)
		score := 0.0
		if norm > 0 && queryNorm > 0 {
			score = floats.Dot(query, v) / (norm * queryNorm)
		}
		matches = append(matches, Match{Index: i, Score: score})
	}
	return topK(matches, k)
}

// RankByTerms scores texts by the share of query terms they contain. It is the ranking
// used when embeddings are not available.
func RankByTerms(query string, texts []string, k int) []Match {
	terms := termSet(query)
	matches := make([]Match, 0, len(texts))
	for i, text := range texts {
		score := 0.0
		if len(terms) > 0 {
			words := termSet(text)
			hits := 0
			for term := range terms {
				if _, ok := words[term]; ok {
					hits++
				}
			}
			score = float64(hits) / float64(len(terms))
		}
		matches = append(matches, Match{Index: i, Score: score})
	}
	return topK(matches, k)
}

func topK(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func termSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopWords[f] {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "what": true, "with": true,
	"about": true, "this": true, "that": true, "from": true, "how": true, "news": true,
	"headline": true, "snippet": true, "was": true, "has": true, "have": true,
}
