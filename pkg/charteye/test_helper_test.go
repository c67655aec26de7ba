package charteye

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"charteye/internal/news"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

// stubGateway answers completions by feature name.
type stubGateway struct {
	mu       sync.Mutex
	replies  map[string]string
	err      error
	embedErr error
	vectors  func(texts []string) [][]float64
	requests []CompletionRequest
	embeds   int
}

func (g *stubGateway) Complete(_ context.Context, req CompletionRequest) (Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return Completion{}, g.err
	}
	return Completion{Model: "stub-model", Content: g.replies[req.Feature]}, nil
}

func (g *stubGateway) Embed(_ context.Context, texts []string) ([][]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.embeds++
	if g.embedErr != nil {
		return nil, g.embedErr
	}
	if g.vectors != nil {
		return g.vectors(texts), nil
	}
	return nil, errors.New("no vectors configured")
}

func (g *stubGateway) lastRequest(t *testing.T) CompletionRequest {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		t.Fatalf("expected a gateway request")
	}
	return g.requests[len(g.requests)-1]
}

type stubPayments struct {
	mu     sync.Mutex
	states map[string]string
	err    error
	calls  int
}

func (p *stubPayments) CreatePaymentLink(_ context.Context, userID string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "https://checkout.test/" + userID, nil
}

func (p *stubPayments) OrderState(_ context.Context, orderID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.states[orderID], nil
}

type stubObjects struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (s *stubObjects) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, key)
	return "https://cdn.test/" + key, nil
}

type stubNews struct {
	digest news.Digest
	docs   []news.Document
	err    error
}

func (s *stubNews) Digest() (news.Digest, error) {
	return s.digest, s.err
}

func (s *stubNews) Documents(int) ([]news.Document, error) {
	return s.docs, s.err
}

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// setupTestCore opens a Core over a temporary database with deterministic randomness.
func setupTestCore(t *testing.T, opts Options) *Core {
	t.Helper()
	if opts.DBPath == "" {
		opts.DBPath = filepath.Join(t.TempDir(), "test.db")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	core, err := OpenWithOptions(opts)
	if err != nil {
		t.Fatalf("failed to open test core: %v", err)
	}
	t.Cleanup(func() { _ = core.Close() })
	return core
}

func assertGradingRange(t *testing.T, g Grading, lo, hi float64) {
	t.Helper()
	for name, v := range map[string]float64{
		"patternClarity":     g.PatternClarity,
		"trendAlignment":     g.TrendAlignment,
		"riskReward":         g.RiskReward,
		"volumeConfirmation": g.VolumeConfirmation,
		"keyLevelProximity":  g.KeyLevelProximity,
		"overallGrade":       g.OverallGrade,
	} {
		if v < lo || v > hi {
			t.Fatalf("%s = %v outside [%v, %v]", name, v, lo, hi)
		}
	}
}
