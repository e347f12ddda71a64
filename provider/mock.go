package provider

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/penlight/vitalsum/models"
)

// Mock is a test double for the AI provider. The zero value returns a
// canned successful result.
type Mock struct {
	// AnalyzeFunc overrides the response when set.
	AnalyzeFunc func(ctx context.Context, req AnalysisRequest) (*Result, error)
	// Block, when non-nil, is received from before responding, letting
	// tests hold a call in flight.
	Block chan struct{}

	calls int64
}

// Analyze implements Caller.
func (m *Mock) Analyze(ctx context.Context, req AnalysisRequest) (*Result, error) {
	atomic.AddInt64(&m.calls, 1)

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return &Result{
		AI: models.AIResult{
			Headline:      "Solid recovery, lean into an easy session today",
			EnergyComment: "Energy should hold through the afternoon",
			DataQuality:   "complete",
			Model:         "mock-1",
		},
		Cost:    0.01,
		Latency: 5 * time.Millisecond,
	}, nil
}

// Calls returns how many times Analyze was invoked.
func (m *Mock) Calls() int64 {
	return atomic.LoadInt64(&m.calls)
}
