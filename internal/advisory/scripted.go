package advisory

import (
	"context"
	"sync"

	"enterprise_sim/internal/domain"
)

// Scripted is an in-memory Advisor driven by per-operation funcs. A nil func
// behaves like Unavailable. Calls are counted per operation.
type Scripted struct {
	DecomposeFunc func(ctx context.Context, title, constraints string) ([]domain.TaskSpec, error)
	NegotiateFunc func(ctx context.Context, task domain.Task, candidates []domain.Agent) (Bid, error)
	SummarizeFunc func(ctx context.Context, metrics domain.MetricsSnapshot, recentLogs []domain.LogEntry) (string, error)
	PredictFunc   func(ctx context.Context, in InsightInput) ([]Insight, error)

	mu    sync.Mutex
	calls map[string]int
}

func (s *Scripted) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Scripted) count(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[op]++
}

func (s *Scripted) Decompose(ctx context.Context, title, constraints string) ([]domain.TaskSpec, error) {
	s.count("decompose")
	if s.DecomposeFunc == nil {
		return nil, ErrUnavailable
	}
	return s.DecomposeFunc(ctx, title, constraints)
}

func (s *Scripted) Negotiate(ctx context.Context, task domain.Task, candidates []domain.Agent) (Bid, error) {
	s.count("negotiate")
	if s.NegotiateFunc == nil {
		return Bid{}, ErrUnavailable
	}
	return s.NegotiateFunc(ctx, task, candidates)
}

func (s *Scripted) SummarizeHealth(ctx context.Context, metrics domain.MetricsSnapshot, recentLogs []domain.LogEntry) (string, error) {
	s.count("summarize")
	if s.SummarizeFunc == nil {
		return "", ErrUnavailable
	}
	return s.SummarizeFunc(ctx, metrics, recentLogs)
}

func (s *Scripted) PredictInsights(ctx context.Context, in InsightInput) ([]Insight, error) {
	s.count("predict")
	if s.PredictFunc == nil {
		return nil, ErrUnavailable
	}
	return s.PredictFunc(ctx, in)
}
