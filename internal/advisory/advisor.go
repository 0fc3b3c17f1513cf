package advisory

import (
	"context"
	"errors"

	"enterprise_sim/internal/domain"
)

var (
	// ErrUnavailable means no advisory backend is configured. Callers switch to
	// their deterministic fallback.
	ErrUnavailable = errors.New("advisory service unavailable")
	// ErrCallFailed wraps every failure of a configured backend: transport,
	// status, or unparsable output.
	ErrCallFailed = errors.New("advisory call failed")
)

// Bid is the arbiter's pick for one task.
type Bid struct {
	WinnerID     string `json:"winnerId"`
	Reason       string `json:"reason"`
	AdjustedCost int    `json:"adjustedCost"`
}

type Insight struct {
	Message         string          `json:"message"`
	Severity        domain.Severity `json:"severity"`
	SuggestedAction string          `json:"suggestedAction"`
}

type InsightInput struct {
	ActiveTasks  int `json:"activeTasks"`
	ActiveAgents int `json:"activeAgents"`
	TotalAgents  int `json:"totalAgents"`
}

// Advisor is the decision-support capability behind decomposition, negotiation,
// health summaries and predictive insights.
type Advisor interface {
	Decompose(ctx context.Context, title, constraints string) ([]domain.TaskSpec, error)
	Negotiate(ctx context.Context, task domain.Task, candidates []domain.Agent) (Bid, error)
	SummarizeHealth(ctx context.Context, metrics domain.MetricsSnapshot, recentLogs []domain.LogEntry) (string, error)
	PredictInsights(ctx context.Context, in InsightInput) ([]Insight, error)
}

// Unavailable is the advisor used when nothing is configured.
type Unavailable struct{}

func (Unavailable) Decompose(context.Context, string, string) ([]domain.TaskSpec, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Negotiate(context.Context, domain.Task, []domain.Agent) (Bid, error) {
	return Bid{}, ErrUnavailable
}

func (Unavailable) SummarizeHealth(context.Context, domain.MetricsSnapshot, []domain.LogEntry) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) PredictInsights(context.Context, InsightInput) ([]Insight, error) {
	return nil, ErrUnavailable
}
