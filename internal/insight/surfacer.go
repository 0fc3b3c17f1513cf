package insight

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"enterprise_sim/internal/advisory"
	"enterprise_sim/internal/domain"
	"enterprise_sim/internal/enterprise"
)

const (
	UnavailableSummary = "System online. Advisory service not configured for advanced analytics."
	FailedSummary      = "Analysis unavailable due to error."
	EmptySummary       = "Analysis unavailable."

	insightsLogMessage = "New predictive insights available."
)

type Config struct {
	// HealthEvery is the number of recorded log entries between summaries.
	HealthEvery int
	LogWindow   int
	MaxInsights int
}

func (c Config) withDefaults() Config {
	if c.HealthEvery <= 0 {
		c.HealthEvery = 5
	}
	if c.LogWindow <= 0 {
		c.LogWindow = 10
	}
	if c.MaxInsights <= 0 {
		c.MaxInsights = 2
	}
	return c
}

// Surfacer keeps the health summary and the prediction backlog fresh.
type Surfacer struct {
	state   *enterprise.State
	advisor advisory.Advisor
	cfg     Config
	logger  *log.Logger

	mu         sync.Mutex
	lastBucket int
}

func New(state *enterprise.State, advisor advisory.Advisor, cfg Config, logger *log.Logger) *Surfacer {
	if advisor == nil {
		advisor = advisory.Unavailable{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Surfacer{state: state, advisor: advisor, cfg: cfg.withDefaults(), logger: logger}
}

// MaybeRefreshHealth refreshes the summary when the log total has crossed a
// multiple of HealthEvery since the last refresh.
func (s *Surfacer) MaybeRefreshHealth(ctx context.Context) bool {
	bucket := s.state.LogTotal() / s.cfg.HealthEvery

	s.mu.Lock()
	due := bucket > s.lastBucket
	s.lastBucket = bucket
	s.mu.Unlock()

	if !due {
		return false
	}
	s.RefreshHealth(ctx)
	return true
}

// RefreshHealth asks for a new summary and replaces the displayed one.
func (s *Surfacer) RefreshHealth(ctx context.Context) string {
	metrics := s.state.Metrics()
	recent := s.state.RecentLogs(s.cfg.LogWindow)

	summary, err := s.advisor.SummarizeHealth(ctx, metrics, recent)
	switch {
	case errors.Is(err, advisory.ErrUnavailable):
		summary = UnavailableSummary
	case err != nil:
		s.logger.Printf("health summary failed: %v", err)
		summary = FailedSummary
	case strings.TrimSpace(summary) == "":
		summary = EmptySummary
	default:
		summary = strings.TrimSpace(summary)
	}
	s.state.SetAnalysis(summary)
	return summary
}

// RefreshInsights merges up to MaxInsights new predictions into the backlog.
// Failures yield nothing.
func (s *Surfacer) RefreshInsights(ctx context.Context) []domain.Prediction {
	items, err := s.advisor.PredictInsights(ctx, s.insightInput())
	if err != nil {
		if !errors.Is(err, advisory.ErrUnavailable) {
			s.logger.Printf("insight generation failed: %v", err)
		}
		return nil
	}

	preds := make([]domain.Prediction, 0, s.cfg.MaxInsights)
	for _, it := range items {
		if len(preds) == s.cfg.MaxInsights {
			break
		}
		msg := strings.TrimSpace(it.Message)
		if msg == "" {
			continue
		}
		preds = append(preds, domain.Prediction{
			Message:         msg,
			Severity:        it.Severity,
			SuggestedAction: strings.TrimSpace(it.SuggestedAction),
		})
	}
	if len(preds) == 0 {
		return nil
	}
	added := s.state.AddPredictions(preds)
	s.state.Record(domain.LogKindInfo, insightsLogMessage, "")
	return added
}

// Reset rewinds the refresh cadence, used after the aggregate is reset.
func (s *Surfacer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBucket = 0
}

func (s *Surfacer) insightInput() advisory.InsightInput {
	var in advisory.InsightInput
	for _, t := range s.state.Tasks() {
		if t.Status == domain.TaskStatusInProgress || t.Status == domain.TaskStatusNegotiating {
			in.ActiveTasks++
		}
	}
	agents := s.state.Agents()
	in.TotalAgents = len(agents)
	for _, a := range agents {
		if a.Status != domain.AgentStatusIdle {
			in.ActiveAgents++
		}
	}
	return in
}
