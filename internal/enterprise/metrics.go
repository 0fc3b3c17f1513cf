package enterprise

import (
	"enterprise_sim/internal/domain"
)

const sampleTimeLayout = "15:04:05"

// ComputeMetrics projects the metrics snapshot from the current collections.
// It holds no state of its own.
func ComputeMetrics(agents []domain.Agent, tasks []domain.Task, history []domain.HistorySample) domain.MetricsSnapshot {
	m := domain.MetricsSnapshot{
		Efficiency: meanEfficiency(agents),
		History:    append([]domain.HistorySample(nil), history...),
	}
	for _, t := range tasks {
		if t.Status == domain.TaskStatusCompleted {
			m.TotalCost += t.Budget
			m.CompletedTasks++
		}
	}
	for _, a := range agents {
		if a.Status != domain.AgentStatusIdle && a.Status != domain.AgentStatusOffline {
			m.ActiveAgents++
		}
	}
	return m
}

func (s *State) Metrics() domain.MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeMetrics(s.agentsLocked(), s.tasksLocked(), s.history)
}

// AppendHistorySample records committed spend (COMPLETED and IN_PROGRESS budgets)
// and mean efficiency, keeping the newest HistoryCapacity samples.
func (s *State) AppendHistorySample() domain.HistorySample {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample := domain.HistorySample{Time: s.now().Format(sampleTimeLayout)}
	for _, id := range s.taskOrder {
		t := s.tasks[id]
		if t.Status == domain.TaskStatusCompleted || t.Status == domain.TaskStatusInProgress {
			sample.Cost += t.Budget
		}
	}
	sample.Efficiency = meanEfficiency(s.agentsLocked())

	history := append(append([]domain.HistorySample(nil), s.history...), sample)
	if len(history) > HistoryCapacity {
		history = history[len(history)-HistoryCapacity:]
	}
	s.history = history
	s.publish(domain.Event{Kind: domain.EventKindSample, Sample: &sample, At: s.now()})
	return sample
}

func (s *State) History() []domain.HistorySample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.HistorySample(nil), s.history...)
}

func meanEfficiency(agents []domain.Agent) float64 {
	if len(agents) == 0 {
		return 0
	}
	var sum float64
	for _, a := range agents {
		sum += a.Efficiency
	}
	return sum / float64(len(agents))
}
