package enterprise

import (
	"fmt"

	"enterprise_sim/internal/domain"
)

// RegisterOutcome records a new ACTIVE outcome due one week from now.
func (s *State) RegisterOutcome(title, description string) domain.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := domain.Outcome{
		ID:          s.newID(),
		Title:       title,
		Description: description,
		TargetDate:  s.now().Add(outcomeHorizon),
		Status:      domain.OutcomeStatusActive,
	}
	s.outcomeOrder = append(s.outcomeOrder, o.ID)
	s.outcomes[o.ID] = o
	s.recordLocked(domain.LogKindInfo, "New Strategic Outcome Registered: "+title, "")
	return o
}

func (s *State) Outcome(id string) (domain.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outcomes[id]
	if !ok {
		return domain.Outcome{}, fmt.Errorf("%w: %s", ErrOutcomeNotFound, id)
	}
	return o, nil
}

func (s *State) Outcomes() []domain.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Outcome, 0, len(s.outcomeOrder))
	for _, id := range s.outcomeOrder {
		out = append(out, s.outcomes[id])
	}
	return out
}

// RecomputeOutcomes sets each outcome's progress to the mean progress of its
// tasks. Outcomes without tasks keep their previous values.
func (s *State) RecomputeOutcomes() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sums := make(map[string]float64, len(s.outcomes))
	counts := make(map[string]int, len(s.outcomes))
	for _, id := range s.taskOrder {
		t := s.tasks[id]
		sums[t.OutcomeID] += t.Progress
		counts[t.OutcomeID]++
	}
	for _, id := range s.outcomeOrder {
		n := counts[id]
		if n == 0 {
			continue
		}
		o := s.outcomes[id]
		o.Progress = sums[id] / float64(n)
		if o.Progress >= 100 {
			o.Status = domain.OutcomeStatusCompleted
		} else {
			o.Status = domain.OutcomeStatusActive
		}
		s.outcomes[id] = o
	}
}
