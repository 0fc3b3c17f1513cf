package enterprise

import (
	"fmt"

	"enterprise_sim/internal/domain"
)

// AddPredictions prepends new insights and trims the backlog to capacity.
// Ids and timestamps are assigned here.
func (s *State) AddPredictions(items []domain.Prediction) []domain.Prediction {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	added := make([]domain.Prediction, 0, len(items))
	for _, p := range items {
		p.ID = s.newID()
		p.Timestamp = now
		p.Severity = domain.NormalizeSeverity(p.Severity)
		added = append(added, p)
	}
	merged := append(append([]domain.Prediction(nil), added...), s.predictions...)
	if len(merged) > PredictionCapacity {
		merged = merged[:PredictionCapacity]
	}
	s.predictions = merged
	return added
}

func (s *State) Predictions() []domain.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Prediction(nil), s.predictions...)
}

func (s *State) DismissPrediction(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.predictions {
		if p.ID != id {
			continue
		}
		next := make([]domain.Prediction, 0, len(s.predictions)-1)
		next = append(next, s.predictions[:i]...)
		next = append(next, s.predictions[i+1:]...)
		s.predictions = next
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPredictionNotFound, id)
}
