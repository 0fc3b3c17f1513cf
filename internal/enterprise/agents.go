package enterprise

import (
	"fmt"

	"enterprise_sim/internal/domain"
)

const (
	minEfficiency = 50
	maxEfficiency = 100
)

// Agents lists the roster in registration order.
func (s *State) Agents() []domain.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentsLocked()
}

func (s *State) agentsLocked() []domain.Agent {
	out := make([]domain.Agent, 0, len(s.agentOrder))
	for _, id := range s.agentOrder {
		out = append(out, s.agents[id].Clone())
	}
	return out
}

func (s *State) Agent(id string) (domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return domain.Agent{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return a.Clone(), nil
}

// SetAgentStatus moves the agent to status. WORKING requires taskID to name an
// IN_PROGRESS task already assigned to the agent; OFFLINE resets any held task
// the way MarkOffline does. Other statuses are refused while a task is held.
func (s *State) SetAgentStatus(id string, status domain.AgentStatus, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	switch status {
	case domain.AgentStatusWorking:
		t, ok := s.tasks[taskID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
		}
		if t.Status != domain.TaskStatusInProgress || t.AssignedAgentID != id {
			return fmt.Errorf("%w: task %s is %s for %q, not in progress for %s",
				ErrInvalidTransition, t.ID, t.Status, t.AssignedAgentID, id)
		}
		a.CurrentTaskID = t.ID
		a.CurrentTask = t.Title
	case domain.AgentStatusOffline:
		s.markOfflineLocked(a)
		return nil
	case domain.AgentStatusIdle, domain.AgentStatusNegotiating, domain.AgentStatusMaintenance:
		if held := s.heldTaskLocked(id); held != "" {
			return fmt.Errorf("%w: %s holds %s", ErrAgentBusy, id, held)
		}
		a.CurrentTaskID = ""
		a.CurrentTask = ""
	default:
		return fmt.Errorf("%w: unknown agent status %q", ErrInvalidTransition, status)
	}
	a.Status = status
	s.agents[id] = a
	return nil
}

func (s *State) heldTaskLocked(agentID string) string {
	for _, taskID := range s.taskOrder {
		t := s.tasks[taskID]
		if t.AssignedAgentID == agentID && t.Status == domain.TaskStatusInProgress {
			return taskID
		}
	}
	return ""
}

// AdjustEfficiency shifts efficiency by delta, clamped to [50,100].
func (s *State) AdjustEfficiency(id string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	a.Efficiency = clamp(a.Efficiency+delta, minEfficiency, maxEfficiency)
	s.agents[id] = a
	return a.Efficiency, nil
}

// DriftEfficiency adds a fresh delta() to every agent, clamped to [50,100].
func (s *State) DriftEfficiency(delta func() float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.agentOrder {
		a := s.agents[id]
		a.Efficiency = clamp(a.Efficiency+delta(), minEfficiency, maxEfficiency)
		s.agents[id] = a
	}
}

// MarkOffline takes the agent out of the pool. Any IN_PROGRESS task it held goes
// back to PENDING with progress reset. The ids of reset tasks are returned.
func (s *State) MarkOffline(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return s.markOfflineLocked(a), nil
}

func (s *State) markOfflineLocked(a domain.Agent) []string {
	a.Status = domain.AgentStatusOffline
	a.CurrentTaskID = ""
	a.CurrentTask = ""
	s.agents[a.ID] = a

	var reset []string
	for _, taskID := range s.taskOrder {
		t := s.tasks[taskID]
		if t.AssignedAgentID != a.ID || t.Status != domain.TaskStatusInProgress {
			continue
		}
		t.Status = domain.TaskStatusPending
		t.Progress = 0
		t.AssignedAgentID = ""
		s.tasks[taskID] = t
		reset = append(reset, taskID)
	}
	return reset
}

// OnlineAgents lists agents whose status is not OFFLINE.
func (s *State) OnlineAgents() []domain.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Agent, 0, len(s.agentOrder))
	for _, id := range s.agentOrder {
		if a := s.agents[id]; a.Status != domain.AgentStatusOffline {
			out = append(out, a.Clone())
		}
	}
	return out
}
