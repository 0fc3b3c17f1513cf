package enterprise

import (
	"fmt"

	"enterprise_sim/internal/domain"
)

// Tasks lists the ledger in creation order.
func (s *State) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasksLocked()
}

func (s *State) tasksLocked() []domain.Task {
	out := make([]domain.Task, 0, len(s.taskOrder))
	for _, id := range s.taskOrder {
		out = append(out, s.tasks[id].Clone())
	}
	return out
}

func (s *State) Task(id string) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.Clone(), nil
}

// TasksWithStatus returns the tasks in a given status, in ledger order.
func (s *State) TasksWithStatus(status domain.TaskStatus) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0)
	for _, id := range s.taskOrder {
		if t := s.tasks[id]; t.Status == status {
			out = append(out, t.Clone())
		}
	}
	return out
}

// CreateTasksForOutcome adds one PENDING task per spec. Deadlines inherit the
// outcome target date.
func (s *State) CreateTasksForOutcome(outcomeID string, specs []domain.TaskSpec) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome, ok := s.outcomes[outcomeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutcomeNotFound, outcomeID)
	}
	created := make([]domain.Task, 0, len(specs))
	for _, spec := range specs {
		budget := spec.Budget
		if budget < 0 {
			budget = 0
		}
		t := domain.Task{
			ID:                   s.newID(),
			Title:                spec.Title,
			Description:          spec.Description,
			RequiredCapabilities: append([]string(nil), spec.RequiredCapabilities...),
			Budget:               budget,
			Deadline:             outcome.TargetDate,
			Priority:             domain.NormalizePriority(spec.Priority),
			Status:               domain.TaskStatusPending,
			OutcomeID:            outcomeID,
		}
		s.taskOrder = append(s.taskOrder, t.ID)
		s.tasks[t.ID] = t
		created = append(created, t.Clone())
	}
	return created, nil
}

// DeleteTask removes a task, but only while it is PENDING.
func (s *State) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if t.Status != domain.TaskStatusPending {
		return fmt.Errorf("%w: %s is %s", ErrTaskNotPending, id, t.Status)
	}
	delete(s.tasks, id)
	for i, tid := range s.taskOrder {
		if tid == id {
			s.taskOrder = append(s.taskOrder[:i:i], s.taskOrder[i+1:]...)
			break
		}
	}
	return nil
}

// AdvanceProgress adds delta to an IN_PROGRESS task, clamped to [0,100].
// Reaching 100 completes the task and frees its agent; completed reports that.
func (s *State) AdvanceProgress(id string, delta float64) (completed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if t.Status != domain.TaskStatusInProgress {
		return false, fmt.Errorf("%w: advance %s in %s", ErrInvalidTransition, id, t.Status)
	}
	if delta < 0 {
		delta = 0
	}
	t.Progress = clamp(t.Progress+delta, 0, 100)
	if t.Progress < 100 {
		s.tasks[id] = t
		return false, nil
	}

	t.Status = domain.TaskStatusCompleted
	s.tasks[id] = t
	if a, ok := s.agents[t.AssignedAgentID]; ok && a.CurrentTaskID == t.ID {
		a.Status = domain.AgentStatusIdle
		a.CurrentTaskID = ""
		a.CurrentTask = ""
		s.agents[a.ID] = a
	}
	s.recordLocked(domain.LogKindSuccess, "Task Completed: "+t.Title, "")
	return true, nil
}

// BeginNegotiation moves a PENDING task to NEGOTIATING.
func (s *State) BeginNegotiation(id string) (domain.Task, error) {
	return s.transition(id, domain.TaskStatusPending, domain.TaskStatusNegotiating)
}

// RevertNegotiation moves a NEGOTIATING task back to PENDING for the next cycle.
func (s *State) RevertNegotiation(id string) (domain.Task, error) {
	return s.transition(id, domain.TaskStatusNegotiating, domain.TaskStatusPending)
}

func (s *State) transition(id string, from, to domain.TaskStatus) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if t.Status != from {
		return domain.Task{}, fmt.Errorf("%w: %s is %s, want %s", ErrInvalidTransition, id, t.Status, from)
	}
	t.Status = to
	s.tasks[id] = t
	return t.Clone(), nil
}

// Assign closes a negotiation: the task becomes IN_PROGRESS at the agreed cost and
// the agent becomes WORKING on it, in one step.
func (s *State) Assign(taskID, agentID string, cost int) (domain.Task, domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return domain.Task{}, domain.Agent{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if t.Status != domain.TaskStatusNegotiating {
		return domain.Task{}, domain.Agent{}, fmt.Errorf("%w: assign %s in %s", ErrInvalidTransition, taskID, t.Status)
	}
	a, ok := s.agents[agentID]
	if !ok {
		return domain.Task{}, domain.Agent{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if a.Status != domain.AgentStatusIdle && a.Status != domain.AgentStatusNegotiating {
		return domain.Task{}, domain.Agent{}, fmt.Errorf("%w: %s is %s", ErrAgentUnavailable, agentID, a.Status)
	}
	if cost < 0 {
		cost = 0
	}
	t.Status = domain.TaskStatusInProgress
	t.AssignedAgentID = agentID
	t.Budget = cost
	a.Status = domain.AgentStatusWorking
	a.CurrentTaskID = t.ID
	a.CurrentTask = t.Title
	s.tasks[taskID] = t
	s.agents[agentID] = a
	return t.Clone(), a.Clone(), nil
}
