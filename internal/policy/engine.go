package policy

import (
	"enterprise_sim/internal/domain"
)

// Engine decides which agents may bid for a task.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

// Eligible reports whether an agent can enter a negotiation right now.
func (e *Engine) Eligible(a domain.Agent) bool {
	return a.Status == domain.AgentStatusIdle || a.Status == domain.AgentStatusNegotiating
}

// Candidates returns eligible agents not yet claimed in the current batch,
// in roster order.
func (e *Engine) Candidates(agents []domain.Agent, claimed map[string]struct{}) []domain.Agent {
	out := make([]domain.Agent, 0, len(agents))
	for _, a := range agents {
		if !e.Eligible(a) {
			continue
		}
		if _, taken := claimed[a.ID]; taken {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Capable returns the candidates sharing at least one required capability.
func (e *Engine) Capable(task domain.Task, candidates []domain.Agent) []domain.Agent {
	out := make([]domain.Agent, 0, len(candidates))
	for _, a := range candidates {
		if a.HasCapability(task.RequiredCapabilities) {
			out = append(out, a)
		}
	}
	return out
}

// Shortlist is the set offered to the arbiter. The capability match is a hint,
// not a gate: when nobody matches, every candidate is offered.
func (e *Engine) Shortlist(task domain.Task, candidates []domain.Agent) []domain.Agent {
	capable := e.Capable(task, candidates)
	if len(capable) > 0 {
		return capable
	}
	return append([]domain.Agent(nil), candidates...)
}

// Fallback picks a winner without the arbiter: the first capable candidate,
// else the first candidate. ok is false only when candidates is empty.
func (e *Engine) Fallback(task domain.Task, candidates []domain.Agent) (domain.Agent, bool) {
	if capable := e.Capable(task, candidates); len(capable) > 0 {
		return capable[0], true
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return domain.Agent{}, false
}
