package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"enterprise_sim/internal/advisory"
	"enterprise_sim/internal/domain"
	"enterprise_sim/internal/enterprise"
	"enterprise_sim/internal/policy"
)

const fallbackReason = "Fallback: first available agent selected (advisory service not configured)."

var (
	ErrNoCandidates     = errors.New("no available agents")
	ErrWinnerNotOffered = errors.New("winner was not among the offered candidates")
	ErrNegativeCost     = errors.New("negotiated cost is negative")
)

// Result summarizes one negotiation pass.
type Result struct {
	Assigned  int
	Fallbacks int
	Reverted  int
}

type Engine struct {
	state   *enterprise.State
	advisor advisory.Advisor
	policy  *policy.Engine
	logger  *log.Logger
}

func New(state *enterprise.State, advisor advisory.Advisor, p *policy.Engine, logger *log.Logger) *Engine {
	if advisor == nil {
		advisor = advisory.Unavailable{}
	}
	if p == nil {
		p = policy.New()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{state: state, advisor: advisor, policy: p, logger: logger}
}

// Run negotiates every PENDING task in ledger order, one at a time. An agent
// won earlier in the pass is not offered again in the same pass. Failed
// negotiations put the task back to PENDING for the next pass.
func (e *Engine) Run(ctx context.Context) Result {
	var res Result
	claimed := make(map[string]struct{})
	for _, pending := range e.state.TasksWithStatus(domain.TaskStatusPending) {
		if ctx.Err() != nil {
			break
		}
		task, err := e.state.BeginNegotiation(pending.ID)
		if err != nil {
			// Deleted or moved since the pass started.
			continue
		}
		e.state.Record(domain.LogKindNegotiation, "Initiating bid protocol for task: "+task.Title, "")

		agent, bid, fallback, err := e.negotiate(ctx, task, claimed)
		if err != nil {
			e.revert(task, err)
			res.Reverted++
			continue
		}
		claimed[agent.ID] = struct{}{}
		if fallback {
			res.Fallbacks++
		}
		res.Assigned++
		e.state.Record(domain.LogKindSuccess, "Task assigned to "+agent.Name, bid.Reason)
	}
	return res
}

func (e *Engine) negotiate(ctx context.Context, task domain.Task, claimed map[string]struct{}) (domain.Agent, advisory.Bid, bool, error) {
	candidates := e.policy.Candidates(e.state.Agents(), claimed)
	if len(candidates) == 0 {
		return domain.Agent{}, advisory.Bid{}, false, ErrNoCandidates
	}
	offered := e.policy.Shortlist(task, candidates)

	fallback := false
	bid, err := e.advisor.Negotiate(ctx, task, offered)
	switch {
	case errors.Is(err, advisory.ErrUnavailable):
		winner, _ := e.policy.Fallback(task, offered)
		bid = advisory.Bid{WinnerID: winner.ID, Reason: fallbackReason, AdjustedCost: task.Budget}
		fallback = true
	case err != nil:
		return domain.Agent{}, advisory.Bid{}, false, err
	}

	if !contains(offered, bid.WinnerID) {
		return domain.Agent{}, advisory.Bid{}, false, fmt.Errorf("%w: %w: %q", advisory.ErrCallFailed, ErrWinnerNotOffered, bid.WinnerID)
	}
	if bid.AdjustedCost < 0 {
		return domain.Agent{}, advisory.Bid{}, false, fmt.Errorf("%w: %w: %d", advisory.ErrCallFailed, ErrNegativeCost, bid.AdjustedCost)
	}

	_, agent, err := e.state.Assign(task.ID, bid.WinnerID, bid.AdjustedCost)
	if err != nil {
		return domain.Agent{}, advisory.Bid{}, false, err
	}
	return agent, bid, fallback, nil
}

func (e *Engine) revert(task domain.Task, cause error) {
	if _, err := e.state.RevertNegotiation(task.ID); err != nil {
		e.logger.Printf("negotiation revert failed task=%s: %v", task.ID, err)
	}
	e.logger.Printf("negotiation failed task=%s title=%q: %v", task.ID, task.Title, cause)
	e.state.Record(domain.LogKindAlert, "Negotiation failed for "+task.Title, cause.Error())
}

func contains(agents []domain.Agent, id string) bool {
	for _, a := range agents {
		if a.ID == id {
			return true
		}
	}
	return false
}
