package negotiation

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enterprise_sim/internal/advisory"
	"enterprise_sim/internal/domain"
	"enterprise_sim/internal/enterprise"
	"enterprise_sim/internal/policy"
)

func newEngine(t *testing.T, roster []domain.Agent, adv advisory.Advisor) (*Engine, *enterprise.State) {
	t.Helper()
	state := enterprise.New(roster)
	return New(state, adv, policy.New(), log.New(io.Discard, "", 0)), state
}

func addTasks(t *testing.T, state *enterprise.State, specs ...domain.TaskSpec) []domain.Task {
	t.Helper()
	o := state.RegisterOutcome("Quarter close", "")
	tasks, err := state.CreateTasksForOutcome(o.ID, specs)
	require.NoError(t, err)
	return tasks
}

func offline(agents []domain.Agent, keep ...string) []domain.Agent {
	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	out := make([]domain.Agent, 0, len(agents))
	for _, a := range agents {
		if !keepSet[a.ID] {
			a.Status = domain.AgentStatusOffline
		}
		out = append(out, a)
	}
	return out
}

func TestFallbackAssignsOnlyFinanceAgent(t *testing.T) {
	engine, state := newEngine(t, offline(domain.DefaultRoster(), "s1"), advisory.Unavailable{})
	tasks := addTasks(t, state, domain.TaskSpec{Title: "Reconcile ledger", RequiredCapabilities: []string{"Finance"}, Budget: 800})

	res := engine.Run(context.Background())
	assert.Equal(t, Result{Assigned: 1, Fallbacks: 1}, res)

	task, err := state.Task(tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, task.Status)
	assert.Equal(t, "s1", task.AssignedAgentID)
	assert.Equal(t, 800, task.Budget)

	agent, err := state.Agent("s1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusWorking, agent.Status)
	assert.Equal(t, "Reconcile ledger", agent.CurrentTask)

	logs := state.Logs()
	require.GreaterOrEqual(t, len(logs), 2)
	assert.Equal(t, "Task assigned to Netsuite ERP Connector", logs[0].Message)
	assert.Equal(t, fallbackReason, logs[0].Details)
	assert.Equal(t, "Initiating bid protocol for task: Reconcile ledger", logs[1].Message)
}

func TestFallbackNeverStarvesWhileAgentsExist(t *testing.T) {
	engine, state := newEngine(t, offline(domain.DefaultRoster(), "a1", "h1"), advisory.Unavailable{})
	tasks := addTasks(t, state,
		domain.TaskSpec{Title: "Welding", RequiredCapabilities: []string{"Welding"}},
		domain.TaskSpec{Title: "Approve", RequiredCapabilities: []string{"Approval"}},
		domain.TaskSpec{Title: "Third"},
	)

	res := engine.Run(context.Background())
	assert.Equal(t, 2, res.Assigned)
	assert.Equal(t, 1, res.Reverted)

	first, _ := state.Task(tasks[0].ID)
	second, _ := state.Task(tasks[1].ID)
	third, _ := state.Task(tasks[2].ID)
	assert.Equal(t, "a1", first.AssignedAgentID, "nobody matches, first candidate wins")
	assert.Equal(t, "h1", second.AssignedAgentID)
	assert.Equal(t, domain.TaskStatusPending, third.Status)
	assert.Empty(t, third.AssignedAgentID)

	alert := state.Logs()[0]
	assert.Equal(t, domain.LogKindAlert, alert.Kind)
	assert.Equal(t, "Negotiation failed for Third", alert.Message)
	assert.Contains(t, alert.Details, ErrNoCandidates.Error())
}

func TestBatchExcludesClaimedAgents(t *testing.T) {
	var offered [][]string
	adv := &advisory.Scripted{
		NegotiateFunc: func(_ context.Context, task domain.Task, candidates []domain.Agent) (advisory.Bid, error) {
			ids := make([]string, 0, len(candidates))
			for _, a := range candidates {
				ids = append(ids, a.ID)
			}
			offered = append(offered, ids)
			return advisory.Bid{WinnerID: candidates[0].ID, Reason: "best fit", AdjustedCost: task.Budget + 100}, nil
		},
	}
	engine, state := newEngine(t, nil, adv)
	tasks := addTasks(t, state,
		domain.TaskSpec{Title: "Report A", RequiredCapabilities: []string{"Reporting"}, Budget: 1000},
		domain.TaskSpec{Title: "Report B", RequiredCapabilities: []string{"Reporting"}, Budget: 2000},
	)

	res := engine.Run(context.Background())
	require.Equal(t, 2, res.Assigned)
	assert.Zero(t, res.Fallbacks)

	require.Len(t, offered, 2)
	assert.Equal(t, []string{"s1", "s2"}, offered[0])
	assert.Equal(t, []string{"s2"}, offered[1])

	a, _ := state.Task(tasks[0].ID)
	b, _ := state.Task(tasks[1].ID)
	assert.Equal(t, "s1", a.AssignedAgentID)
	assert.Equal(t, 1100, a.Budget)
	assert.Equal(t, "s2", b.AssignedAgentID)
	assert.Equal(t, 2100, b.Budget)
	assert.Equal(t, "best fit", state.Logs()[0].Details)
}

func TestRejectedBidsRevertTask(t *testing.T) {
	cases := []struct {
		name    string
		bid     advisory.Bid
		err     error
		details string
	}{
		{name: "call failure", err: advisory.ErrCallFailed, details: advisory.ErrCallFailed.Error()},
		{name: "winner outside offered set", bid: advisory.Bid{WinnerID: "h1", AdjustedCost: 10}, details: ErrWinnerNotOffered.Error()},
		{name: "unknown winner", bid: advisory.Bid{WinnerID: "ghost", AdjustedCost: 10}, details: ErrWinnerNotOffered.Error()},
		{name: "negative cost", bid: advisory.Bid{WinnerID: "s1", AdjustedCost: -1}, details: ErrNegativeCost.Error()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adv := &advisory.Scripted{
				NegotiateFunc: func(context.Context, domain.Task, []domain.Agent) (advisory.Bid, error) {
					return tc.bid, tc.err
				},
			}
			engine, state := newEngine(t, nil, adv)
			tasks := addTasks(t, state, domain.TaskSpec{Title: "Close books", RequiredCapabilities: []string{"Finance"}, Budget: 500})

			res := engine.Run(context.Background())
			assert.Equal(t, Result{Reverted: 1}, res)

			task, err := state.Task(tasks[0].ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TaskStatusPending, task.Status)
			assert.Empty(t, task.AssignedAgentID)
			assert.Equal(t, 500, task.Budget)

			for _, a := range state.Agents() {
				assert.Equal(t, domain.AgentStatusIdle, a.Status, a.ID)
			}
			alert := state.Logs()[0]
			assert.Equal(t, domain.LogKindAlert, alert.Kind)
			assert.Equal(t, "Negotiation failed for Close books", alert.Message)
			assert.Contains(t, alert.Details, tc.details)
		})
	}
}

func TestRevertedTaskIsRetriedNextPass(t *testing.T) {
	fail := true
	adv := &advisory.Scripted{
		NegotiateFunc: func(_ context.Context, task domain.Task, candidates []domain.Agent) (advisory.Bid, error) {
			if fail {
				return advisory.Bid{}, errors.New("timeout")
			}
			return advisory.Bid{WinnerID: candidates[0].ID, AdjustedCost: task.Budget}, nil
		},
	}
	engine, state := newEngine(t, nil, adv)
	tasks := addTasks(t, state, domain.TaskSpec{Title: "Plan", RequiredCapabilities: []string{"Planning"}})

	assert.Equal(t, 1, engine.Run(context.Background()).Reverted)
	fail = false
	assert.Equal(t, 1, engine.Run(context.Background()).Assigned)

	task, _ := state.Task(tasks[0].ID)
	assert.Equal(t, "a1", task.AssignedAgentID)
	assert.Equal(t, 2, adv.Calls("negotiate"))
}

func TestRunSkipsWhenNothingPending(t *testing.T) {
	adv := &advisory.Scripted{}
	engine, _ := newEngine(t, nil, adv)
	assert.Equal(t, Result{}, engine.Run(context.Background()))
	assert.Zero(t, adv.Calls("negotiate"))
}
