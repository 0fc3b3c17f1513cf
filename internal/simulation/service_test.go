package simulation

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enterprise_sim/internal/advisory"
	"enterprise_sim/internal/domain"
	"enterprise_sim/internal/enterprise"
	"enterprise_sim/internal/insight"
	"enterprise_sim/internal/negotiation"
)

// constRand returns the same roll every time.
type constRand struct {
	f float64
	n int
}

func (c constRand) Float64() float64 { return c.f }
func (c constRand) IntN(int) int     { return c.n }

func launchAdvisor() *advisory.Scripted {
	return &advisory.Scripted{
		DecomposeFunc: func(context.Context, string, string) ([]domain.TaskSpec, error) {
			return []domain.TaskSpec{
				{Title: "Market research", RequiredCapabilities: []string{"Analysis"}, Budget: 10000, Priority: domain.PriorityHigh},
				{Title: "Build prototype", RequiredCapabilities: []string{"Assembly"}, Budget: 25000, Priority: domain.PriorityCritical},
				{Title: "Close financing", RequiredCapabilities: []string{"Finance"}, Budget: 15000, Priority: domain.PriorityMedium},
			}, nil
		},
	}
}

type harness struct {
	svc   *Service
	state *enterprise.State
	rec   *countingRecorder
}

func newHarness(t *testing.T, adv advisory.Advisor, cfg Config) harness {
	t.Helper()
	state := enterprise.New(nil)
	svc, err := New(state, adv, cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	rec := &countingRecorder{}
	svc.SetRecorder(rec)
	return harness{svc: svc, state: state, rec: rec}
}

type countingRecorder struct {
	ticks        int
	passes       int
	decomposed   int
	decompFailed int
}

func (c *countingRecorder) ObserveTick(time.Duration)             { c.ticks++ }
func (c *countingRecorder) ObserveNegotiation(negotiation.Result) { c.passes++ }
func (c *countingRecorder) ObserveDecomposition(n int, err error) {
	if err != nil {
		c.decompFailed++
		return
	}
	c.decomposed += n
}

func TestRegisterOutcomeDecomposesIntoPendingTasks(t *testing.T) {
	h := newHarness(t, launchAdvisor(), Config{DisablePerturbations: true})

	outcome, tasks, err := h.svc.RegisterOutcome(context.Background(), "Launch X", "Budget $50k")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.Equal(t, outcome.ID, task.OutcomeID)
	}
	assert.Equal(t, domain.OutcomeStatusActive, outcome.Status)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), outcome.TargetDate, time.Minute)

	logs := h.state.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "Outcome decomposed into 3 operational tasks.", logs[0].Message)
	assert.Equal(t, "New Strategic Outcome Registered: Launch X", logs[1].Message)
	assert.Equal(t, 3, h.rec.decomposed)
}

func TestRegisterOutcomeWithoutAdvisor(t *testing.T) {
	h := newHarness(t, advisory.Unavailable{}, Config{DisablePerturbations: true})

	outcome, tasks, err := h.svc.RegisterOutcome(context.Background(), "Launch X", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.NotEmpty(t, outcome.ID)
	assert.Len(t, h.state.Outcomes(), 1)

	alert := h.state.Logs()[0]
	assert.Equal(t, domain.LogKindAlert, alert.Kind)
	assert.Equal(t, decomposeFailedLog, alert.Message)
	assert.Equal(t, 1, h.rec.decompFailed)

	_, _, err = h.svc.RegisterOutcome(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrEmptyTitle)
}

func TestTaskCompletesWithinBoundedTicks(t *testing.T) {
	h := newHarness(t, launchAdvisor(), Config{DisablePerturbations: true, Seed: 42})
	ctx := context.Background()
	_, tasks, err := h.svc.RegisterOutcome(ctx, "Launch X", "Budget $50k")
	require.NoError(t, err)

	h.svc.NegotiatePending(ctx)
	target := tasks[2].ID
	task, _ := h.state.Task(target)
	require.Equal(t, domain.TaskStatusInProgress, task.Status)
	require.Equal(t, "s1", task.AssignedAgentID)

	last := 0.0
	ticks := 0
	for ticks < 40 {
		h.svc.Step(ctx)
		ticks++
		task, _ = h.state.Task(target)
		require.GreaterOrEqual(t, task.Progress, last, "progress must not decrease")
		require.LessOrEqual(t, task.Progress-last, 20.0, "step exceeds 20 points")
		last = task.Progress
		if task.Status == domain.TaskStatusCompleted {
			break
		}
	}
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.GreaterOrEqual(t, ticks, 5)
	assert.LessOrEqual(t, ticks, 20)
	assert.Equal(t, ticks, h.rec.ticks)

	agent, _ := h.state.Agent("s1")
	assert.Equal(t, domain.AgentStatusIdle, agent.Status)
	assert.Empty(t, agent.CurrentTaskID)
	assert.LessOrEqual(t, len(h.state.History()), enterprise.HistoryCapacity)
}

func TestStepWithFixedRollsCompletesInSixTicks(t *testing.T) {
	h := newHarness(t, launchAdvisor(), Config{DisablePerturbations: true, Rand: constRand{f: 0.999}})
	ctx := context.Background()
	_, tasks, err := h.svc.RegisterOutcome(ctx, "Launch X", "")
	require.NoError(t, err)
	h.svc.NegotiatePending(ctx)

	for i := 0; i < 5; i++ {
		h.svc.Step(ctx)
	}
	task, _ := h.state.Task(tasks[0].ID)
	assert.Equal(t, domain.TaskStatusInProgress, task.Status)
	assert.InDelta(t, 99.9, task.Progress, 1e-6)

	h.svc.Step(ctx)
	task, _ = h.state.Task(tasks[0].ID)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, 100.0, task.Progress)

	outcome, _ := h.state.Outcome(task.OutcomeID)
	assert.Equal(t, domain.OutcomeStatusCompleted, outcome.Status)
	assert.Equal(t, 100.0, outcome.Progress)
}

func TestPerturbationsTakeAgentOfflineAndReassign(t *testing.T) {
	adv := &advisory.Scripted{
		DecomposeFunc: func(context.Context, string, string) ([]domain.TaskSpec, error) {
			return []domain.TaskSpec{{Title: "Draft strategy", RequiredCapabilities: []string{"Strategy"}, Budget: 100}}, nil
		},
	}
	h := newHarness(t, adv, Config{Rand: constRand{f: 0.01, n: 0}})
	ctx := context.Background()
	_, tasks, err := h.svc.RegisterOutcome(ctx, "Plan", "")
	require.NoError(t, err)
	h.svc.NegotiatePending(ctx)
	task, _ := h.state.Task(tasks[0].ID)
	require.Equal(t, "a1", task.AssignedAgentID)

	h.svc.Step(ctx)

	a1, _ := h.state.Agent("a1")
	assert.Equal(t, domain.AgentStatusOffline, a1.Status)

	task, _ = h.state.Task(tasks[0].ID)
	assert.Equal(t, domain.TaskStatusInProgress, task.Status, "renegotiated in the same step")
	assert.Equal(t, "h1", task.AssignedAgentID)
	assert.Zero(t, task.Progress)

	var messages []string
	for _, l := range h.state.Logs() {
		messages = append(messages, l.Message)
	}
	joined := strings.Join(messages, "\n")
	assert.Contains(t, joined, "Agent Strategic Planner Core went OFFLINE due to unexpected error/leave.")
	assert.Contains(t, joined, externalSignalMessage)

	for _, a := range h.state.Agents() {
		if a.Status != domain.AgentStatusOffline {
			assert.GreaterOrEqual(t, a.Efficiency, 50.0)
			assert.LessOrEqual(t, a.Efficiency, 100.0)
		}
	}
}

func TestZeroProbabilityDisablesSinglePerturbation(t *testing.T) {
	h := newHarness(t, launchAdvisor(), Config{
		Rand:               constRand{f: 0.01, n: 0},
		OfflineProbability: Probability(0),
	})
	ctx := context.Background()
	_, _, err := h.svc.RegisterOutcome(ctx, "Launch X", "")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		h.svc.Step(ctx)
	}

	for _, a := range h.state.Agents() {
		assert.NotEqual(t, domain.AgentStatusOffline, a.Status, a.ID)
	}
	var signals int
	for _, l := range h.state.Logs() {
		assert.NotContains(t, l.Message, "went OFFLINE")
		if l.Message == externalSignalMessage {
			signals++
		}
	}
	assert.Positive(t, signals, "other perturbations keep their defaults")
}

func TestConfigProbabilityDefaults(t *testing.T) {
	cfg := Config{SignalProbability: Probability(0), InsightProbability: Probability(1.7)}.withDefaults()
	assert.Equal(t, 0.2, *cfg.DriftProbability)
	assert.Equal(t, 0.02, *cfg.OfflineProbability)
	assert.Zero(t, *cfg.SignalProbability)
	assert.Equal(t, 1.0, *cfg.InsightProbability)
}

func TestHealthSummaryRefreshesEveryFiveLogs(t *testing.T) {
	h := newHarness(t, launchAdvisor(), Config{DisablePerturbations: true})
	ctx := context.Background()
	assert.Equal(t, enterprise.InitialAnalysis, h.svc.Snapshot().SystemAnalysis)

	_, _, err := h.svc.RegisterOutcome(ctx, "Launch X", "")
	require.NoError(t, err)
	h.svc.NegotiatePending(ctx)

	assert.Equal(t, insight.UnavailableSummary, h.svc.Snapshot().SystemAnalysis)
}

func TestToggleResetAndSnapshot(t *testing.T) {
	h := newHarness(t, launchAdvisor(), Config{DisablePerturbations: true})
	ctx := context.Background()

	assert.False(t, h.svc.Snapshot().Simulating)
	assert.True(t, h.svc.ToggleSimulation())
	assert.True(t, h.svc.Snapshot().Simulating)
	assert.False(t, h.svc.ToggleSimulation())
	assert.True(t, h.svc.ToggleSimulation())

	_, tasks, err := h.svc.RegisterOutcome(ctx, "Launch X", "")
	require.NoError(t, err)
	h.svc.NegotiatePending(ctx)
	h.svc.Step(ctx)

	assert.ErrorIs(t, h.svc.DeleteTask(tasks[0].ID), enterprise.ErrTaskNotPending)

	h.svc.ResetSystem()
	snap := h.svc.Snapshot()
	assert.False(t, snap.Simulating)
	assert.Empty(t, snap.Tasks)
	assert.Empty(t, snap.Outcomes)
	assert.Empty(t, snap.Logs)
	assert.Empty(t, snap.Metrics.History)
	assert.Equal(t, enterprise.InitialAnalysis, snap.SystemAnalysis)
	for _, a := range snap.Agents {
		assert.Equal(t, domain.AgentStatusIdle, a.Status)
	}
}

func TestDeletePendingTaskAndDismissPrediction(t *testing.T) {
	adv := launchAdvisor()
	adv.PredictFunc = func(context.Context, advisory.InsightInput) ([]advisory.Insight, error) {
		return []advisory.Insight{{Message: "Finance queue idle", Severity: domain.SeverityMedium}}, nil
	}
	h := newHarness(t, adv, Config{DisablePerturbations: true})
	ctx := context.Background()

	_, tasks, err := h.svc.RegisterOutcome(ctx, "Launch X", "")
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteTask(tasks[1].ID))
	assert.Len(t, h.svc.Snapshot().Tasks, 2)
	assert.ErrorIs(t, h.svc.DeleteTask(tasks[1].ID), enterprise.ErrTaskNotFound)

	h.svc.runMu.Lock()
	added := h.svc.surfacer.RefreshInsights(ctx)
	h.svc.runMu.Unlock()
	require.Len(t, added, 1)
	require.NoError(t, h.svc.DismissPrediction(added[0].ID))
	assert.Empty(t, h.svc.Snapshot().Predictions)
	assert.ErrorIs(t, h.svc.DismissPrediction(added[0].ID), enterprise.ErrPredictionNotFound)
}

func TestLoopNegotiatesOnToggleAndStopsOnCancel(t *testing.T) {
	h := newHarness(t, launchAdvisor(), Config{DisablePerturbations: true, TickInterval: 10 * time.Millisecond, Seed: 7})
	ctx, cancel := context.WithCancel(context.Background())
	h.svc.Start(ctx)

	_, tasks, err := h.svc.RegisterOutcome(context.Background(), "Launch X", "")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	task, _ := h.state.Task(tasks[0].ID)
	assert.Equal(t, domain.TaskStatusPending, task.Status, "nothing happens while stopped")

	h.svc.ToggleSimulation()
	require.Eventually(t, func() bool {
		for _, task := range h.svc.Snapshot().Tasks {
			if task.Status != domain.TaskStatusCompleted {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	h.svc.Wait()
}
