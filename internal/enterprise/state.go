package enterprise

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"enterprise_sim/internal/domain"
)

const (
	LogCapacity        = 50
	PredictionCapacity = 5
	HistoryCapacity    = 20

	InitialAnalysis = "System initialized. Waiting for outcomes."

	outcomeHorizon = 7 * 24 * time.Hour
)

var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrAgentUnavailable   = errors.New("agent is not available for assignment")
	ErrAgentBusy          = errors.New("agent holds an in-progress task")
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskNotPending     = errors.New("task is not pending")
	ErrInvalidTransition  = errors.New("invalid task status transition")
	ErrOutcomeNotFound    = errors.New("outcome not found")
	ErrPredictionNotFound = errors.New("prediction not found")
)

// Publisher receives every recorded log entry and history sample. Publish must not block.
type Publisher interface {
	Publish(evt domain.Event) error
}

// State is the single owned aggregate of the simulation. Entities are stored by
// value and replaced whole on every mutation, so readers never see a half-applied
// change.
type State struct {
	mu sync.RWMutex

	roster []domain.Agent

	agentOrder []string
	agents     map[string]domain.Agent

	taskOrder []string
	tasks     map[string]domain.Task

	outcomeOrder []string
	outcomes     map[string]domain.Outcome

	logs        []domain.LogEntry
	logTotal    int
	predictions []domain.Prediction
	history     []domain.HistorySample
	analysis    string

	now       func() time.Time
	newID     func() string
	publisher Publisher
}

type Option func(*State)

func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *State) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *State) {
		s.publisher = p
	}
}

// New builds the aggregate around a roster. An empty roster falls back to the
// built-in worker pool.
func New(roster []domain.Agent, opts ...Option) *State {
	if len(roster) == 0 {
		roster = domain.DefaultRoster()
	}
	s := &State{
		roster: cloneAgents(roster),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

// Reset restores the initial roster and clears every other collection.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *State) resetLocked() {
	s.agentOrder = make([]string, 0, len(s.roster))
	s.agents = make(map[string]domain.Agent, len(s.roster))
	for _, a := range s.roster {
		a = a.Clone()
		if a.Status == "" {
			a.Status = domain.AgentStatusIdle
		}
		a.CurrentTaskID = ""
		a.CurrentTask = ""
		a.Efficiency = clamp(a.Efficiency, 0, 100)
		s.agentOrder = append(s.agentOrder, a.ID)
		s.agents[a.ID] = a
	}
	s.taskOrder = nil
	s.tasks = make(map[string]domain.Task)
	s.outcomeOrder = nil
	s.outcomes = make(map[string]domain.Outcome)
	s.logs = nil
	s.logTotal = 0
	s.predictions = nil
	s.history = nil
	s.analysis = InitialAnalysis
}

// Snapshot returns a deep copy of the whole aggregate plus derived metrics.
func (s *State) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := s.agentsLocked()
	tasks := s.tasksLocked()
	outcomes := make([]domain.Outcome, 0, len(s.outcomeOrder))
	for _, id := range s.outcomeOrder {
		outcomes = append(outcomes, s.outcomes[id])
	}
	return domain.Snapshot{
		Agents:         agents,
		Tasks:          tasks,
		Outcomes:       outcomes,
		Logs:           append([]domain.LogEntry(nil), s.logs...),
		Metrics:        ComputeMetrics(agents, tasks, s.history),
		Predictions:    append([]domain.Prediction(nil), s.predictions...),
		SystemAnalysis: s.analysis,
	}
}

func (s *State) Analysis() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analysis
}

// SetAnalysis replaces the health summary outright.
func (s *State) SetAnalysis(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = summary
}

func (s *State) publish(evt domain.Event) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(evt)
}

func cloneAgents(in []domain.Agent) []domain.Agent {
	out := make([]domain.Agent, 0, len(in))
	for _, a := range in {
		out = append(out, a.Clone())
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
