package domain

import (
	"time"
)

type AgentType string

const (
	AgentTypeHuman    AgentType = "HUMAN"
	AgentTypeAI       AgentType = "AI"
	AgentTypeMachine  AgentType = "MACHINE"
	AgentTypeSoftware AgentType = "SOFTWARE"
)

type AgentStatus string

const (
	AgentStatusIdle        AgentStatus = "IDLE"
	AgentStatusNegotiating AgentStatus = "NEGOTIATING"
	AgentStatusWorking     AgentStatus = "WORKING"
	AgentStatusOffline     AgentStatus = "OFFLINE"
	AgentStatusMaintenance AgentStatus = "MAINTENANCE"
)

type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "PENDING"
	TaskStatusNegotiating TaskStatus = "NEGOTIATING"
	TaskStatusInProgress  TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted   TaskStatus = "COMPLETED"
	// TaskStatusFailed is reserved; no transition produces it.
	TaskStatusFailed TaskStatus = "FAILED"
)

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

type OutcomeStatus string

const (
	OutcomeStatusActive    OutcomeStatus = "ACTIVE"
	OutcomeStatusCompleted OutcomeStatus = "COMPLETED"
	// OutcomeStatusAtRisk is reserved; never assigned automatically.
	OutcomeStatusAtRisk OutcomeStatus = "AT_RISK"
)

type LogKind string

const (
	LogKindInfo        LogKind = "INFO"
	LogKindNegotiation LogKind = "NEGOTIATION"
	LogKindAlert       LogKind = "ALERT"
	LogKindSuccess     LogKind = "SUCCESS"
	LogKindExternal    LogKind = "EXTERNAL"
)

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

type Agent struct {
	ID            string      `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	Type          AgentType   `json:"type" yaml:"type"`
	Role          string      `json:"role" yaml:"role"`
	Capabilities  []string    `json:"capabilities" yaml:"capabilities"`
	Status        AgentStatus `json:"status" yaml:"status"`
	Efficiency    float64     `json:"efficiency" yaml:"efficiency"`
	CostPerHour   float64     `json:"cost_per_hour" yaml:"cost_per_hour"`
	CurrentTaskID string      `json:"current_task_id,omitempty" yaml:"-"`
	CurrentTask   string      `json:"current_task,omitempty" yaml:"-"`
}

// HasCapability reports whether the agent lists any of the given capabilities.
func (a Agent) HasCapability(required []string) bool {
	for _, want := range required {
		for _, have := range a.Capabilities {
			if have == want {
				return true
			}
		}
	}
	return false
}

func (a Agent) Clone() Agent {
	a.Capabilities = append([]string(nil), a.Capabilities...)
	return a
}

type Task struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	RequiredCapabilities []string   `json:"required_capabilities"`
	Budget               int        `json:"budget"`
	Deadline             time.Time  `json:"deadline"`
	Priority             Priority   `json:"priority"`
	Status               TaskStatus `json:"status"`
	AssignedAgentID      string     `json:"assigned_agent_id,omitempty"`
	OutcomeID            string     `json:"outcome_id"`
	Progress             float64    `json:"progress"`
}

func (t Task) Clone() Task {
	t.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	return t
}

// TaskSpec is a task proposal produced by decomposition before it enters the ledger.
type TaskSpec struct {
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	RequiredCapabilities []string `json:"requiredCapabilities"`
	Budget               int      `json:"budget"`
	Priority             Priority `json:"priority"`
}

type Outcome struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	TargetDate  time.Time     `json:"target_date"`
	Status      OutcomeStatus `json:"status"`
	Progress    float64       `json:"progress"`
}

type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      LogKind   `json:"kind"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
}

type Prediction struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Message         string    `json:"message"`
	Severity        Severity  `json:"severity"`
	SuggestedAction string    `json:"suggested_action"`
}

type HistorySample struct {
	Time       string  `json:"time"`
	Cost       int     `json:"cost"`
	Efficiency float64 `json:"efficiency"`
}

type MetricsSnapshot struct {
	TotalCost      int             `json:"total_cost"`
	Efficiency     float64         `json:"efficiency"`
	ActiveAgents   int             `json:"active_agents"`
	CompletedTasks int             `json:"completed_tasks"`
	History        []HistorySample `json:"history"`
}

type Snapshot struct {
	Agents         []Agent         `json:"agents"`
	Tasks          []Task          `json:"tasks"`
	Outcomes       []Outcome       `json:"outcomes"`
	Logs           []LogEntry      `json:"logs"`
	Metrics        MetricsSnapshot `json:"metrics"`
	Predictions    []Prediction    `json:"predictions"`
	SystemAnalysis string          `json:"system_analysis"`
	Simulating     bool            `json:"simulating"`
}

// Event is what the in-process bus carries to journal subscribers.
type Event struct {
	Kind   EventKind      `json:"kind"`
	Log    *LogEntry      `json:"log,omitempty"`
	Sample *HistorySample `json:"sample,omitempty"`
	At     time.Time      `json:"at"`
}

type EventKind string

const (
	EventKindLog    EventKind = "log"
	EventKindSample EventKind = "sample"
)
