package domain

import "strings"

// DefaultRoster returns the built-in worker pool used when no roster file is configured.
func DefaultRoster() []Agent {
	return []Agent{
		{ID: "a1", Name: "Strategic Planner Core", Type: AgentTypeAI, Role: "Planner", Capabilities: []string{"Strategy", "Analysis", "Planning"}, Status: AgentStatusIdle, Efficiency: 98, CostPerHour: 5},
		{ID: "h1", Name: "Sarah Chen", Type: AgentTypeHuman, Role: "Ops Director", Capabilities: []string{"Approval", "Complex Decision", "Leadership"}, Status: AgentStatusIdle, Efficiency: 85, CostPerHour: 150},
		{ID: "m1", Name: "Fab-Unit-09", Type: AgentTypeMachine, Role: "Assembler", Capabilities: []string{"Assembly", "Logistics", "Heavy Lifting"}, Status: AgentStatusIdle, Efficiency: 99, CostPerHour: 20},
		{ID: "s1", Name: "Netsuite ERP Connector", Type: AgentTypeSoftware, Role: "Data Pipe", Capabilities: []string{"Finance", "Inventory", "Reporting"}, Status: AgentStatusIdle, Efficiency: 100, CostPerHour: 1},
		{ID: "a2", Name: "Risk Eval Bot", Type: AgentTypeAI, Role: "Auditor", Capabilities: []string{"Risk", "Compliance", "Security"}, Status: AgentStatusIdle, Efficiency: 95, CostPerHour: 2},
		{ID: "h2", Name: "Marcus Thorne", Type: AgentTypeHuman, Role: "Lead Engineer", Capabilities: []string{"Engineering", "Maintenance", "QC"}, Status: AgentStatusIdle, Efficiency: 90, CostPerHour: 120},
		{ID: "s2", Name: "Salesforce Sync", Type: AgentTypeSoftware, Role: "CRM Integration", Capabilities: []string{"Sales", "Data", "Reporting"}, Status: AgentStatusIdle, Efficiency: 99, CostPerHour: 1},
	}
}

// NormalizePriority maps free-form priority text onto a known level, defaulting to MEDIUM.
func NormalizePriority(p Priority) Priority {
	switch Priority(upper(string(p))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	case PriorityCritical:
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// NormalizeSeverity maps free-form severity text onto a known level, defaulting to LOW.
func NormalizeSeverity(s Severity) Severity {
	switch Severity(upper(string(s))) {
	case SeverityMedium:
		return SeverityMedium
	case SeverityHigh:
		return SeverityHigh
	default:
		return SeverityLow
	}
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
