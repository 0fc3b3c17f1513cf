package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"enterprise_sim/internal/domain"
)

func renderAgentsTable(table *tview.Table, agents []domain.Agent) {
	table.Clear()
	headers := []string{"Agent", "Type", "Status", "Eff", "$/h", "Task"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, a := range agents {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(trimLine(a.Name, 24)))
		table.SetCell(row, 1, tview.NewTableCell(string(a.Type)))
		table.SetCell(row, 2, tview.NewTableCell(string(a.Status)).SetTextColor(agentStatusColor(a.Status)))
		table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%.0f%%", a.Efficiency)))
		table.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%.0f", a.CostPerHour)))
		table.SetCell(row, 5, tview.NewTableCell(trimLine(a.CurrentTask, 32)))
	}
}

// renderTasksTable keeps the selection on selectedID when it is still listed.
func renderTasksTable(table *tview.Table, tasks []domain.Task, agents []domain.Agent, selectedID string) {
	table.Clear()
	headers := []string{"Task", "Status", "Priority", "Budget", "Agent", "Progress"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	names := make(map[string]string, len(agents))
	for _, a := range agents {
		names[a.ID] = a.Name
	}
	for i, t := range tasks {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(trimLine(t.Title, 36)))
		table.SetCell(row, 1, tview.NewTableCell(string(t.Status)).SetTextColor(taskStatusColor(t.Status)))
		table.SetCell(row, 2, tview.NewTableCell(string(t.Priority)))
		table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("$%d", t.Budget)))
		table.SetCell(row, 4, tview.NewTableCell(trimLine(names[t.AssignedAgentID], 20)))
		table.SetCell(row, 5, tview.NewTableCell(progressBar(t.Progress, 10)))
		if t.ID == selectedID {
			table.Select(row, 0)
		}
	}
}

func renderOutcomes(items []domain.Outcome) string {
	if len(items) == 0 {
		return "No outcomes"
	}
	var b strings.Builder
	for _, o := range items {
		b.WriteString(fmt.Sprintf("%s %s %s\n", progressBar(o.Progress, 12), o.Status, trimLine(o.Title, 48)))
	}
	return b.String()
}

func renderLogs(items []domain.LogEntry) string {
	if len(items) == 0 {
		return "No events"
	}
	var b strings.Builder
	for _, e := range items {
		b.WriteString(fmt.Sprintf(
			"[%s]%s[-] %-11s %s\n",
			logKindColor(e.Kind),
			e.Timestamp.Format("15:04:05"),
			e.Kind,
			tview.Escape(e.Message),
		))
		if e.Details != "" {
			b.WriteString("  " + tview.Escape(trimLine(e.Details, 120)) + "\n")
		}
	}
	return b.String()
}

func renderPredictions(items []domain.Prediction) string {
	if len(items) == 0 {
		return "No open insights"
	}
	var b strings.Builder
	for _, p := range items {
		b.WriteString(fmt.Sprintf("[%s]%s[-] %s\n", severityColor(p.Severity), p.Severity, tview.Escape(p.Message)))
		if p.SuggestedAction != "" {
			b.WriteString("  -> " + tview.Escape(p.SuggestedAction) + "\n")
		}
	}
	return b.String()
}

func renderMetrics(snap domain.Snapshot) string {
	m := snap.Metrics
	state := "[red]paused[-]"
	if snap.Simulating {
		state = "[green]running[-]"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf(
		"Simulation %s | cost $%d | efficiency %.1f%% | active %d | completed %d\n",
		state, m.TotalCost, m.Efficiency, m.ActiveAgents, m.CompletedTasks,
	))
	b.WriteString("Efficiency " + sparkline(m.History))
	return b.String()
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline scales efficiency samples over the 0-100 range.
func sparkline(history []domain.HistorySample) string {
	if len(history) == 0 {
		return "-"
	}
	out := make([]rune, 0, len(history))
	for _, s := range history {
		idx := int(s.Efficiency / 100 * float64(len(sparkRunes)-1))
		idx = max(0, min(idx, len(sparkRunes)-1))
		out = append(out, sparkRunes[idx])
	}
	return string(out)
}

func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	filled = max(0, min(filled, width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + fmt.Sprintf("] %3.0f%%", pct)
}

func agentStatusColor(s domain.AgentStatus) tcell.Color {
	switch s {
	case domain.AgentStatusWorking:
		return tcell.ColorGreen
	case domain.AgentStatusNegotiating:
		return tcell.ColorYellow
	case domain.AgentStatusOffline:
		return tcell.ColorRed
	case domain.AgentStatusMaintenance:
		return tcell.ColorOrange
	default:
		return tview.Styles.PrimaryTextColor
	}
}

func taskStatusColor(s domain.TaskStatus) tcell.Color {
	switch s {
	case domain.TaskStatusInProgress:
		return tcell.ColorGreen
	case domain.TaskStatusNegotiating:
		return tcell.ColorYellow
	case domain.TaskStatusCompleted:
		return tcell.ColorBlue
	case domain.TaskStatusFailed:
		return tcell.ColorRed
	default:
		return tview.Styles.PrimaryTextColor
	}
}

func logKindColor(k domain.LogKind) string {
	switch k {
	case domain.LogKindAlert:
		return "red"
	case domain.LogKindSuccess:
		return "green"
	case domain.LogKindNegotiation:
		return "yellow"
	case domain.LogKindExternal:
		return "fuchsia"
	default:
		return "white"
	}
}

func severityColor(s domain.Severity) string {
	switch s {
	case domain.SeverityHigh:
		return "red"
	case domain.SeverityMedium:
		return "yellow"
	default:
		return "aqua"
	}
}

func trimLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
