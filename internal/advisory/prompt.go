package advisory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"enterprise_sim/internal/domain"
)

const maxRecentLogs = 10

const jsonInstructions = `You are the central intelligence layer of an autonomous enterprise.
Return only valid JSON matching the requested shape. Do not wrap output in markdown fences.`

const textInstructions = `You are the central intelligence layer of an autonomous enterprise.
Answer in plain text.`

func decomposePrompt(title, constraints string) string {
	return fmt.Sprintf(`Analyze this strategic outcome: %q.
Context/constraints: %q.
Break it down into 3-5 distinct, actionable operational tasks that can be assigned to humans, AI agents, machines or software.
Estimate realistic integer budgets and priorities.
Required JSON shape:
[
  {"title": "...", "description": "...", "requiredCapabilities": ["..."], "budget": 1000, "priority": "LOW|MEDIUM|HIGH|CRITICAL"}
]`, title, constraints)
}

type candidateView struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Type         domain.AgentType `json:"type"`
	Efficiency   float64          `json:"efficiency"`
	Cost         float64          `json:"cost"`
	Capabilities []string         `json:"capabilities"`
}

func negotiatePrompt(task domain.Task, candidates []domain.Agent) string {
	views := make([]candidateView, 0, len(candidates))
	for _, a := range candidates {
		views = append(views, candidateView{
			ID:           a.ID,
			Name:         a.Name,
			Type:         a.Type,
			Efficiency:   a.Efficiency,
			Cost:         a.CostPerHour,
			Capabilities: a.Capabilities,
		})
	}
	return fmt.Sprintf(`Task: %s

Available agents: %s

Act as the negotiation engine. Select the best agent for this task based on:
1. Capability match (must share at least one required capability when any agent does).
2. Cost efficiency (lower cost is better, but high efficiency justifies higher cost).
3. Agent type suitability (machines for repetitive physical work, AI for data, humans for complex decisions).
The winner must be one of the listed agent ids.
Required JSON shape:
{"winnerId": "...", "reason": "short rationale", "adjustedCost": 1000}`, mustJSON(task), mustJSON(views))
}

func healthPrompt(metrics domain.MetricsSnapshot, logs []domain.LogEntry) string {
	if len(logs) > maxRecentLogs {
		logs = logs[:maxRecentLogs]
	}
	return fmt.Sprintf(`Analyze these system metrics and logs. Provide a 2-sentence executive summary of the enterprise health.
Metrics: %s
Logs: %s`, mustJSON(metrics), mustJSON(logs))
}

func insightPrompt(in InsightInput) string {
	return fmt.Sprintf(`Analyze this enterprise state.
Active tasks: %d
Active agents: %d
Total agents: %d

Identify 1-2 potential risks or optimization opportunities (bottlenecks, underutilized resources, cost risks, efficiency drops).
Required JSON shape:
[
  {"message": "...", "severity": "LOW|MEDIUM|HIGH", "suggestedAction": "..."}
]`, in.ActiveTasks, in.ActiveAgents, in.TotalAgents)
}

// decodeModelJSON unmarshals model output into v. Markdown fences and prose
// around the payload are stripped; malformed JSON gets one repair attempt.
func decodeModelJSON(raw string, v any) error {
	text := stripFences(raw)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	if body := extractJSONBody(text); body != "" && body != text {
		if err := json.Unmarshal([]byte(body), v); err == nil {
			return nil
		}
		text = body
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return fmt.Errorf("repair model json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// extractJSONBody returns the span from the first '{' or '[' to the last
// matching closer.
func extractJSONBody(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return text[start:]
	}
	return text[start : end+1]
}

func mustJSON(v any) string {
	payload, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(payload)
}

func trim(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
