package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"enterprise_sim/internal/domain"
	"enterprise_sim/internal/negotiation"
)

const namespace = "enterprise_sim"

// Metrics exposes Prometheus collectors for scheduler activity and the live
// snapshot.
type Metrics struct {
	tickDuration   prometheus.Histogram
	negotiations   *prometheus.CounterVec
	decompositions *prometheus.CounterVec
	decomposed     prometheus.Counter
}

// MustNewMetrics registers every collector with reg and panics on conflicts.
// snapshot is read on each scrape.
func MustNewMetrics(reg prometheus.Registerer, snapshot func() domain.Snapshot) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one tick including its negotiation pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		negotiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "negotiation",
			Name:      "tasks_total",
			Help:      "Negotiated tasks by result.",
		}, []string{"result"}),
		decompositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decomposition",
			Name:      "requests_total",
			Help:      "Outcome decompositions by result.",
		}, []string{"result"}),
		decomposed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decomposition",
			Name:      "tasks_created_total",
			Help:      "Tasks created from decomposed outcomes.",
		}),
	}
	reg.MustRegister(m.tickDuration, m.negotiations, m.decompositions, m.decomposed)
	if snapshot != nil {
		reg.MustRegister(newSnapshotCollector(snapshot))
	}
	return m
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveNegotiation(res negotiation.Result) {
	if m == nil {
		return
	}
	m.negotiations.WithLabelValues("assigned").Add(float64(res.Assigned - res.Fallbacks))
	m.negotiations.WithLabelValues("fallback").Add(float64(res.Fallbacks))
	m.negotiations.WithLabelValues("reverted").Add(float64(res.Reverted))
}

func (m *Metrics) ObserveDecomposition(tasks int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.decompositions.WithLabelValues("failed").Inc()
		return
	}
	m.decompositions.WithLabelValues("ok").Inc()
	m.decomposed.Add(float64(tasks))
}

type snapshotCollector struct {
	snapshot func() domain.Snapshot

	agents         *prometheus.Desc
	tasks          *prometheus.Desc
	totalCost      *prometheus.Desc
	efficiency     *prometheus.Desc
	activeAgents   *prometheus.Desc
	completedTasks *prometheus.Desc
	predictions    *prometheus.Desc
	simulating     *prometheus.Desc
}

func newSnapshotCollector(snapshot func() domain.Snapshot) *snapshotCollector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "state", n) }
	return &snapshotCollector{
		snapshot:       snapshot,
		agents:         prometheus.NewDesc(name("agents"), "Agents by status.", []string{"status"}, nil),
		tasks:          prometheus.NewDesc(name("tasks"), "Tasks by status.", []string{"status"}, nil),
		totalCost:      prometheus.NewDesc(name("total_cost"), "Budget spent on completed tasks.", nil, nil),
		efficiency:     prometheus.NewDesc(name("efficiency"), "Mean agent efficiency.", nil, nil),
		activeAgents:   prometheus.NewDesc(name("active_agents"), "Agents neither idle nor offline.", nil, nil),
		completedTasks: prometheus.NewDesc(name("completed_tasks"), "Completed tasks.", nil, nil),
		predictions:    prometheus.NewDesc(name("predictions"), "Open predictive insights.", nil, nil),
		simulating:     prometheus.NewDesc(name("simulating"), "1 while the simulation is running.", nil, nil),
	}
}

func (c *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.agents, c.tasks, c.totalCost, c.efficiency, c.activeAgents, c.completedTasks, c.predictions, c.simulating} {
		ch <- d
	}
}

var (
	agentStatuses = []domain.AgentStatus{
		domain.AgentStatusIdle, domain.AgentStatusNegotiating, domain.AgentStatusWorking,
		domain.AgentStatusOffline, domain.AgentStatusMaintenance,
	}
	taskStatuses = []domain.TaskStatus{
		domain.TaskStatusPending, domain.TaskStatusNegotiating, domain.TaskStatusInProgress,
		domain.TaskStatusCompleted, domain.TaskStatusFailed,
	}
)

func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.snapshot()

	agentCounts := make(map[domain.AgentStatus]int, len(agentStatuses))
	for _, a := range snap.Agents {
		agentCounts[a.Status]++
	}
	for _, st := range agentStatuses {
		ch <- prometheus.MustNewConstMetric(c.agents, prometheus.GaugeValue, float64(agentCounts[st]), string(st))
	}

	taskCounts := make(map[domain.TaskStatus]int, len(taskStatuses))
	for _, t := range snap.Tasks {
		taskCounts[t.Status]++
	}
	for _, st := range taskStatuses {
		ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.GaugeValue, float64(taskCounts[st]), string(st))
	}

	simulating := 0.0
	if snap.Simulating {
		simulating = 1
	}
	ch <- prometheus.MustNewConstMetric(c.totalCost, prometheus.GaugeValue, float64(snap.Metrics.TotalCost))
	ch <- prometheus.MustNewConstMetric(c.efficiency, prometheus.GaugeValue, snap.Metrics.Efficiency)
	ch <- prometheus.MustNewConstMetric(c.activeAgents, prometheus.GaugeValue, float64(snap.Metrics.ActiveAgents))
	ch <- prometheus.MustNewConstMetric(c.completedTasks, prometheus.GaugeValue, float64(snap.Metrics.CompletedTasks))
	ch <- prometheus.MustNewConstMetric(c.predictions, prometheus.GaugeValue, float64(len(snap.Predictions)))
	ch <- prometheus.MustNewConstMetric(c.simulating, prometheus.GaugeValue, simulating)
}
