package simulation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"enterprise_sim/internal/advisory"
	"enterprise_sim/internal/decompose"
	"enterprise_sim/internal/domain"
	"enterprise_sim/internal/enterprise"
	"enterprise_sim/internal/insight"
	"enterprise_sim/internal/negotiation"
	"enterprise_sim/internal/policy"
)

const (
	externalSignalMessage = "IoT Sensor Array 4 reporting nominal variance in production line."
	decomposeFailedLog    = "Failed to decompose outcome via advisory service."
)

var ErrEmptyTitle = errors.New("outcome title is empty")

// Recorder observes scheduler activity. Implementations must be cheap.
type Recorder interface {
	ObserveTick(d time.Duration)
	ObserveNegotiation(res negotiation.Result)
	ObserveDecomposition(tasks int, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(time.Duration)             {}
func (nopRecorder) ObserveNegotiation(negotiation.Result) {}
func (nopRecorder) ObserveDecomposition(int, error)       {}

type Config struct {
	TickInterval time.Duration
	// MaxProgressStep bounds the uniform progress roll per tick.
	MaxProgressStep float64
	DriftAmplitude  float64

	// Per-tick perturbation chances. Nil picks the default; zero disables
	// that perturbation alone.
	DriftProbability   *float64
	OfflineProbability *float64
	SignalProbability  *float64
	InsightProbability *float64
	// DisablePerturbations turns off every random event, leaving only progress.
	DisablePerturbations bool

	HealthEvery int
	// DecomposeCacheSize > 0 reuses plans for repeated outcomes; 0 disables.
	DecomposeCacheSize int

	Seed uint64
	// Rand overrides the seeded source.
	Rand Rand
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 3 * time.Second
	}
	if c.MaxProgressStep <= 0 {
		c.MaxProgressStep = 20
	}
	if c.DriftAmplitude <= 0 {
		c.DriftAmplitude = 5
	}
	c.DriftProbability = probabilityOr(c.DriftProbability, 0.2)
	c.OfflineProbability = probabilityOr(c.OfflineProbability, 0.02)
	c.SignalProbability = probabilityOr(c.SignalProbability, 0.05)
	c.InsightProbability = probabilityOr(c.InsightProbability, 0.05)
	if c.HealthEvery <= 0 {
		c.HealthEvery = 5
	}
	if c.Rand == nil {
		c.Rand = NewRand(c.Seed)
	}
	return c
}

// Service owns the simulation. Every mutating operation runs under one run
// lock, so ticks, negotiation passes and decompositions never interleave.
// Snapshot only touches the aggregate's own read lock.
type Service struct {
	state      *enterprise.State
	negotiator *negotiation.Engine
	decomposer *decompose.Gateway
	surfacer   *insight.Surfacer
	cfg        Config
	rng        Rand
	logger     *log.Logger
	recorder   Recorder

	runMu      sync.Mutex
	simulating atomic.Bool
	kick       chan struct{}
	wg         sync.WaitGroup
}

func New(state *enterprise.State, advisor advisory.Advisor, cfg Config, logger *log.Logger) (*Service, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	if advisor == nil {
		advisor = advisory.Unavailable{}
	}
	decomposer, err := decompose.New(advisor, cfg.DecomposeCacheSize, logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		state:      state,
		negotiator: negotiation.New(state, advisor, policy.New(), logger),
		decomposer: decomposer,
		surfacer:   insight.New(state, advisor, insight.Config{HealthEvery: cfg.HealthEvery}, logger),
		cfg:        cfg,
		rng:        cfg.Rand,
		logger:     logger,
		recorder:   nopRecorder{},
		kick:       make(chan struct{}, 1),
	}, nil
}

// SetRecorder installs an observer. Call before Start.
func (s *Service) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.recorder = r
}

func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.simulating.Load() {
				s.Step(ctx)
			}
		case <-s.kick:
			if s.simulating.Load() {
				s.NegotiatePending(ctx)
			}
		}
	}
}

// Step runs one tick followed by a negotiation pass.
func (s *Service) Step(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := time.Now()
	s.tickLocked(ctx)
	s.negotiateLocked(ctx)
	s.surfacer.MaybeRefreshHealth(ctx)
	s.recorder.ObserveTick(time.Since(started))
}

// NegotiatePending runs a negotiation pass on its own.
func (s *Service) NegotiatePending(ctx context.Context) negotiation.Result {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	res := s.negotiateLocked(ctx)
	s.surfacer.MaybeRefreshHealth(ctx)
	return res
}

func (s *Service) negotiateLocked(ctx context.Context) negotiation.Result {
	res := s.negotiator.Run(ctx)
	s.recorder.ObserveNegotiation(res)
	return res
}

func (s *Service) tickLocked(ctx context.Context) {
	for _, t := range s.state.TasksWithStatus(domain.TaskStatusInProgress) {
		delta := s.rng.Float64() * s.cfg.MaxProgressStep
		if _, err := s.state.AdvanceProgress(t.ID, delta); err != nil {
			s.logger.Printf("advance progress failed task=%s: %v", t.ID, err)
		}
	}

	s.state.AppendHistorySample()

	if !s.cfg.DisablePerturbations {
		s.perturbLocked(ctx)
	}

	s.state.RecomputeOutcomes()
}

func (s *Service) perturbLocked(ctx context.Context) {
	if s.roll(s.cfg.DriftProbability) {
		amp := s.cfg.DriftAmplitude
		s.state.DriftEfficiency(func() float64 { return s.rng.Float64()*2*amp - amp })
	}

	if s.roll(s.cfg.OfflineProbability) {
		if online := s.state.OnlineAgents(); len(online) > 0 {
			victim := online[s.rng.IntN(len(online))]
			reset, err := s.state.MarkOffline(victim.ID)
			if err != nil {
				s.logger.Printf("mark offline failed agent=%s: %v", victim.ID, err)
			} else {
				s.state.Record(domain.LogKindExternal,
					fmt.Sprintf("Agent %s went OFFLINE due to unexpected error/leave.", victim.Name), "")
				if len(reset) > 0 {
					s.logger.Printf("agent offline agent=%s reset_tasks=%s", victim.ID, strings.Join(reset, ","))
				}
			}
		}
	}

	if s.roll(s.cfg.SignalProbability) {
		s.state.Record(domain.LogKindExternal, externalSignalMessage, "")
	}

	if s.roll(s.cfg.InsightProbability) {
		s.surfacer.RefreshInsights(ctx)
	}
}

func (s *Service) roll(p *float64) bool {
	return s.rng.Float64() < *p
}

// Probability returns a pointer for the Config probability fields.
func Probability(p float64) *float64 {
	return &p
}

func probabilityOr(p *float64, def float64) *float64 {
	if p == nil {
		return Probability(def)
	}
	return Probability(min(max(*p, 0), 1))
}

// RegisterOutcome records the outcome, then decomposes it into tasks. A failed
// decomposition leaves the outcome with no tasks and an ALERT in the log.
func (s *Service) RegisterOutcome(ctx context.Context, title, description string) (domain.Outcome, []domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Outcome{}, nil, ErrEmptyTitle
	}
	description = strings.TrimSpace(description)

	s.runMu.Lock()
	outcome, tasks := s.registerLocked(ctx, title, description)
	s.surfacer.MaybeRefreshHealth(ctx)
	s.runMu.Unlock()

	if len(tasks) > 0 && s.simulating.Load() {
		s.signal()
	}
	return outcome, tasks, nil
}

func (s *Service) registerLocked(ctx context.Context, title, description string) (domain.Outcome, []domain.Task) {
	outcome := s.state.RegisterOutcome(title, description)

	specs, err := s.decomposer.Decompose(ctx, title, description)
	if err != nil {
		s.recorder.ObserveDecomposition(0, err)
		s.state.Record(domain.LogKindAlert, decomposeFailedLog, err.Error())
		return outcome, nil
	}
	tasks, err := s.state.CreateTasksForOutcome(outcome.ID, specs)
	if err != nil {
		s.recorder.ObserveDecomposition(0, err)
		s.logger.Printf("create tasks failed outcome=%s: %v", outcome.ID, err)
		s.state.Record(domain.LogKindAlert, decomposeFailedLog, err.Error())
		return outcome, nil
	}
	s.recorder.ObserveDecomposition(len(tasks), nil)
	s.state.Record(domain.LogKindSuccess, fmt.Sprintf("Outcome decomposed into %d operational tasks.", len(tasks)), "")
	return outcome, tasks
}

// ToggleSimulation flips the running flag and reports the new value. Turning
// it on schedules an immediate negotiation pass.
func (s *Service) ToggleSimulation() bool {
	for {
		cur := s.simulating.Load()
		if s.simulating.CompareAndSwap(cur, !cur) {
			if !cur {
				s.signal()
			}
			return !cur
		}
	}
}

func (s *Service) Simulating() bool {
	return s.simulating.Load()
}

// ResetSystem stops the simulation and restores the initial state.
func (s *Service) ResetSystem() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.simulating.Store(false)
	s.state.Reset()
	s.surfacer.Reset()
	select {
	case <-s.kick:
	default:
	}
}

func (s *Service) DeleteTask(id string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.state.DeleteTask(id)
}

func (s *Service) DismissPrediction(id string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.state.DismissPrediction(id)
}

// Snapshot never waits on an in-flight tick or advisory call.
func (s *Service) Snapshot() domain.Snapshot {
	snap := s.state.Snapshot()
	snap.Simulating = s.simulating.Load()
	return snap
}

func (s *Service) signal() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}
