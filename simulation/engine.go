package simulation

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cyberrange/simnet-backend/model"
)

const (
	defaultStepInterval = 500 * time.Millisecond
	minTimelineSteps    = 4
	maxTimelineSteps    = 40
)

// Engine runs validated scenarios asynchronously. Each run gets its own
// goroutine and a deterministically derived RNG, streams progress and
// outcomes to the event sink as they are produced, and reports its terminal
// state through a callback so the state machine stays the single status
// writer.
type Engine struct {
	sink         EventSink
	logger       *zap.Logger
	stepInterval time.Duration
	seed         int64
}

// NewEngine creates an engine. A non-positive stepInterval falls back to the
// default pacing; the seed makes run timelines reproducible.
func NewEngine(sink EventSink, logger *zap.Logger, stepInterval time.Duration, seed int64) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stepInterval <= 0 {
		stepInterval = defaultStepInterval
	}
	return &Engine{
		sink:         sink,
		logger:       logger,
		stepInterval: stepInterval,
		seed:         seed,
	}
}

// Run is the handle for one in-flight execution. Cancellation is
// cooperative: requestCancel closes a channel the run loop selects on at
// every pacing checkpoint, so cancellation latency is bounded by one step
// interval.
type Run struct {
	ID          string
	ScenarioKey string
	actor       string

	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}

	mu          sync.Mutex
	cancelledBy string
	state       model.ExecutionRun
}

// Done is closed once the run has reached a terminal state and its callback
// has returned.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancelled reports whether cancellation has been requested.
func (r *Run) Cancelled() bool {
	select {
	case <-r.cancelCh:
		return true
	default:
		return false
	}
}

// Snapshot returns a copy of the run's current state.
func (r *Run) Snapshot() model.ExecutionRun {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.state
	snap.Outcomes = append([]model.Outcome(nil), r.state.Outcomes...)
	snap.Impacts = make(map[string]*model.Impact, len(r.state.Impacts))
	for key, impact := range r.state.Impacts {
		copied := *impact
		snap.Impacts[key] = &copied
	}
	return snap
}

func (r *Run) requestCancel(actor string) {
	r.cancelOnce.Do(func() {
		r.mu.Lock()
		r.cancelledBy = actor
		r.mu.Unlock()
		close(r.cancelCh)
	})
}

// terminalFunc commits the terminal transition for a finished run.
type terminalFunc func(run *Run, status model.ScenarioStatus, stats *model.RunStatistics, note string)

// newRun constructs the handle for an execution without starting it. The
// caller registers the handle first and starts the loop with start, so the
// terminal callback can never fire before the run is registered.
func (e *Engine) newRun(scenario *model.Scenario, actor string) *Run {
	run := &Run{
		ID:          uuid.New().String(),
		ScenarioKey: scenario.Key,
		actor:       actor,
		cancelCh:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	run.state = model.ExecutionRun{
		RunID:       run.ID,
		ScenarioKey: scenario.Key,
		StartedAt:   time.Now().UTC(),
		Impacts:     make(map[string]*model.Impact),
	}
	return run
}

// start launches the run goroutine.
func (e *Engine) start(run *Run, scenario *model.Scenario, onTerminal terminalFunc) {
	// Copy what the loop reads so later store updates cannot race it.
	snapshot := *scenario
	snapshot.TargetDevices = append([]string(nil), scenario.TargetDevices...)

	go e.execute(run, &snapshot, onTerminal)
}

func (e *Engine) execute(run *Run, scenario *model.Scenario, onTerminal terminalFunc) {
	defer close(run.done)
	defer func() {
		if r := recover(); r != nil {
			failure := &ExecutionFailureError{RunID: run.ID, Message: fmt.Sprint(r)}
			e.logger.Error("run panicked", zap.String("run", run.ID), zap.Any("panic", r))
			e.finish(run, onTerminal, model.ScenarioStatusFailed, nil, failure.Error())
		}
	}()

	rng := rand.New(rand.NewSource(e.seed ^ fnv1a64(run.ID))) // #nosec G404 -- simulation, not crypto
	iterations := 1
	if n, ok := scenario.MetadataInt("iterations"); ok && n > 1 {
		iterations = n
	}
	steps := timelineSteps(scenario.DurationSeconds)
	tally := newRunTally(iterations)
	totalSteps := iterations * steps

	e.logger.Info("run started",
		zap.String("run", run.ID),
		zap.String("scenario", scenario.Key),
		zap.Int("iterations", iterations),
		zap.Int("steps", steps))

	// The timer starts stopped and drained; each loop iteration arms it with
	// Reset, so a fire between creation and the first wait cannot leak into
	// the channel and collapse the first pacing interval.
	timer := time.NewTimer(e.stepInterval)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for trial := 0; trial < iterations; trial++ {
		trialTypes := make(map[model.OutcomeType]bool)

		for step := 0; step < steps; step++ {
			// Time-driven pacing; every wait is also a cancellation
			// checkpoint.
			timer.Reset(e.stepInterval)
			select {
			case <-timer.C:
			case <-run.cancelCh:
				run.mu.Lock()
				actor := run.cancelledBy
				run.mu.Unlock()
				e.finish(run, onTerminal, model.ScenarioStatusCancelled, nil,
					fmt.Sprintf("Cancelled by %s at %d%% progress", actor, run.progress()))
				return
			}

			completed := trial*steps + step + 1
			progress := completed * 100 / totalSteps
			run.setProgress(progress)
			e.publishProgress(run, scenario, progress)

			outcome, produced := e.step(rng, scenario, step, steps)
			if !produced {
				continue
			}
			tally.observe(outcome)
			trialTypes[outcome.Type] = true
			e.applyImpact(run, scenario, outcome, rng, tally)
			run.appendOutcome(outcome)
			e.publishOutcome(run, scenario, outcome)
		}

		tally.observeTrial(trialTypes)
		e.resolveRecoveries(run, rng)
	}

	stats := tally.statistics()
	run.setStatistics(stats)
	e.finish(run, onTerminal, model.ScenarioStatusCompleted, stats, "Execution completed")
}

func (e *Engine) finish(run *Run, onTerminal terminalFunc, status model.ScenarioStatus, stats *model.RunStatistics, note string) {
	now := time.Now().UTC()
	run.mu.Lock()
	run.state.EndedAt = &now
	run.mu.Unlock()
	onTerminal(run, status, stats, note)
}

// step simulates one timeline point. Roughly half the points produce an
// outcome; the mix of outcome types depends on the scenario type.
func (e *Engine) step(rng *rand.Rand, scenario *model.Scenario, step, steps int) (model.Outcome, bool) {
	if rng.Float64() > 0.55 {
		return model.Outcome{}, false
	}

	target := scenario.TargetDevices[rng.Intn(len(scenario.TargetDevices))]
	outcomeType := e.pickOutcomeType(rng, scenario.Type)
	success := outcomeType != model.OutcomeDefenseHeld
	score := 0.0
	if success {
		// Later timeline points deal heavier damage.
		base := 0.2 + 0.6*float64(step+1)/float64(steps)
		score = clamp01(base + (rng.Float64()-0.5)*0.2)
	}

	outcome := model.Outcome{
		Type:        outcomeType,
		DeviceKey:   target,
		Timestamp:   time.Now().UTC(),
		ImpactScore: score,
		Success:     success,
		Details: map[string]interface{}{
			"attack_vector": scenario.AttackVector,
			"timeline_step": step,
		},
	}
	if !success {
		outcome.Details["defense"] = "containment rule matched"
	}
	return outcome, true
}

func (e *Engine) pickOutcomeType(rng *rand.Rand, scenarioType model.ScenarioType) model.OutcomeType {
	roll := rng.Float64()
	switch scenarioType {
	case model.ScenarioTypeRansomware:
		switch {
		case roll < 0.45:
			return model.OutcomeDeviceCompromised
		case roll < 0.65:
			return model.OutcomeDataExfiltration
		case roll < 0.80:
			return model.OutcomeDeviceUnavailable
		default:
			return model.OutcomeDefenseHeld
		}
	case model.ScenarioTypeDDoS:
		switch {
		case roll < 0.55:
			return model.OutcomeDeviceUnavailable
		case roll < 0.75:
			return model.OutcomeLinkFailure
		default:
			return model.OutcomeDefenseHeld
		}
	case model.ScenarioTypeInsiderThreat:
		switch {
		case roll < 0.40:
			return model.OutcomeDataExfiltration
		case roll < 0.70:
			return model.OutcomeDeviceCompromised
		default:
			return model.OutcomeDefenseHeld
		}
	case model.ScenarioTypePhishing:
		switch {
		case roll < 0.50:
			return model.OutcomeDeviceCompromised
		case roll < 0.70:
			return model.OutcomeDataExfiltration
		default:
			return model.OutcomeDefenseHeld
		}
	default:
		switch {
		case roll < 0.35:
			return model.OutcomeDeviceCompromised
		case roll < 0.55:
			return model.OutcomeDeviceUnavailable
		case roll < 0.70:
			return model.OutcomeLinkFailure
		default:
			return model.OutcomeDefenseHeld
		}
	}
}

// applyImpact folds an outcome into the per-device impact record. Compromise
// is monotonic: it is cleared only by an explicit recovery.
func (e *Engine) applyImpact(run *Run, scenario *model.Scenario, outcome model.Outcome, rng *rand.Rand, tally *runTally) {
	if outcome.DeviceKey == "" || !outcome.Success {
		return
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	impact := run.state.Impacts[outcome.DeviceKey]
	if impact == nil {
		impact = &model.Impact{DeviceKey: outcome.DeviceKey}
		run.state.Impacts[outcome.DeviceKey] = impact
	}

	if outcome.ImpactScore > impact.ImpactScore {
		impact.ImpactScore = outcome.ImpactScore
	}

	loss := outcome.ImpactScore * (5000 + rng.Float64()*45000)
	switch outcome.Type {
	case model.OutcomeDeviceCompromised:
		if !impact.Compromised {
			impact.Compromised = true
			at := outcome.Timestamp
			impact.CompromisedAt = &at
			impact.AffectedServices = appendUnique(impact.AffectedServices, "endpoint-protection")
		}
	case model.OutcomeDeviceUnavailable, model.OutcomeLinkFailure:
		impact.Unavailable = true
		impact.AffectedServices = appendUnique(impact.AffectedServices, "connectivity")
	case model.OutcomeDataExfiltration:
		impact.DataLossGB += outcome.ImpactScore * (1 + rng.Float64()*20)
		impact.AffectedServices = appendUnique(impact.AffectedServices, "data-store")
	case model.OutcomeDefenseHeld:
		// No damage recorded.
	}
	impact.FinancialLossUSD += loss
	tally.observeLoss(loss)
}

// resolveRecoveries gives compromised devices a chance to recover at the end
// of a trial, recomputing downtime from the compromise window.
func (e *Engine) resolveRecoveries(run *Run, rng *rand.Rand) {
	run.mu.Lock()
	defer run.mu.Unlock()

	for _, impact := range run.state.Impacts {
		if !impact.Compromised || impact.CompromisedAt == nil || impact.RecoveredAt != nil {
			continue
		}
		if rng.Float64() < 0.3 {
			now := time.Now().UTC()
			impact.RecoveredAt = &now
			impact.Compromised = false
			impact.Unavailable = false
			impact.DowntimeMinutes = now.Sub(*impact.CompromisedAt).Minutes()
		}
	}
}

func (e *Engine) publishProgress(run *Run, scenario *model.Scenario, progress int) {
	e.sink.Publish(model.TopicScenarioLifecycle,
		model.NewEnvelope(model.EventScenarioProgress, map[string]interface{}{
			"run_id":   run.ID,
			"scenario": scenario.Key,
			"progress": progress,
		}),
		model.EventScope{FilterValue: scenario.Key})
}

func (e *Engine) publishOutcome(run *Run, scenario *model.Scenario, outcome model.Outcome) {
	e.sink.Publish(model.TopicScenarioLifecycle,
		model.NewEnvelope(model.EventScenarioOutcome, map[string]interface{}{
			"run_id":   run.ID,
			"scenario": scenario.Key,
			"outcome":  outcome,
		}),
		model.EventScope{DeviceKey: outcome.DeviceKey, FilterValue: scenario.Key})
}

func (r *Run) setProgress(progress int) {
	r.mu.Lock()
	if progress > r.state.Progress {
		r.state.Progress = progress
	}
	r.mu.Unlock()
}

func (r *Run) progress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Progress
}

func (r *Run) appendOutcome(o model.Outcome) {
	r.mu.Lock()
	r.state.Outcomes = append(r.state.Outcomes, o)
	r.mu.Unlock()
}

func (r *Run) setStatistics(stats *model.RunStatistics) {
	r.mu.Lock()
	r.state.Statistics = stats
	r.mu.Unlock()
}

func timelineSteps(durationSeconds int) int {
	steps := durationSeconds / 5
	if steps < minTimelineSteps {
		steps = minTimelineSteps
	}
	if steps > maxTimelineSteps {
		steps = maxTimelineSteps
	}
	return steps
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
