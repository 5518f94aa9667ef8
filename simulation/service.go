package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cyberrange/simnet-backend/model"
)

// Service is the scenario state machine. It is the single writer of a
// scenario's status: every transition runs under a per-scenario slot so no
// two transitions for the same scenario are ever in flight concurrently, and
// each committed transition appends one history entry and emits exactly one
// lifecycle event after the mutation is stored.
type Service struct {
	scenarios ScenarioStore
	devices   DeviceStore
	validator *Validator
	sink      EventSink
	engine    *Engine
	logger    *zap.Logger

	mu       sync.Mutex
	inflight map[string]bool
	runs     map[string]*Run // Active run per scenario key.
}

// NewService wires the state machine over its collaborators.
func NewService(scenarios ScenarioStore, devices DeviceStore, sink EventSink, engine *Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scenarios: scenarios,
		devices:   devices,
		validator: NewValidator(scenarios, devices),
		sink:      sink,
		engine:    engine,
		logger:    logger,
		inflight:  make(map[string]bool),
		runs:      make(map[string]*Run),
	}
}

// acquire claims the transition slot for a scenario. A second transition
// requested while one is pending is rejected, never queued.
func (s *Service) acquire(key, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[key] {
		return &InvalidStateTransitionError{ScenarioKey: key, Operation: op, InFlight: true}
	}
	s.inflight[key] = true
	return nil
}

func (s *Service) release(key string) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}

// waitAcquire claims the transition slot, waiting out any transition that
// briefly holds it. Terminal commits use this: a concurrent update or delete
// that grabs the slot only to be rejected on the status check must not cause
// the run's one terminal transition to be dropped.
func (s *Service) waitAcquire(key string) {
	for {
		s.mu.Lock()
		if !s.inflight[key] {
			s.inflight[key] = true
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
}

// Create validates a draft and stores it in the PENDING state. Validation
// failure aborts creation with no partial state.
func (s *Service) Create(ctx context.Context, draft *model.Scenario, actor string) (*model.Scenario, error) {
	scenario := model.NewScenario()
	scenario.Name = draft.Name
	scenario.Type = draft.Type
	scenario.Description = draft.Description
	scenario.TargetDevices = draft.TargetDevices
	scenario.AttackVector = draft.AttackVector
	scenario.DurationSeconds = draft.DurationSeconds
	scenario.Metadata = draft.Metadata

	if err := s.validator.Validate(ctx, scenario, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scenario.CreatedBy = actor
	scenario.CreatedAt = now
	scenario.UpdatedBy = actor
	scenario.UpdatedAt = now
	scenario.AppendHistory("CREATE", actor,
		fmt.Sprintf("Scenario %q created", scenario.Name), now)

	if err := s.scenarios.Insert(ctx, scenario); err != nil {
		return nil, err
	}

	s.logger.Info("scenario created",
		zap.String("scenario", scenario.Key),
		zap.String("type", string(scenario.Type)),
		zap.String("actor", actor))
	s.emitLifecycle(model.EventScenarioCreated, scenario)
	return scenario, nil
}

// Update mutates a scenario. Permitted only while PENDING.
func (s *Service) Update(ctx context.Context, key string, draft *model.Scenario, actor string) (*model.Scenario, error) {
	if err := s.acquire(key, "update"); err != nil {
		return nil, err
	}
	defer s.release(key)

	scenario, err := s.scenarios.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if scenario.Status != model.ScenarioStatusPending {
		return nil, &InvalidStateTransitionError{ScenarioKey: key, From: scenario.Status, Operation: "update"}
	}

	updated := *scenario
	if draft.Name != "" {
		updated.Name = draft.Name
	}
	if draft.Type != "" {
		updated.Type = draft.Type
	}
	if draft.Description != "" {
		updated.Description = draft.Description
	}
	if len(draft.TargetDevices) > 0 {
		updated.TargetDevices = draft.TargetDevices
	}
	if draft.AttackVector != "" {
		updated.AttackVector = draft.AttackVector
	}
	if draft.DurationSeconds > 0 {
		updated.DurationSeconds = draft.DurationSeconds
	}
	if draft.Metadata != nil {
		updated.Metadata = draft.Metadata
	}

	if err := s.validator.Validate(ctx, &updated, key); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updated.UpdatedBy = actor
	updated.UpdatedAt = now
	updated.AppendHistory("UPDATE", actor,
		fmt.Sprintf("Scenario %q updated", updated.Name), now)

	if err := s.scenarios.Update(ctx, &updated); err != nil {
		return nil, err
	}

	s.emitLifecycle(model.EventScenarioUpdated, &updated)
	return &updated, nil
}

// Delete removes a scenario. Permitted only while PENDING.
func (s *Service) Delete(ctx context.Context, key, actor string) error {
	if err := s.acquire(key, "delete"); err != nil {
		return err
	}
	defer s.release(key)

	scenario, err := s.scenarios.Get(ctx, key)
	if err != nil {
		return err
	}
	if scenario.Status != model.ScenarioStatusPending {
		return &InvalidStateTransitionError{ScenarioKey: key, From: scenario.Status, Operation: "delete"}
	}

	// The DELETE entry is recorded before the document is removed; the store
	// holds nothing afterwards, so the entry survives only on the emitted
	// event's copy of the scenario.
	scenario.AppendHistory("DELETE", actor,
		fmt.Sprintf("Scenario %q deleted", scenario.Name), time.Now().UTC())

	if err := s.scenarios.Delete(ctx, key); err != nil {
		return err
	}

	s.logger.Info("scenario deleted",
		zap.String("scenario", key), zap.String("actor", actor))
	s.emitLifecycle(model.EventScenarioDeleted, scenario)
	return nil
}

// Execute transitions a PENDING scenario to RUNNING and launches the
// asynchronous run. The call returns as soon as the RUNNING transition is
// committed; a non-PENDING scenario fails fast with no side effects.
func (s *Service) Execute(ctx context.Context, key, actor string) (*Run, error) {
	if err := s.acquire(key, "execute"); err != nil {
		return nil, err
	}

	scenario, err := s.scenarios.Get(ctx, key)
	if err != nil {
		s.release(key)
		return nil, err
	}
	if scenario.Status != model.ScenarioStatusPending {
		s.release(key)
		return nil, &InvalidStateTransitionError{ScenarioKey: key, From: scenario.Status, Operation: "execute"}
	}

	now := time.Now().UTC()
	scenario.Status = model.ScenarioStatusRunning
	scenario.UpdatedBy = actor
	scenario.UpdatedAt = now
	scenario.AppendHistory("EXECUTE", actor,
		fmt.Sprintf("Execution started by %s", actor), now)

	if err := s.scenarios.Update(ctx, scenario); err != nil {
		// Roll the in-memory transition back; nothing was committed.
		s.release(key)
		return nil, err
	}

	s.logger.Info("scenario execution started",
		zap.String("scenario", key), zap.String("actor", actor))
	s.emitLifecycle(model.EventScenarioExecuted, scenario)

	// Register the run and free the transition slot before the loop starts:
	// a run fast enough to finish immediately must find its handle in the map
	// and the slot open for its terminal commit.
	run := s.engine.newRun(scenario, actor)
	s.mu.Lock()
	s.runs[key] = run
	s.mu.Unlock()
	s.release(key)

	s.engine.start(run, scenario, s.finishRun)
	return run, nil
}

// Cancel requests cooperative cancellation of a running scenario. The run
// loop observes the request at its next checkpoint; the terminal CANCELLED
// transition is committed by the run, not here.
func (s *Service) Cancel(ctx context.Context, key, actor string) error {
	scenario, err := s.scenarios.Get(ctx, key)
	if err != nil {
		return err
	}
	if scenario.Status != model.ScenarioStatusRunning {
		return &InvalidStateTransitionError{ScenarioKey: key, From: scenario.Status, Operation: "cancel"}
	}

	s.mu.Lock()
	run := s.runs[key]
	s.mu.Unlock()

	if run == nil {
		// RUNNING in the store but no live run: the process owning the run
		// is gone. Commit the terminal state directly.
		return s.commitTerminal(key, actor, model.ScenarioStatusCancelled, nil,
			"Cancelled with no live run")
	}

	run.requestCancel(actor)
	s.logger.Info("scenario cancellation requested",
		zap.String("scenario", key), zap.String("actor", actor))
	return nil
}

// Get returns a scenario by key.
func (s *Service) Get(ctx context.Context, key string) (*model.Scenario, error) {
	return s.scenarios.Get(ctx, key)
}

// Query returns one page of scenarios plus the total match count.
func (s *Service) Query(ctx context.Context, q ScenarioQuery) ([]model.Scenario, int, error) {
	return s.scenarios.Query(ctx, q)
}

// Run returns the active run for a scenario, or nil.
func (s *Service) Run(key string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[key]
}

// finishRun is the engine's terminal callback. It commits exactly one
// terminal transition per run.
func (s *Service) finishRun(run *Run, status model.ScenarioStatus, stats *model.RunStatistics, note string) {
	if err := s.commitTerminal(run.ScenarioKey, run.actor, status, stats, note); err != nil {
		s.logger.Error("failed to commit terminal run state",
			zap.String("scenario", run.ScenarioKey),
			zap.String("status", string(status)),
			zap.Error(err))
	}

	s.mu.Lock()
	if s.runs[run.ScenarioKey] == run {
		delete(s.runs, run.ScenarioKey)
	}
	s.mu.Unlock()
}

func (s *Service) commitTerminal(key, actor string, status model.ScenarioStatus, stats *model.RunStatistics, note string) error {
	s.waitAcquire(key)
	defer s.release(key)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scenario, err := s.scenarios.Get(ctx, key)
	if err != nil {
		return err
	}
	if scenario.Status != model.ScenarioStatusRunning {
		return &InvalidStateTransitionError{ScenarioKey: key, From: scenario.Status, Operation: "finish"}
	}

	var action, eventType string
	switch status {
	case model.ScenarioStatusCompleted:
		action, eventType = "COMPLETE", model.EventScenarioCompleted
	case model.ScenarioStatusFailed:
		action, eventType = "FAIL", model.EventScenarioFailed
	case model.ScenarioStatusCancelled:
		action, eventType = "CANCEL", model.EventScenarioCancelled
	default:
		return fmt.Errorf("status %s is not terminal", status)
	}

	now := time.Now().UTC()
	scenario.Status = status
	scenario.UpdatedBy = actor
	scenario.UpdatedAt = now
	scenario.AppendHistory(action, actor, note, now)

	if err := s.scenarios.Update(ctx, scenario); err != nil {
		return err
	}

	s.logger.Info("scenario reached terminal state",
		zap.String("scenario", key),
		zap.String("status", string(status)))

	payload := map[string]interface{}{"scenario": scenario}
	if stats != nil {
		payload["statistics"] = stats
	}
	s.sink.Publish(model.TopicScenarioLifecycle,
		model.NewEnvelope(eventType, payload),
		model.EventScope{FilterValue: scenario.Key})
	return nil
}

func (s *Service) emitLifecycle(eventType string, scenario *model.Scenario) {
	s.sink.Publish(model.TopicScenarioLifecycle,
		model.NewEnvelope(eventType, map[string]interface{}{"scenario": scenario}),
		model.EventScope{FilterValue: scenario.Key})
}
