package simulation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberrange/simnet-backend/model"
)

// collectorSink records every published event for assertions.
type collectorSink struct {
	mu     sync.Mutex
	events []collectedEvent
}

type collectedEvent struct {
	topic model.Topic
	env   model.Envelope
	scope model.EventScope
}

func (c *collectorSink) Publish(topic model.Topic, env model.Envelope, scope model.EventScope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, collectedEvent{topic: topic, env: env, scope: scope})
}

func (c *collectorSink) ofType(eventType string) []model.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Envelope
	for _, ev := range c.events {
		if ev.env.Type == eventType {
			out = append(out, ev.env)
		}
	}
	return out
}

func (c *collectorSink) countOf(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.env.Type == eventType {
			n++
		}
	}
	return n
}

func newTestService(stepInterval time.Duration) (*Service, *MemScenarioStore, *collectorSink) {
	store := NewMemScenarioStore()
	sink := &collectorSink{}
	engine := NewEngine(sink, nil, stepInterval, 42)
	svc := NewService(store, testDevices(), sink, engine, nil)
	return svc, store, sink
}

func waitDone(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish in time")
	}
}

func TestCreate_StartsPendingWithOneHistoryEntry(t *testing.T) {
	svc, _, sink := newTestService(time.Millisecond)

	scenario, err := svc.Create(context.Background(), validDraft(), "alice")

	require.NoError(t, err)
	assert.Equal(t, model.ScenarioStatusPending, scenario.Status)
	assert.Equal(t, "alice", scenario.CreatedBy)
	require.Len(t, scenario.ExecutionHistory, 1)
	assert.Equal(t, "CREATE", scenario.ExecutionHistory[0].Action)
	assert.Equal(t, "alice", scenario.ExecutionHistory[0].Actor)
	assert.Equal(t, 1, sink.countOf(model.EventScenarioCreated))
}

func TestCreate_ValidationFailureLeavesNoState(t *testing.T) {
	svc, store, sink := newTestService(time.Millisecond)

	draft := validDraft()
	draft.TargetDevices = nil
	_, err := svc.Create(context.Background(), draft, "alice")

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, total, qErr := store.Query(context.Background(), ScenarioQuery{})
	require.NoError(t, qErr)
	assert.Zero(t, total, "failed create must not persist anything")
	assert.Zero(t, sink.countOf(model.EventScenarioCreated))
}

func TestUpdate_OnlyWhilePending(t *testing.T) {
	svc, _, sink := newTestService(time.Second)

	scenario, err := svc.Create(context.Background(), validDraft(), "alice")
	require.NoError(t, err)

	// Pending: update succeeds and appends history.
	updated, err := svc.Update(context.Background(), scenario.Key,
		&model.Scenario{AttackVector: "usb-drop"}, "bob")
	require.NoError(t, err)
	assert.Equal(t, "usb-drop", updated.AttackVector)
	assert.Equal(t, "UPDATE", updated.ExecutionHistory[len(updated.ExecutionHistory)-1].Action)
	assert.Equal(t, 1, sink.countOf(model.EventScenarioUpdated))

	// Running: update is rejected.
	_, err = svc.Execute(context.Background(), scenario.Key, "alice")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), scenario.Key,
		&model.Scenario{AttackVector: "other"}, "bob")
	var transitionErr *InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, model.ScenarioStatusRunning, transitionErr.From)
}

func TestDelete_OnlyWhilePending(t *testing.T) {
	svc, store, sink := newTestService(time.Second)

	scenario, err := svc.Create(context.Background(), validDraft(), "alice")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), scenario.Key, "alice"))

	// The deleted event carries the scenario with its DELETE entry appended;
	// with the document gone this copy is the only audit trail left.
	deleted := sink.ofType(model.EventScenarioDeleted)
	require.Len(t, deleted, 1)
	payload, ok := deleted[0].Payload.(map[string]interface{})
	require.True(t, ok)
	carried, ok := payload["scenario"].(*model.Scenario)
	require.True(t, ok)
	require.NotEmpty(t, carried.ExecutionHistory)
	assert.Equal(t, "DELETE", carried.ExecutionHistory[len(carried.ExecutionHistory)-1].Action)

	_, err = store.Get(context.Background(), scenario.Key)
	var notFoundErr *NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
}

func TestExecute_NonPendingFailsWithoutSideEffects(t *testing.T) {
	svc, store, sink := newTestService(time.Second)

	scenario, err := svc.Create(context.Background(), validDraft(), "alice")
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), scenario.Key, "alice")
	require.NoError(t, err)

	// Second execute sees RUNNING and is rejected.
	_, err = svc.Execute(context.Background(), scenario.Key, "alice")
	var transitionErr *InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)

	stored, err := store.Get(context.Background(), scenario.Key)
	require.NoError(t, err)
	assert.Equal(t, model.ScenarioStatusRunning, stored.Status)
	assert.Equal(t, 1, sink.countOf(model.EventScenarioExecuted))
}

func TestExecute_UnknownScenario(t *testing.T) {
	svc, _, _ := newTestService(time.Millisecond)

	_, err := svc.Execute(context.Background(), "ghost", "alice")

	var notFoundErr *NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
}

func TestCancel_RequiresRunning(t *testing.T) {
	svc, _, _ := newTestService(time.Millisecond)

	scenario, err := svc.Create(context.Background(), validDraft(), "alice")
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), scenario.Key, "alice")

	var transitionErr *InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, model.ScenarioStatusPending, transitionErr.From)
}

func TestExecute_FullLifecycleCompletes(t *testing.T) {
	// GIVEN a pending scenario and a fast-paced engine
	svc, store, sink := newTestService(time.Millisecond)

	scenario, err := svc.Create(context.Background(), validDraft(), "alice")
	require.NoError(t, err)

	// WHEN the scenario is executed and the run finishes
	run, err := svc.Execute(context.Background(), scenario.Key, "alice")
	require.NoError(t, err)
	waitDone(t, run)

	// THEN the stored scenario is COMPLETED with a full audit trail
	stored, err := store.Get(context.Background(), scenario.Key)
	require.NoError(t, err)
	assert.Equal(t, model.ScenarioStatusCompleted, stored.Status)

	actions := make([]string, 0, len(stored.ExecutionHistory))
	for _, entry := range stored.ExecutionHistory {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{"CREATE", "EXECUTE", "COMPLETE"}, actions)

	snapshot := run.Snapshot()
	assert.Equal(t, 100, snapshot.Progress)
	require.NotNil(t, snapshot.Statistics)
	assert.GreaterOrEqual(t, snapshot.Statistics.SuccessRate, 0.0)
	assert.LessOrEqual(t, snapshot.Statistics.SuccessRate, 1.0)
	assert.Equal(t, 1, snapshot.Statistics.Iterations)
	assert.Nil(t, snapshot.Statistics.OutcomeProbabilities)

	assert.Equal(t, 1, sink.countOf(model.EventScenarioCompleted))
	assert.Zero(t, sink.countOf(model.EventScenarioFailed))
	assert.Zero(t, sink.countOf(model.EventScenarioCancelled))
}

func TestCancel_MidRunReachesCancelledExactlyOnce(t *testing.T) {
	// GIVEN a long running scenario
	svc, store, sink := newTestService(20 * time.Millisecond)

	draft := validDraft()
	draft.DurationSeconds = 600 // Long timeline so the cancel lands mid-run.
	scenario, err := svc.Create(context.Background(), draft, "alice")
	require.NoError(t, err)

	run, err := svc.Execute(context.Background(), scenario.Key, "alice")
	require.NoError(t, err)

	// WHEN a cancel request arrives mid-run
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, svc.Cancel(context.Background(), scenario.Key, "bob"))
	waitDone(t, run)

	// THEN exactly one terminal transition was committed
	stored, err := store.Get(context.Background(), scenario.Key)
	require.NoError(t, err)
	assert.Equal(t, model.ScenarioStatusCancelled, stored.Status)
	assert.True(t, run.Cancelled())

	terminal := sink.countOf(model.EventScenarioCancelled) +
		sink.countOf(model.EventScenarioCompleted) +
		sink.countOf(model.EventScenarioFailed)
	assert.Equal(t, 1, terminal)

	last := stored.ExecutionHistory[len(stored.ExecutionHistory)-1]
	assert.Equal(t, "CANCEL", last.Action)
}

func TestExecute_MonteCarloProducesProbabilities(t *testing.T) {
	svc, store, sink := newTestService(time.Millisecond)

	draft := validDraft()
	draft.Metadata = map[string]interface{}{"iterations": 5.0}
	scenario, err := svc.Create(context.Background(), draft, "alice")
	require.NoError(t, err)

	run, err := svc.Execute(context.Background(), scenario.Key, "alice")
	require.NoError(t, err)
	waitDone(t, run)

	stored, err := store.Get(context.Background(), scenario.Key)
	require.NoError(t, err)
	assert.Equal(t, model.ScenarioStatusCompleted, stored.Status)

	stats := run.Snapshot().Statistics
	require.NotNil(t, stats)
	assert.Equal(t, 5, stats.Iterations)
	require.NotNil(t, stats.OutcomeProbabilities)
	for outcomeType, p := range stats.OutcomeProbabilities {
		assert.GreaterOrEqual(t, p, 0.0, outcomeType)
		assert.LessOrEqual(t, p, 1.0, outcomeType)
	}

	assert.GreaterOrEqual(t, sink.countOf(model.EventScenarioProgress), 1)
	assert.Equal(t, 1, sink.countOf(model.EventScenarioCompleted))
}

func TestRun_ClearedAfterTerminalState(t *testing.T) {
	svc, _, _ := newTestService(time.Millisecond)

	scenario, err := svc.Create(context.Background(), validDraft(), "alice")
	require.NoError(t, err)

	run, err := svc.Execute(context.Background(), scenario.Key, "alice")
	require.NoError(t, err)
	assert.Same(t, run, svc.Run(scenario.Key))

	waitDone(t, run)
	assert.Eventually(t, func() bool {
		return svc.Run(scenario.Key) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestExecute_InstantRunStillCommitsTerminal(t *testing.T) {
	// A run pacing faster than Execute's own bookkeeping must still find its
	// handle registered and the transition slot open for the terminal commit.
	for i := 0; i < 10; i++ {
		svc, store, sink := newTestService(time.Nanosecond)

		scenario, err := svc.Create(context.Background(), validDraft(), "alice")
		require.NoError(t, err)

		run, err := svc.Execute(context.Background(), scenario.Key, "alice")
		require.NoError(t, err)
		waitDone(t, run)

		stored, err := store.Get(context.Background(), scenario.Key)
		require.NoError(t, err)
		assert.Equal(t, model.ScenarioStatusCompleted, stored.Status)
		assert.Equal(t, 1, sink.countOf(model.EventScenarioCompleted))
		assert.Eventually(t, func() bool {
			return svc.Run(scenario.Key) == nil
		}, time.Second, time.Millisecond)
	}
}

func TestTerminalCommit_WaitsOutTransientSlotHolder(t *testing.T) {
	// GIVEN a running scenario whose transition slot is briefly held, as a
	// rejected concurrent update would hold it
	svc, store, sink := newTestService(20 * time.Millisecond)

	scenario, err := svc.Create(context.Background(), validDraft(), "alice")
	require.NoError(t, err)

	run, err := svc.Execute(context.Background(), scenario.Key, "alice")
	require.NoError(t, err)

	require.NoError(t, svc.acquire(scenario.Key, "update"))

	// WHEN the run reaches its terminal commit while the slot is taken
	require.NoError(t, svc.Cancel(context.Background(), scenario.Key, "bob"))
	time.Sleep(100 * time.Millisecond)
	svc.release(scenario.Key)

	// THEN the commit lands once the slot frees instead of being dropped
	waitDone(t, run)
	stored, err := store.Get(context.Background(), scenario.Key)
	require.NoError(t, err)
	assert.Equal(t, model.ScenarioStatusCancelled, stored.Status)
	assert.Equal(t, 1, sink.countOf(model.EventScenarioCancelled))
}

func TestExecute_FirstStepWaitsFullInterval(t *testing.T) {
	svc, _, sink := newTestService(150 * time.Millisecond)

	scenario, err := svc.Create(context.Background(), validDraft(), "alice")
	require.NoError(t, err)

	run, err := svc.Execute(context.Background(), scenario.Key, "alice")
	require.NoError(t, err)

	// No timeline step may land before the first pacing interval elapses.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, sink.countOf(model.EventScenarioProgress))

	require.NoError(t, svc.Cancel(context.Background(), scenario.Key, "alice"))
	waitDone(t, run)
}
