package telemetry

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberrange/simnet-backend/model"
	"github.com/cyberrange/simnet-backend/simulation"
)

func simulatorFixture(interval time.Duration, profiles map[string]Profile) (*Simulator, *recordingSink) {
	devices := simulation.NewMemDeviceStore(
		model.Device{Key: "d1", Name: "edge-gw-1", Owner: "ops", Criticality: model.CriticalityHigh, Status: model.DeviceStatusHealthy, Active: true},
	)
	sink := &recordingSink{}
	adapter := NewAdapter(sink, devices, nil, nil)
	fixedRNG := func(string) *rand.Rand {
		return rand.New(rand.NewSource(7))
	}
	return NewSimulator(adapter, profiles, interval, fixedRNG, nil), sink
}

func TestSimulator_StartTwiceRejected(t *testing.T) {
	sim, _ := simulatorFixture(time.Hour, nil)
	defer sim.StopAll()

	require.NoError(t, sim.Start(context.Background(), "d1"))

	err := sim.Start(context.Background(), "d1")
	var alreadyErr *AlreadySimulatingError
	require.ErrorAs(t, err, &alreadyErr)
	assert.Equal(t, "d1", alreadyErr.DeviceKey)
}

func TestSimulator_StopIsIdempotent(t *testing.T) {
	sim, _ := simulatorFixture(time.Hour, nil)

	require.NoError(t, sim.Start(context.Background(), "d1"))
	assert.True(t, sim.Simulating("d1"))

	sim.Stop("d1")
	assert.False(t, sim.Simulating("d1"))

	// A second stop, or a stop for an unknown device, must not panic.
	sim.Stop("d1")
	sim.Stop("never-started")
}

func TestSimulator_StopAll(t *testing.T) {
	sim, _ := simulatorFixture(time.Hour, nil)

	require.NoError(t, sim.Start(context.Background(), "d1"))
	sim.StopAll()

	assert.False(t, sim.Simulating("d1"))
	require.NoError(t, sim.Start(context.Background(), "d1"))
	sim.StopAll()
}

func TestSimulator_EmitsHeartbeats(t *testing.T) {
	// A profile that always reports HEALTHY keeps the assertion simple.
	profiles := map[string]Profile{
		"d1": {BaseCPUPercent: 30, BaseMemoryPercent: 40, BaseLatencyMs: 10},
	}
	sim, sink := simulatorFixture(5*time.Millisecond, profiles)
	defer sim.StopAll()

	require.NoError(t, sim.Start(context.Background(), "d1"))

	assert.Eventually(t, func() bool {
		return len(sink.ofType(model.EventDeviceStatus)) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	events := sink.ofType(model.EventDeviceStatus)
	require.NotEmpty(t, events)
	assert.Equal(t, "d1", events[0].scope.DeviceKey)
	assert.Equal(t, "ops", events[0].scope.Owner)
}

func TestSimulator_ContextCancelStopsLoop(t *testing.T) {
	sim, sink := simulatorFixture(5*time.Millisecond, nil)
	defer sim.StopAll()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sim.Start(ctx, "d1"))

	assert.Eventually(t, func() bool {
		return len(sink.ofType(model.EventDeviceStatus)) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	before := len(sink.ofType(model.EventDeviceStatus))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, len(sink.ofType(model.EventDeviceStatus)))
}

func TestProfileFor_FallbackChain(t *testing.T) {
	custom := Profile{BaseCPUPercent: 90}
	fallback := Profile{BaseCPUPercent: 10}

	sim := NewSimulator(nil, map[string]Profile{"d1": custom, "default": fallback}, time.Hour, nil, nil)
	assert.Equal(t, custom, sim.profileFor("d1"))
	assert.Equal(t, fallback, sim.profileFor("d2"))

	bare := NewSimulator(nil, nil, time.Hour, nil, nil)
	assert.Equal(t, DefaultProfile(), bare.profileFor("d1"))
}
