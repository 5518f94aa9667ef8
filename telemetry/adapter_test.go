package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberrange/simnet-backend/model"
	"github.com/cyberrange/simnet-backend/simulation"
)

type recordedEvent struct {
	topic model.Topic
	env   model.Envelope
	scope model.EventScope
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingSink) Publish(topic model.Topic, env model.Envelope, scope model.EventScope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{topic: topic, env: env, scope: scope})
}

func (r *recordingSink) ofType(eventType string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []recordedEvent
	for _, ev := range r.events {
		if ev.env.Type == eventType {
			matched = append(matched, ev)
		}
	}
	return matched
}

type fakeAlertLog struct {
	mu       sync.Mutex
	recorded []model.Alert
	resolved []string
}

func (f *fakeAlertLog) Record(_ context.Context, alert model.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, alert)
	return nil
}

func (f *fakeAlertLog) Resolve(_ context.Context, deviceKey string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, deviceKey)
	return nil
}

func adapterFixture() (*Adapter, *simulation.MemDeviceStore, *recordingSink, *fakeAlertLog) {
	devices := simulation.NewMemDeviceStore(
		model.Device{Key: "d1", Name: "edge-gw-1", Owner: "ops", Criticality: model.CriticalityHigh, Status: model.DeviceStatusHealthy, Active: true},
	)
	sink := &recordingSink{}
	alerts := &fakeAlertLog{}
	return NewAdapter(sink, devices, alerts, nil), devices, sink, alerts
}

func TestOnHeartbeat_PublishesStatusWithFullScope(t *testing.T) {
	adapter, devices, sink, _ := adapterFixture()

	metrics := map[string]float64{"cpu": 0.42}
	err := adapter.OnHeartbeat(context.Background(), "d1", model.DeviceStatusHealthy, metrics)
	require.NoError(t, err)

	events := sink.ofType(model.EventDeviceStatus)
	require.Len(t, events, 1)
	assert.Equal(t, model.TopicDeviceStatus, events[0].topic)
	assert.Equal(t, "d1", events[0].scope.DeviceKey)
	assert.Equal(t, "ops", events[0].scope.Owner)
	assert.Equal(t, string(model.CriticalityHigh), events[0].scope.Criticality)

	stored, err := devices.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, metrics, stored.Metrics)
	assert.False(t, stored.LastSeenAt.IsZero())
}

func TestOnHeartbeat_UnknownDevice(t *testing.T) {
	adapter, _, sink, _ := adapterFixture()

	err := adapter.OnHeartbeat(context.Background(), "ghost", model.DeviceStatusHealthy, nil)

	var notFoundErr *simulation.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Empty(t, sink.ofType(model.EventDeviceStatus))
}

func TestOnHeartbeat_DegradedRaisesWarning(t *testing.T) {
	adapter, _, sink, alerts := adapterFixture()

	require.NoError(t, adapter.OnHeartbeat(context.Background(), "d1", model.DeviceStatusDegraded, nil))

	raised := sink.ofType(model.EventAlertRaised)
	require.Len(t, raised, 1)
	require.Len(t, alerts.recorded, 1)
	assert.Equal(t, "d1", alerts.recorded[0].DeviceKey)
	assert.Equal(t, "warning", alerts.recorded[0].Severity)
}

func TestOnHeartbeat_CompromisedRaisesCritical(t *testing.T) {
	adapter, _, sink, alerts := adapterFixture()

	require.NoError(t, adapter.OnHeartbeat(context.Background(), "d1", model.DeviceStatusCompromised, nil))

	require.Len(t, sink.ofType(model.EventAlertRaised), 1)
	require.Len(t, alerts.recorded, 1)
	assert.Equal(t, "critical", alerts.recorded[0].Severity)
}

func TestOnHeartbeat_RepeatedStatusDoesNotReRaise(t *testing.T) {
	adapter, _, sink, alerts := adapterFixture()

	require.NoError(t, adapter.OnHeartbeat(context.Background(), "d1", model.DeviceStatusDegraded, nil))
	require.NoError(t, adapter.OnHeartbeat(context.Background(), "d1", model.DeviceStatusDegraded, nil))

	// Every heartbeat publishes a status event, only the transition alerts.
	assert.Len(t, sink.ofType(model.EventDeviceStatus), 2)
	assert.Len(t, sink.ofType(model.EventAlertRaised), 1)
	assert.Len(t, alerts.recorded, 1)
}

func TestOnHeartbeat_RecoveryResolves(t *testing.T) {
	adapter, _, sink, alerts := adapterFixture()

	require.NoError(t, adapter.OnHeartbeat(context.Background(), "d1", model.DeviceStatusCompromised, nil))
	require.NoError(t, adapter.OnHeartbeat(context.Background(), "d1", model.DeviceStatusHealthy, nil))

	resolved := sink.ofType(model.EventAlertResolved)
	require.Len(t, resolved, 1)
	require.Len(t, alerts.resolved, 1)
	assert.Equal(t, "d1", alerts.resolved[0])
}

func TestOnHeartbeat_HealthyWithoutPriorAlertIsQuiet(t *testing.T) {
	adapter, _, sink, alerts := adapterFixture()

	require.NoError(t, adapter.OnHeartbeat(context.Background(), "d1", model.DeviceStatusHealthy, nil))

	assert.Empty(t, sink.ofType(model.EventAlertResolved))
	assert.Empty(t, alerts.resolved)
}

func TestOnHeartbeat_OfflineNeverAlerts(t *testing.T) {
	adapter, _, sink, alerts := adapterFixture()

	require.NoError(t, adapter.OnHeartbeat(context.Background(), "d1", model.DeviceStatusOffline, nil))

	assert.Len(t, sink.ofType(model.EventDeviceStatus), 1)
	assert.Empty(t, sink.ofType(model.EventAlertRaised))
	assert.Empty(t, alerts.recorded)
}
