package broadcast

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberrange/simnet-backend/model"
)

// fakeConn records every envelope written to it; failWrites simulates a dead
// socket.
type fakeConn struct {
	mu         sync.Mutex
	messages   []model.Envelope
	failWrites bool
	closed     bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("broken pipe")
	}
	env, ok := v.(model.Envelope)
	if !ok {
		return errors.New("unexpected payload type")
	}
	c.messages = append(c.messages, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	for i, env := range c.messages {
		out[i] = env.Type
	}
	return out
}

func newBroadcaster() *Broadcaster {
	return NewBroadcaster(NewRegistry(), nil)
}

func TestRegistry_RegisterReplacesStaleSession(t *testing.T) {
	r := NewRegistry()
	first := &fakeConn{}
	second := &fakeConn{}

	r.Register("s1", first)
	sess := r.Register("s1", second)

	assert.Equal(t, 1, r.Count())
	assert.Same(t, sess, r.Get("s1"))
	assert.True(t, first.closed, "replaced connection must be closed")
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	r.Register("s1", conn)

	r.Unregister("s1")
	r.Unregister("s1")
	r.Unregister("never-registered")

	assert.Equal(t, 0, r.Count())
	assert.Nil(t, r.Get("s1"))
	assert.True(t, conn.closed)
}

func TestSubscribe_UnknownFilterRejected(t *testing.T) {
	b := newBroadcaster()
	b.Registry().Register("s1", &fakeConn{})

	err := b.Subscribe("s1", "BY_MOON_PHASE", "")

	var invalidErr *InvalidFilterTypeError
	require.ErrorAs(t, err, &invalidErr)
	assert.Nil(t, b.Registry().Get("s1").Subscription(), "rejected filter must not be stored")
}

func TestSubscribe_ReplacesPriorSubscription(t *testing.T) {
	b := newBroadcaster()
	b.Registry().Register("s1", &fakeConn{})

	require.NoError(t, b.Subscribe("s1", "BY_DEVICE", "d1"))
	require.NoError(t, b.Subscribe("s1", "BY_OWNER", "ops"))

	sub := b.Registry().Get("s1").Subscription()
	require.NotNil(t, sub)
	assert.Equal(t, FilterByOwner, sub.Type)
	assert.Equal(t, "ops", sub.Value)
}

func TestPublish_UnsubscribedSessionGetsLifecycleOnly(t *testing.T) {
	// GIVEN a connected session with no subscription
	b := newBroadcaster()
	conn := &fakeConn{}
	b.Registry().Register("s1", conn)

	// WHEN events are published on every topic
	b.Publish(model.TopicScenarioLifecycle,
		model.NewEnvelope(model.EventScenarioCreated, nil), model.EventScope{})
	b.Publish(model.TopicDeviceStatus,
		model.NewEnvelope(model.EventDeviceStatus, nil), model.EventScope{DeviceKey: "d1"})
	b.Publish(model.TopicAlert,
		model.NewEnvelope(model.EventAlertRaised, nil), model.EventScope{DeviceKey: "d1"})

	// THEN only the broadcast-all topic is delivered
	assert.Equal(t, []string{model.EventScenarioCreated}, conn.types())
}

func TestPublish_AllSubscriptionGetsEverything(t *testing.T) {
	b := newBroadcaster()
	conn := &fakeConn{}
	b.Registry().Register("s1", conn)
	require.NoError(t, b.Subscribe("s1", "ALL", ""))

	b.Publish(model.TopicScenarioLifecycle,
		model.NewEnvelope(model.EventScenarioCreated, nil), model.EventScope{})
	b.Publish(model.TopicDeviceStatus,
		model.NewEnvelope(model.EventDeviceStatus, nil), model.EventScope{DeviceKey: "d1"})
	b.Publish(model.TopicAlert,
		model.NewEnvelope(model.EventAlertRaised, nil), model.EventScope{DeviceKey: "d1"})

	assert.Len(t, conn.types(), 3)
}

func TestPublish_DeviceFilterScopesDelivery(t *testing.T) {
	b := newBroadcaster()
	watcher := &fakeConn{}
	b.Registry().Register("watcher", watcher)
	require.NoError(t, b.Subscribe("watcher", "BY_DEVICE", "d1"))

	b.Publish(model.TopicDeviceStatus,
		model.NewEnvelope(model.EventDeviceStatus, "d1 payload"),
		model.EventScope{DeviceKey: "d1"})
	b.Publish(model.TopicDeviceStatus,
		model.NewEnvelope(model.EventDeviceStatus, "d2 payload"),
		model.EventScope{DeviceKey: "d2"})

	require.Len(t, watcher.messages, 1)
	assert.Equal(t, "d1 payload", watcher.messages[0].Payload)
}

func TestPublish_FailingSessionDoesNotAffectOthers(t *testing.T) {
	// GIVEN three sessions where one write always fails
	b := newBroadcaster()
	healthy1 := &fakeConn{}
	broken := &fakeConn{failWrites: true}
	healthy2 := &fakeConn{}
	b.Registry().Register("h1", healthy1)
	b.Registry().Register("broken", broken)
	b.Registry().Register("h2", healthy2)

	// WHEN a broadcast-all event is published
	b.Publish(model.TopicScenarioLifecycle,
		model.NewEnvelope(model.EventScenarioCompleted, nil), model.EventScope{})

	// THEN the healthy sessions receive it and the failing one is torn down
	assert.Len(t, healthy1.types(), 1)
	assert.Len(t, healthy2.types(), 1)
	assert.Nil(t, b.Registry().Get("broken"))
	assert.True(t, broken.closed)
	assert.Equal(t, 2, b.Registry().Count())
}

func TestSendTo_OnlyReachesTargetSession(t *testing.T) {
	b := newBroadcaster()
	target := &fakeConn{}
	bystander := &fakeConn{}
	b.Registry().Register("target", target)
	b.Registry().Register("bystander", bystander)

	err := b.SendTo("target", model.NewEnvelope(model.MessageTypeWelcome, nil))

	require.NoError(t, err)
	assert.Equal(t, []string{model.MessageTypeWelcome}, target.types())
	assert.Empty(t, bystander.types())
}

func TestSendTo_UnknownSessionFails(t *testing.T) {
	b := newBroadcaster()
	err := b.SendTo("ghost", model.NewEnvelope(model.MessageTypeWelcome, nil))
	assert.Error(t, err)
}

func TestUnsubscribe_RevertsToBroadcastAllOnly(t *testing.T) {
	b := newBroadcaster()
	conn := &fakeConn{}
	b.Registry().Register("s1", conn)
	require.NoError(t, b.Subscribe("s1", "ALL", ""))
	require.NoError(t, b.Unsubscribe("s1"))

	b.Publish(model.TopicDeviceStatus,
		model.NewEnvelope(model.EventDeviceStatus, nil), model.EventScope{DeviceKey: "d1"})
	b.Publish(model.TopicScenarioLifecycle,
		model.NewEnvelope(model.EventScenarioCreated, nil), model.EventScope{})

	assert.Equal(t, []string{model.EventScenarioCreated}, conn.types())
}
