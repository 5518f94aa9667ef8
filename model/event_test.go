package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_JSONRoundTrip(t *testing.T) {
	env := NewEnvelope(EventScenarioCreated, map[string]interface{}{
		"scenario_key": "abc-123",
		"progress":     42.0,
	})

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	// The wire timestamp is RFC 3339 / ISO-8601.
	var wire struct {
		Type      string `json:"type"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, EventScenarioCreated, wire.Type)
	_, err = time.Parse(time.RFC3339Nano, wire.Timestamp)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, env.Type, decoded.Type)
	assert.Equal(t, map[string]interface{}{
		"scenario_key": "abc-123",
		"progress":     42.0,
	}, decoded.Payload)
	assert.True(t, decoded.Timestamp.Equal(env.Timestamp))
}

func TestClientMessage_SubscribeRoundTrip(t *testing.T) {
	raw := []byte(`{"type":"subscribe","payload":{"filterType":"BY_DEVICE","filterValue":"d1"}}`)

	var msg ClientMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, ClientMessageSubscribe, msg.Type)

	var payload SubscribePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "BY_DEVICE", payload.FilterType)
	assert.Equal(t, "d1", payload.FilterValue)

	// Re-encoding produces the same control message.
	encoded, err := json.Marshal(ClientMessage{Type: msg.Type, Payload: msg.Payload})
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(encoded))
}

func TestClientMessage_UnsubscribeAndPong(t *testing.T) {
	var unsub ClientMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"unsubscribe"}`), &unsub))
	assert.Equal(t, ClientMessageUnsubscribe, unsub.Type)
	assert.Empty(t, unsub.Payload)

	var pong ClientMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"pong"}`), &pong))
	assert.Equal(t, ClientMessagePong, pong.Type)
	assert.Empty(t, pong.Payload)
}
