package model

import (
	"encoding/json"
	"time"
)

// Topic is a logical event category used for subscription matching
type Topic string

const (
	// TopicDeviceStatus carries normalized heartbeat events.
	TopicDeviceStatus Topic = "device-status"
	// TopicAlert carries alert raise/resolve events.
	TopicAlert Topic = "alert"
	// TopicScenarioLifecycle carries scenario state-machine transitions.
	// It is the broadcast-all topic: sessions without a subscription still
	// receive it.
	TopicScenarioLifecycle Topic = "scenario-lifecycle"
)

// Reserved envelope types for per-session control messages. These are sent
// only to the originating session, never broadcast.
const (
	MessageTypeWelcome                 = "welcome"
	MessageTypeError                   = "error"
	MessageTypeSubscriptionConfirmed   = "subscription.confirmed"
	MessageTypeUnsubscriptionConfirmed = "unsubscription.confirmed"
)

// Client-to-server control message types.
const (
	ClientMessageSubscribe   = "subscribe"
	ClientMessageUnsubscribe = "unsubscribe"
	ClientMessagePong        = "pong"
)

// Lifecycle event types emitted by the scenario state machine, one per
// committed transition.
const (
	EventScenarioCreated   = "scenario.created"
	EventScenarioUpdated   = "scenario.updated"
	EventScenarioDeleted   = "scenario.deleted"
	EventScenarioExecuted  = "scenario.executed"
	EventScenarioProgress  = "scenario.progress"
	EventScenarioOutcome   = "scenario.outcome"
	EventScenarioCompleted = "scenario.completed"
	EventScenarioFailed    = "scenario.failed"
	EventScenarioCancelled = "scenario.cancelled"
)

// Telemetry event types produced by the adapter.
const (
	EventDeviceStatus  = "device.status"
	EventAlertRaised   = "alert.raised"
	EventAlertResolved = "alert.resolved"
)

// Envelope is the wire-level message shape shared by broadcasts and
// per-session control messages: { type, payload, timestamp }.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"` // Serialized as RFC 3339 / ISO-8601.
}

// NewEnvelope stamps an envelope with the current UTC time.
func NewEnvelope(msgType string, payload interface{}) Envelope {
	return Envelope{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ClientMessage is a control message received from a connected client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload is the payload of subscribe/unsubscribe client messages.
type SubscribePayload struct {
	FilterType  string `json:"filterType"`
	FilterValue string `json:"filterValue,omitempty"`
}

// EventScope carries the scoping keys a subscription filter is matched
// against when a message is published.
type EventScope struct {
	DeviceKey   string // Device the event concerns, if any.
	Owner       string // Owner of that device, if known.
	Criticality string // Criticality bucket of that device, if known.
	FilterValue string // Generic value matched by BY_FILTER_VALUE subscriptions.
}
