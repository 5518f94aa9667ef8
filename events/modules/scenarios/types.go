// Package scenario handles Kafka event production for scenario lifecycle events.
package scenario

import (
	"time"

	"github.com/cyberrange/simnet-backend/model"
)

// LifecycleMirrorEvent is the Kafka contract for a mirrored broadcast event.
// Downstream consumers get the same envelope the websocket clients see, plus
// the scoping keys used for subscription matching.
type LifecycleMirrorEvent struct {
	EventID       string           `json:"event_id"`
	EventTime     time.Time        `json:"event_time"`
	SchemaVersion string           `json:"schema_version"`
	Topic         model.Topic      `json:"topic"`
	Envelope      model.Envelope   `json:"envelope"`
	Scope         model.EventScope `json:"scope"`
}

// HeartbeatEvent is the Kafka contract for inbound device telemetry.
type HeartbeatEvent struct {
	DeviceKey string             `json:"device_key"`
	Status    model.DeviceStatus `json:"status"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}
