package model

import "time"

// DeviceStatus is the reported health of a monitored device
type DeviceStatus string

const (
	// DeviceStatusHealthy means the device is operating normally.
	DeviceStatusHealthy DeviceStatus = "HEALTHY"
	// DeviceStatusDegraded means the device is up but performing poorly.
	DeviceStatusDegraded DeviceStatus = "DEGRADED"
	// DeviceStatusUnhealthy means the device is failing health checks.
	DeviceStatusUnhealthy DeviceStatus = "UNHEALTHY"
	// DeviceStatusCompromised means the device is under simulated attacker control.
	DeviceStatusCompromised DeviceStatus = "COMPROMISED"
	// DeviceStatusOffline means the device is unreachable.
	DeviceStatusOffline DeviceStatus = "OFFLINE"
)

// Criticality ranks how important a device is to the monitored estate
type Criticality string

const (
	// CriticalityLow marks devices whose loss has minimal impact.
	CriticalityLow Criticality = "LOW"
	// CriticalityMedium marks devices with moderate business impact.
	CriticalityMedium Criticality = "MEDIUM"
	// CriticalityHigh marks devices whose loss degrades core services.
	CriticalityHigh Criticality = "HIGH"
	// CriticalityCritical marks devices whose loss halts operations.
	CriticalityCritical Criticality = "CRITICAL"
)

// Device represents a monitored asset that scenarios target
type Device struct {
	Key         string             `json:"_key,omitempty"`    // Unique identifier of the device in the database.
	ObjType     string             `json:"objtype,omitempty"` // The object type for database indexing (should be "Device").
	Name        string             `json:"name"`
	Owner       string             `json:"owner,omitempty"` // Team or user responsible for the device.
	Criticality Criticality        `json:"criticality"`
	Status      DeviceStatus       `json:"status"`
	Active      bool               `json:"active"` // Inactive devices cannot be scenario targets.
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	LastSeenAt  time.Time          `json:"last_seen_at,omitempty"`
}

// Alert represents a raised condition on a device, produced by the telemetry
// adapter or by a simulation outcome.
type Alert struct {
	Key        string       `json:"_key,omitempty"`
	ObjType    string       `json:"objtype,omitempty"` // Should be "Alert".
	DeviceKey  string       `json:"device_key"`
	Severity   string       `json:"severity"` // warning | critical
	Status     DeviceStatus `json:"device_status"`
	Message    string       `json:"message"`
	RaisedAt   time.Time    `json:"raised_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}
