// Package model defines the data structures used by the simnet-backend,
// including scenarios, devices, alerts, and the websocket event envelope.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ScenarioType classifies the kind of attack or failure a scenario simulates
type ScenarioType string

const (
	// ScenarioTypeRansomware simulates file-encryption attacks with ransom demands.
	ScenarioTypeRansomware ScenarioType = "RANSOMWARE"
	// ScenarioTypeDDoS simulates distributed denial-of-service traffic floods.
	ScenarioTypeDDoS ScenarioType = "DDOS"
	// ScenarioTypeInsiderThreat simulates malicious activity from a trusted account.
	ScenarioTypeInsiderThreat ScenarioType = "INSIDER_THREAT"
	// ScenarioTypePhishing simulates credential-harvesting campaigns against users.
	ScenarioTypePhishing ScenarioType = "PHISHING"
	// ScenarioTypeCustom is a free-form scenario driven entirely by metadata.
	ScenarioTypeCustom ScenarioType = "CUSTOM"
)

// ScenarioStatus is the lifecycle state of a scenario
type ScenarioStatus string

const (
	// ScenarioStatusPending is the initial state; the only state that allows update/delete/execute.
	ScenarioStatusPending ScenarioStatus = "PENDING"
	// ScenarioStatusRunning means an execution is in flight.
	ScenarioStatusRunning ScenarioStatus = "RUNNING"
	// ScenarioStatusCompleted is terminal: the run finished normally.
	ScenarioStatusCompleted ScenarioStatus = "COMPLETED"
	// ScenarioStatusFailed is terminal: the run hit an internal error.
	ScenarioStatusFailed ScenarioStatus = "FAILED"
	// ScenarioStatusCancelled is terminal: a cancel request was observed mid-run.
	ScenarioStatusCancelled ScenarioStatus = "CANCELLED"
)

// IsTerminal reports whether the status allows no further transitions.
func (s ScenarioStatus) IsTerminal() bool {
	return s == ScenarioStatusCompleted || s == ScenarioStatusFailed || s == ScenarioStatusCancelled
}

// ValidScenarioType reports whether t is one of the known scenario types.
func ValidScenarioType(t ScenarioType) bool {
	switch t {
	case ScenarioTypeRansomware, ScenarioTypeDDoS, ScenarioTypeInsiderThreat,
		ScenarioTypePhishing, ScenarioTypeCustom:
		return true
	}
	return false
}

// HistoryEntry is one audit record in a scenario's execution history
type HistoryEntry struct {
	Action    string    `json:"action"`    // Transition that was applied (e.g., "CREATE", "EXECUTE").
	Actor     string    `json:"actor"`     // Identity that requested the transition.
	Note      string    `json:"note"`      // Human-readable description for the audit trail.
	Timestamp time.Time `json:"timestamp"` // When the transition was committed.
}

// Scenario represents a what-if attack/failure simulation stored in the database
type Scenario struct {
	Key              string                 `json:"_key,omitempty"`    // Unique identifier (UUID) of the scenario in the database.
	ObjType          string                 `json:"objtype,omitempty"` // The object type for database indexing (should be "Scenario").
	Name             string                 `json:"name"`              // Unique name among non-deleted scenarios.
	Type             ScenarioType           `json:"type"`              // Attack/failure classification.
	Description      string                 `json:"description,omitempty"`
	TargetDevices    []string               `json:"target_devices"` // Device keys the scenario runs against; must be non-empty.
	AttackVector     string                 `json:"attack_vector"`  // Delivery mechanism (e.g., "email", "usb", "network").
	DurationSeconds  int                    `json:"duration_seconds"`
	Status           ScenarioStatus         `json:"status"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"` // Type-specific parameters (iterations, ransom amount, ...).
	ExecutionHistory []HistoryEntry         `json:"execution_history"`
	CreatedBy        string                 `json:"created_by,omitempty"`
	CreatedAt        time.Time              `json:"created_at,omitempty"`
	UpdatedBy        string                 `json:"updated_by,omitempty"`
	UpdatedAt        time.Time              `json:"updated_at,omitempty"`
}

// NewScenario creates a Scenario in the PENDING state with a fresh key.
func NewScenario() *Scenario {
	return &Scenario{
		Key:              uuid.New().String(),
		ObjType:          "Scenario",
		Status:           ScenarioStatusPending,
		ExecutionHistory: []HistoryEntry{},
	}
}

// AppendHistory records one transition on the scenario's audit trail.
func (s *Scenario) AppendHistory(action, actor, note string, at time.Time) {
	s.ExecutionHistory = append(s.ExecutionHistory, HistoryEntry{
		Action:    action,
		Actor:     actor,
		Note:      note,
		Timestamp: at,
	})
}

// MetadataInt reads an integer metadata value, tolerating the float64 that
// JSON decoding produces for numbers.
func (s *Scenario) MetadataInt(key string) (int, bool) {
	v, ok := s.Metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// MetadataFloat reads a numeric metadata value as float64.
func (s *Scenario) MetadataFloat(key string) (float64, bool) {
	v, ok := s.Metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// MetadataString reads a string metadata value.
func (s *Scenario) MetadataString(key string) (string, bool) {
	v, ok := s.Metadata[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}
