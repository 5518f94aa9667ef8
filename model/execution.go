package model

import "time"

// OutcomeType tags one simulated event within a run
type OutcomeType string

const (
	// OutcomeDeviceCompromised means the attacker gained control of a target.
	OutcomeDeviceCompromised OutcomeType = "DEVICE_COMPROMISED"
	// OutcomeDeviceUnavailable means a target dropped off the network.
	OutcomeDeviceUnavailable OutcomeType = "DEVICE_UNAVAILABLE"
	// OutcomeLinkFailure means a connection between devices failed.
	OutcomeLinkFailure OutcomeType = "LINK_FAILURE"
	// OutcomeDataExfiltration means simulated data left the estate.
	OutcomeDataExfiltration OutcomeType = "DATA_EXFILTRATION"
	// OutcomeDefenseHeld means the simulated attack step was repelled.
	OutcomeDefenseHeld OutcomeType = "DEFENSE_HELD"
)

// Outcome is a single simulated event produced during a run
type Outcome struct {
	Type        OutcomeType            `json:"type"`
	DeviceKey   string                 `json:"device_key,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	ImpactScore float64                `json:"impact_score"` // In [0,1].
	Details     map[string]interface{} `json:"details,omitempty"`
	Success     bool                   `json:"success"`
	Error       string                 `json:"error,omitempty"`
}

// Impact aggregates the effect of a run on one target device. Compromise is
// monotonic: once set it is cleared only by an explicit recovery.
type Impact struct {
	DeviceKey        string     `json:"device_key"`
	Compromised      bool       `json:"compromised"`
	Unavailable      bool       `json:"unavailable"`
	ImpactScore      float64    `json:"impact_score"` // In [0,1].
	CompromisedAt    *time.Time `json:"compromised_at,omitempty"`
	RecoveredAt      *time.Time `json:"recovered_at,omitempty"`
	DowntimeMinutes  float64    `json:"downtime_minutes"` // Recomputed on recovery.
	DataLossGB       float64    `json:"data_loss_gb"`
	FinancialLossUSD float64    `json:"financial_loss_usd"`
	AffectedServices []string   `json:"affected_services,omitempty"`
}

// RunStatistics holds the aggregates computed when a run reaches a terminal
// state.
type RunStatistics struct {
	MeanImpactScore      float64            `json:"mean_impact_score"`
	MinImpactScore       float64            `json:"min_impact_score"`
	MaxImpactScore       float64            `json:"max_impact_score"`
	StdDevImpactScore    float64            `json:"stddev_impact_score"`
	MeanFinancialLoss    float64            `json:"mean_financial_loss"`
	MinFinancialLoss     float64            `json:"min_financial_loss"`
	MaxFinancialLoss     float64            `json:"max_financial_loss"`
	StdDevFinancialLoss  float64            `json:"stddev_financial_loss"`
	SuccessRate          float64            `json:"success_rate"` // In [0,1].
	TotalOutcomes        int                `json:"total_outcomes"`
	Iterations           int                `json:"iterations"` // 1 for single runs, N for Monte Carlo.
	OutcomeProbabilities map[string]float64 `json:"outcome_probabilities,omitempty"` // Per outcome type, count/N.
}

// ExecutionRun is the ephemeral record of one asynchronous scenario
// execution. It lives only for the lifetime of the process; persistence of
// results, if any, belongs to an external collaborator.
type ExecutionRun struct {
	RunID       string             `json:"run_id"`
	ScenarioKey string             `json:"scenario_key"`
	StartedAt   time.Time          `json:"started_at"`
	EndedAt     *time.Time         `json:"ended_at,omitempty"`
	Progress    int                `json:"progress"` // 0-100, monotonically increasing.
	Outcomes    []Outcome          `json:"outcomes"`
	Impacts     map[string]*Impact `json:"impacts"` // Keyed by device key.
	Statistics  *RunStatistics     `json:"statistics,omitempty"`
}
