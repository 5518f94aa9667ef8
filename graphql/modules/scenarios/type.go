// Package scenarios defines the GraphQL types for scenario queries.
package scenarios

import (
	"encoding/json"

	"github.com/graphql-go/graphql"

	"github.com/cyberrange/simnet-backend/model"
)

// HistoryEntryType represents one audit entry in a scenario's execution history
var HistoryEntryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "HistoryEntry",
	Fields: graphql.Fields{
		"action":    &graphql.Field{Type: graphql.String},
		"actor":     &graphql.Field{Type: graphql.String},
		"note":      &graphql.Field{Type: graphql.String},
		"timestamp": &graphql.Field{Type: graphql.DateTime},
	},
})

// ScenarioType represents a stored attack scenario
var ScenarioType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Scenario",
	Fields: graphql.Fields{
		"key":              &graphql.Field{Type: graphql.String},
		"name":             &graphql.Field{Type: graphql.String},
		"type":             &graphql.Field{Type: graphql.String},
		"target_devices":   &graphql.Field{Type: graphql.NewList(graphql.String)},
		"attack_vector":    &graphql.Field{Type: graphql.String},
		"duration_seconds": &graphql.Field{Type: graphql.Int},
		"status":           &graphql.Field{Type: graphql.String},
		"metadata": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				scenario, ok := p.Source.(model.Scenario)
				if !ok {
					return nil, nil
				}
				if len(scenario.Metadata) == 0 {
					return "", nil
				}
				raw, err := json.Marshal(scenario.Metadata)
				if err != nil {
					return nil, err
				}
				return string(raw), nil
			},
		},
		"execution_history": &graphql.Field{Type: graphql.NewList(HistoryEntryType)},
		"created_by":        &graphql.Field{Type: graphql.String},
		"created_at":        &graphql.Field{Type: graphql.DateTime},
		"updated_at":        &graphql.Field{Type: graphql.DateTime},
	},
})

// ScenarioPageType represents one page of scenarios plus the total match count
var ScenarioPageType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ScenarioPage",
	Fields: graphql.Fields{
		"scenarios": &graphql.Field{Type: graphql.NewList(ScenarioType)},
		"total":     &graphql.Field{Type: graphql.Int},
	},
})

// OutcomeType represents a single simulated outcome during a run
var OutcomeType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Outcome",
	Fields: graphql.Fields{
		"type":         &graphql.Field{Type: graphql.String},
		"device_key":   &graphql.Field{Type: graphql.String},
		"impact_score": &graphql.Field{Type: graphql.Float},
		"timestamp":    &graphql.Field{Type: graphql.DateTime},
		"success":      &graphql.Field{Type: graphql.Boolean},
	},
})

// RunStatisticsType represents the aggregate statistics of a finished run
var RunStatisticsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RunStatistics",
	Fields: graphql.Fields{
		"mean_impact_score":     &graphql.Field{Type: graphql.Float},
		"min_impact_score":      &graphql.Field{Type: graphql.Float},
		"max_impact_score":      &graphql.Field{Type: graphql.Float},
		"stddev_impact_score":   &graphql.Field{Type: graphql.Float},
		"mean_financial_loss":   &graphql.Field{Type: graphql.Float},
		"stddev_financial_loss": &graphql.Field{Type: graphql.Float},
		"success_rate":          &graphql.Field{Type: graphql.Float},
		"total_outcomes":        &graphql.Field{Type: graphql.Int},
		"iterations":            &graphql.Field{Type: graphql.Int},
	},
})

// ExecutionRunType represents a live or finished execution run
var ExecutionRunType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ExecutionRun",
	Fields: graphql.Fields{
		"run_id":       &graphql.Field{Type: graphql.String},
		"scenario_key": &graphql.Field{Type: graphql.String},
		"started_at":   &graphql.Field{Type: graphql.DateTime},
		"ended_at":     &graphql.Field{Type: graphql.DateTime},
		"progress":     &graphql.Field{Type: graphql.Int},
		"outcomes":     &graphql.Field{Type: graphql.NewList(OutcomeType)},
		"statistics":   &graphql.Field{Type: RunStatisticsType},
	},
})
