package scenarios

import (
	"context"
	"time"

	"github.com/cyberrange/simnet-backend/model"
	"github.com/cyberrange/simnet-backend/simulation"
)

// ScenarioPage is the resolver result for the paginated scenarios query.
type ScenarioPage struct {
	Scenarios []model.Scenario `json:"scenarios"`
	Total     int              `json:"total"`
}

// ResolveScenario looks up a single scenario by key.
func ResolveScenario(ctx context.Context, svc *simulation.Service, key string) (interface{}, error) {
	scenario, err := svc.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return *scenario, nil
}

// ResolveScenarios applies the query filters and returns one page of results.
func ResolveScenarios(ctx context.Context, svc *simulation.Service, args map[string]interface{}) (interface{}, error) {
	q := simulation.ScenarioQuery{}

	if v, ok := args["type"].(string); ok {
		q.Type = model.ScenarioType(v)
	}
	if v, ok := args["status"].(string); ok {
		q.Status = model.ScenarioStatus(v)
	}
	if v, ok := args["createdBy"].(string); ok {
		q.CreatedBy = v
	}
	if v, ok := args["from"].(time.Time); ok {
		q.From = v
	}
	if v, ok := args["to"].(time.Time); ok {
		q.To = v
	}
	if v, ok := args["limit"].(int); ok {
		q.Limit = v
	}
	if v, ok := args["offset"].(int); ok {
		q.Offset = v
	}

	scenarios, total, err := svc.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	return ScenarioPage{Scenarios: scenarios, Total: total}, nil
}

// ResolveRun returns the live snapshot of the most recent run for a scenario,
// or nil when none has been started this process lifetime.
func ResolveRun(svc *simulation.Service, scenarioKey string) (interface{}, error) {
	run := svc.Run(scenarioKey)
	if run == nil {
		return nil, nil
	}
	return run.Snapshot(), nil
}
