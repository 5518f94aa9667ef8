// Package scenarios defines the GraphQL queries for scenario browsing.
package scenarios

import (
	"github.com/graphql-go/graphql"

	"github.com/cyberrange/simnet-backend/simulation"
)

// GetQueryFields returns the scenario queries to be mounted in the root schema
func GetQueryFields(svc *simulation.Service) graphql.Fields {
	return graphql.Fields{
		"scenario": &graphql.Field{
			Type: ScenarioType,
			Args: graphql.FieldConfigArgument{
				"key": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				key := p.Args["key"].(string)
				return ResolveScenario(p.Context, svc, key)
			},
		},
		"scenarios": &graphql.Field{
			Type: ScenarioPageType,
			Args: graphql.FieldConfigArgument{
				"type":      &graphql.ArgumentConfig{Type: graphql.String},
				"status":    &graphql.ArgumentConfig{Type: graphql.String},
				"createdBy": &graphql.ArgumentConfig{Type: graphql.String},
				"from":      &graphql.ArgumentConfig{Type: graphql.DateTime},
				"to":        &graphql.ArgumentConfig{Type: graphql.DateTime},
				"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				"offset":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolveScenarios(p.Context, svc, p.Args)
			},
		},
		"scenarioRun": &graphql.Field{
			Type: ExecutionRunType,
			Args: graphql.FieldConfigArgument{
				"scenarioKey": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				key := p.Args["scenarioKey"].(string)
				return ResolveRun(svc, key)
			},
		},
	}
}
