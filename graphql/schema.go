// Package graphql assembles the root schema from the query modules.
package graphql

import (
	gql "github.com/graphql-go/graphql"

	devicesgql "github.com/cyberrange/simnet-backend/graphql/modules/devices"
	scenariosgql "github.com/cyberrange/simnet-backend/graphql/modules/scenarios"
	"github.com/cyberrange/simnet-backend/simulation"
)

var scenarioService *simulation.Service
var deviceStore simulation.DeviceStore
var alertHistory devicesgql.AlertHistory

// InitServices stores the collaborators the resolvers close over. Call once
// before CreateSchema.
func InitServices(svc *simulation.Service, devices simulation.DeviceStore, alerts devicesgql.AlertHistory) {
	scenarioService = svc
	deviceStore = devices
	alertHistory = alerts
}

// CreateSchema builds the root query schema from the module query fields.
func CreateSchema() (gql.Schema, error) {
	fields := gql.Fields{}

	for name, field := range scenariosgql.GetQueryFields(scenarioService) {
		fields[name] = field
	}
	for name, field := range devicesgql.GetQueryFields(deviceStore, alertHistory) {
		fields[name] = field
	}

	rootQuery := gql.NewObject(gql.ObjectConfig{
		Name:   "Query",
		Fields: fields,
	})

	return gql.NewSchema(gql.SchemaConfig{
		Query: rootQuery,
	})
}
