// Package devices defines the GraphQL types and queries for the device inventory.
package devices

import (
	"context"

	"github.com/graphql-go/graphql"

	"github.com/cyberrange/simnet-backend/model"
	"github.com/cyberrange/simnet-backend/simulation"
)

// AlertHistory reads recorded alerts for a device.
type AlertHistory interface {
	History(ctx context.Context, deviceKey string, limit int) ([]model.Alert, error)
}

// DeviceType represents a monitored device
var DeviceType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Device",
	Fields: graphql.Fields{
		"key":          &graphql.Field{Type: graphql.String},
		"name":         &graphql.Field{Type: graphql.String},
		"owner":        &graphql.Field{Type: graphql.String},
		"criticality":  &graphql.Field{Type: graphql.String},
		"status":       &graphql.Field{Type: graphql.String},
		"active":       &graphql.Field{Type: graphql.Boolean},
		"last_seen_at": &graphql.Field{Type: graphql.DateTime},
	},
})

// AlertType represents one raised or resolved alert
var AlertType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Alert",
	Fields: graphql.Fields{
		"device_key":  &graphql.Field{Type: graphql.String},
		"severity":    &graphql.Field{Type: graphql.String},
		"status":      &graphql.Field{Type: graphql.String},
		"message":     &graphql.Field{Type: graphql.String},
		"raised_at":   &graphql.Field{Type: graphql.DateTime},
		"resolved_at": &graphql.Field{Type: graphql.DateTime},
	},
})

// GetQueryFields returns the device queries to be mounted in the root schema
func GetQueryFields(store simulation.DeviceStore, alerts AlertHistory) graphql.Fields {
	return graphql.Fields{
		"device": &graphql.Field{
			Type: DeviceType,
			Args: graphql.FieldConfigArgument{
				"key": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				device, err := store.Get(p.Context, p.Args["key"].(string))
				if err != nil {
					return nil, err
				}
				return *device, nil
			},
		},
		"devices": &graphql.Field{
			Type: graphql.NewList(DeviceType),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return store.List(p.Context)
			},
		},
		"deviceAlerts": &graphql.Field{
			Type: graphql.NewList(AlertType),
			Args: graphql.FieldConfigArgument{
				"deviceKey": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				limit := p.Args["limit"].(int)
				return alerts.History(p.Context, p.Args["deviceKey"].(string), limit)
			},
		},
	}
}
