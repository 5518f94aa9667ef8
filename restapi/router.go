// Package restapi provides the main router and initialization for REST API endpoints.
package restapi

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/cyberrange/simnet-backend/broadcast"
	"github.com/cyberrange/simnet-backend/restapi/modules/devices"
	"github.com/cyberrange/simnet-backend/restapi/modules/scenarios"
	"github.com/cyberrange/simnet-backend/restapi/modules/ws"
	"github.com/cyberrange/simnet-backend/simulation"
	"github.com/cyberrange/simnet-backend/telemetry"
)

// Deps bundles the collaborators the route handlers close over.
type Deps struct {
	Scenarios   *simulation.Service
	Devices     simulation.DeviceStore
	Alerts      devices.AlertHistory
	Adapter     *telemetry.Adapter
	Simulator   *telemetry.Simulator
	Broadcaster *broadcast.Broadcaster
	Logger      *zap.Logger
}

// SetupRoutes configures all REST API routes, the GraphQL endpoint, and the
// websocket event stream.
func SetupRoutes(app *fiber.App, deps Deps, schema graphql.Schema) {

	// API Group /api/v1
	api := app.Group("/api/v1")

	// GraphQL Route - Mounted within the api group to inherit path prefixes
	api.Post("/graphql", GraphQLHandler(schema))

	// Scenario lifecycle routes
	api.Post("/scenarios", scenarios.CreateScenario(deps.Scenarios))
	api.Get("/scenarios", scenarios.ListScenarios(deps.Scenarios))
	api.Get("/scenarios/:key", scenarios.GetScenario(deps.Scenarios))
	api.Put("/scenarios/:key", scenarios.UpdateScenario(deps.Scenarios))
	api.Delete("/scenarios/:key", scenarios.DeleteScenario(deps.Scenarios))
	api.Post("/scenarios/:key/execute", scenarios.ExecuteScenario(deps.Scenarios))
	api.Post("/scenarios/:key/cancel", scenarios.CancelScenario(deps.Scenarios))
	api.Get("/scenarios/:key/run", scenarios.GetRun(deps.Scenarios))

	// Device inventory and telemetry routes
	api.Get("/devices", devices.ListDevices(deps.Devices))
	api.Get("/devices/:key", devices.GetDevice(deps.Devices))
	api.Get("/devices/:key/alerts", devices.GetAlerts(deps.Alerts))
	api.Post("/devices/:key/heartbeat", devices.PostHeartbeat(deps.Adapter))
	api.Post("/devices/:key/simulate", devices.StartSimulation(deps.Devices, deps.Simulator))
	api.Delete("/devices/:key/simulate", devices.StopSimulation(deps.Simulator))

	// Websocket event stream
	app.Use("/ws", ws.Upgrade)
	app.Get("/ws/events", ws.Handler(deps.Broadcaster, deps.Logger))

	log.Println("API routes initialized successfully")
}
