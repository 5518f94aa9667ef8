// package main provides the entry point for the simnet-backend microservice,
// wiring the scenario lifecycle core, the telemetry adapter, and the
// broadcast layer onto the REST, GraphQL, and websocket surfaces.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cyberrange/simnet-backend/broadcast"
	"github.com/cyberrange/simnet-backend/database"
	scenario "github.com/cyberrange/simnet-backend/events/modules/scenarios"
	"github.com/cyberrange/simnet-backend/internal/api"
	"github.com/cyberrange/simnet-backend/internal/kafka"
	"github.com/cyberrange/simnet-backend/restapi"
	"github.com/cyberrange/simnet-backend/simulation"
	"github.com/cyberrange/simnet-backend/telemetry"
)

func main() {
	logger := database.InitLogger()
	defer logger.Sync() // nolint:errcheck

	// Initialize database connection
	db := database.InitializeDatabase()

	scenarioStore := database.NewArangoScenarioStore(db)
	deviceStore := database.NewArangoDeviceStore(db)
	alertStore := database.NewArangoAlertStore(db)

	// Broadcast layer
	registry := broadcast.NewRegistry()
	broadcaster := broadcast.NewBroadcaster(registry, logger)

	// Optional Kafka mirror of every published event
	var producer *scenario.LifecycleProducer
	if os.Getenv("KAFKA_BROKERS") != "" {
		brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")
		topic := database.GetEnvDefault("KAFKA_MIRROR_TOPIC", "simnet-events")
		producer = scenario.NewLifecycleProducer(brokers, topic)
		defer producer.Close() // nolint:errcheck
	}

	sink := &scenario.MirrorSink{
		Primary:  broadcaster,
		Producer: producer,
		Logger:   logger,
	}

	// Scenario lifecycle core
	seed := time.Now().UnixNano()
	if raw := os.Getenv("SIMNET_SEED"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			seed = parsed
		}
	}
	engine := simulation.NewEngine(sink, logger, 0, seed)
	svc := simulation.NewService(scenarioStore, deviceStore, sink, engine, logger)

	// Telemetry adapter and heartbeat simulator
	adapter := telemetry.NewAdapter(sink, deviceStore, alertStore, logger)

	profiles, err := telemetry.LoadProfiles(database.GetEnvDefault("TELEMETRY_PROFILES", ""))
	if err != nil {
		log.Fatalf("Failed to load telemetry profiles: %v", err)
	}
	simulator := telemetry.NewSimulator(adapter, profiles, 0, nil, logger)

	// Kafka heartbeat consumer
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if os.Getenv("KAFKA_BROKERS") != "" {
		if err := kafka.RunEventProcessor(ctx, adapter); err != nil {
			log.Printf("WARNING: Kafka event processor not started: %v", err)
		}
	}

	// Create Fiber app
	app := api.NewFiberApp(restapi.Deps{
		Scenarios:   svc,
		Devices:     deviceStore,
		Alerts:      alertStore,
		Adapter:     adapter,
		Simulator:   simulator,
		Broadcaster: broadcaster,
		Logger:      logger,
	})

	// Get port from environment or default to 3000
	port := database.GetEnvDefault("MS_PORT", "3000")

	go func() {
		log.Printf("Starting server on port %s", port)
		log.Printf("GraphQL endpoint available at /api/v1/graphql")
		log.Printf("Websocket event stream available at /ws/events")
		if err := app.Listen(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down...")
	simulator.StopAll()
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
