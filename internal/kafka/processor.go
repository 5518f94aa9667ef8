package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	scenario "github.com/cyberrange/simnet-backend/events/modules/scenarios"
	"github.com/cyberrange/simnet-backend/telemetry"
)

// RunEventProcessor consumes device heartbeat events and feeds them through
// the telemetry adapter. It returns once the consumer goroutine is running.
func RunEventProcessor(ctx context.Context, adapter *telemetry.Adapter) error {
	brokersEnv := os.Getenv("KAFKA_BROKERS")
	var brokers []string
	if brokersEnv != "" {
		brokers = strings.Split(brokersEnv, ",")
	} else {
		brokers = []string{"localhost:9092"}
	}

	// Configure SASL/PLAIN using Environment Variables
	username := os.Getenv("KAFKA_API_KEY")
	password := os.Getenv("KAFKA_API_SECRET")

	var dialer *kafka.Dialer

	// Only configure SASL/TLS if credentials are provided
	if username != "" && password != "" {
		mechanism := plain.Mechanism{
			Username: username,
			Password: password,
		}

		dialer = &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			SASLMechanism: mechanism,
			TLS:           &tls.Config{},
		}
	} else {
		// Default dialer for local development (no SASL/TLS)
		dialer = &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		}
	}

	topic := "device-heartbeats"
	var conn *kafka.Conn
	var err error

	// Retry logic: 3 tries
	for i := 1; i <= 3; i++ {
		log.Printf("Kafka connection attempt %d/3...", i)
		conn, err = dialer.DialContext(ctx, "tcp", brokers[0])
		if err == nil {
			conn.Close()
			break
		}
		if i < 3 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		return err
	}

	readerConfig := kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  "simnet-backend-worker",
		Topic:    topic,
		MaxBytes: 10e6,
		Dialer:   dialer,
	}

	reader := kafka.NewReader(readerConfig)

	go func() {
		defer reader.Close()

		log.Println("Kafka Event Processor started. Listening for device heartbeats...")

		for {
			select {
			case <-ctx.Done():
				return
			default:
				msg, err := reader.ReadMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					continue
				}

				var event scenario.HeartbeatEvent
				if err := json.Unmarshal(msg.Value, &event); err != nil {
					log.Printf("Skipping malformed heartbeat event: %v", err)
					continue
				}
				if event.DeviceKey == "" {
					log.Println("Skipping heartbeat event with no device key")
					continue
				}

				if err := adapter.OnHeartbeat(ctx, event.DeviceKey, event.Status, event.Metrics); err != nil {
					log.Printf("Failed to process heartbeat for %s: %v", event.DeviceKey, err)
				}
			}
		}
	}()

	return nil
}
