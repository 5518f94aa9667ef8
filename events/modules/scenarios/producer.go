package scenario

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cyberrange/simnet-backend/model"
	"github.com/cyberrange/simnet-backend/simulation"
)

// LifecycleProducer handles sending mirrored lifecycle events to Kafka
type LifecycleProducer struct {
	Writer *kafka.Writer
}

// NewLifecycleProducer initializes a new Kafka writer for lifecycle events
func NewLifecycleProducer(brokers []string, topic string) *LifecycleProducer {
	return &LifecycleProducer{
		Writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// PublishEnvelope sends one mirrored event to the Kafka topic
func (p *LifecycleProducer) PublishEnvelope(ctx context.Context, topic model.Topic, env model.Envelope, scope model.EventScope) error {

	// Construct the Event Contract
	event := LifecycleMirrorEvent{
		EventID:       uuid.New().String(),
		EventTime:     time.Now().UTC(),
		SchemaVersion: "v1",
		Topic:         topic,
		Envelope:      env,
		Scope:         scope,
	}

	// Marshal to JSON
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(string(topic)),
		Value: payload,
	})
}

// Close flushes and closes the underlying writer
func (p *LifecycleProducer) Close() error {
	return p.Writer.Close()
}

// MirrorSink tees every published event to a primary sink and, best effort,
// to the Kafka mirror. A nil producer disables mirroring, so the sink can be
// wired unconditionally.
type MirrorSink struct {
	Primary  simulation.EventSink
	Producer *LifecycleProducer
	Logger   *zap.Logger
}

// Publish delivers to the primary sink first; broadcast delivery never waits
// on the mirror.
func (m *MirrorSink) Publish(topic model.Topic, env model.Envelope, scope model.EventScope) {
	m.Primary.Publish(topic, env, scope)

	if m.Producer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Producer.PublishEnvelope(ctx, topic, env, scope); err != nil && m.Logger != nil {
			m.Logger.Warn("failed to mirror event to kafka",
				zap.String("topic", string(topic)), zap.Error(err))
		}
	}()
}
