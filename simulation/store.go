package simulation

import (
	"context"
	"time"

	"github.com/cyberrange/simnet-backend/model"
)

// ScenarioQuery filters and paginates scenario lookups. Zero values mean
// "no constraint" for the corresponding field.
type ScenarioQuery struct {
	Type      model.ScenarioType
	Status    model.ScenarioStatus
	CreatedBy string
	From      time.Time // Matches CreatedAt >= From.
	To        time.Time // Matches CreatedAt <= To.
	Limit     int       // Defaults to 50 when <= 0.
	Offset    int
}

// ScenarioStore is the persistence collaborator for scenarios. The core
// trusts it for durability only; all lifecycle rules live in this package.
type ScenarioStore interface {
	Insert(ctx context.Context, s *model.Scenario) error
	Update(ctx context.Context, s *model.Scenario) error
	Delete(ctx context.Context, key string) error
	// Get returns *NotFoundError when the key is unresolved.
	Get(ctx context.Context, key string) (*model.Scenario, error)
	// NameExists reports whether a non-deleted scenario other than
	// excludeKey already uses the name.
	NameExists(ctx context.Context, name, excludeKey string) (bool, error)
	// Query returns one page of matches plus the total match count.
	Query(ctx context.Context, q ScenarioQuery) ([]model.Scenario, int, error)
}

// DeviceStore is the persistence collaborator for devices.
type DeviceStore interface {
	// Get returns *NotFoundError when the key is unresolved.
	Get(ctx context.Context, key string) (*model.Device, error)
	// Lookup returns the devices found for the given keys; absent keys are
	// simply missing from the result map.
	Lookup(ctx context.Context, keys []string) (map[string]model.Device, error)
	List(ctx context.Context) ([]model.Device, error)
	// UpdateStatus persists a status/metrics change reported by telemetry.
	UpdateStatus(ctx context.Context, key string, status model.DeviceStatus, metrics map[string]float64, seenAt time.Time) error
}

// EventSink receives every event the core produces. The broadcast layer is
// the primary sink; wrappers may tee events to other destinations.
type EventSink interface {
	Publish(topic model.Topic, env model.Envelope, scope model.EventScope)
}
