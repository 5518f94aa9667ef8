package database

import (
	"context"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/arangodb/shared"

	"github.com/cyberrange/simnet-backend/model"
	"github.com/cyberrange/simnet-backend/simulation"
)

// ArangoDeviceStore persists devices in the "device" collection.
type ArangoDeviceStore struct {
	db DBConnection
}

// NewArangoDeviceStore wires a device store onto an initialized connection.
func NewArangoDeviceStore(db DBConnection) *ArangoDeviceStore {
	return &ArangoDeviceStore{db: db}
}

// Get reads a device by key.
func (s *ArangoDeviceStore) Get(ctx context.Context, key string) (*model.Device, error) {
	var device model.Device
	_, err := s.db.Collections["device"].ReadDocument(ctx, key, &device)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, &simulation.NotFoundError{Kind: "device", Key: key}
		}
		return nil, err
	}
	return &device, nil
}

// Lookup fetches the devices for the given keys in one query. Keys that do
// not resolve are left out of the result map.
func (s *ArangoDeviceStore) Lookup(ctx context.Context, keys []string) (map[string]model.Device, error) {
	devices := map[string]model.Device{}
	if len(keys) == 0 {
		return devices, nil
	}

	query := `
		FOR d IN device
			FILTER d._key IN @keys
			RETURN d
	`
	bindVars := map[string]interface{}{
		"keys": keys,
	}

	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	for cursor.HasMore() {
		var device model.Device
		if _, err := cursor.ReadDocument(ctx, &device); err != nil {
			return nil, err
		}
		devices[device.Key] = device
	}

	return devices, nil
}

// List returns every device sorted by name.
func (s *ArangoDeviceStore) List(ctx context.Context) ([]model.Device, error) {
	query := `
		FOR d IN device
			SORT d.name ASC
			RETURN d
	`

	cursor, err := s.db.Database.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	devices := []model.Device{}
	for cursor.HasMore() {
		var device model.Device
		if _, err := cursor.ReadDocument(ctx, &device); err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}

	return devices, nil
}

// UpdateStatus applies a telemetry-reported status and metric snapshot.
func (s *ArangoDeviceStore) UpdateStatus(ctx context.Context, key string, status model.DeviceStatus, metrics map[string]float64, seenAt time.Time) error {
	update := map[string]interface{}{
		"status":       status,
		"metrics":      metrics,
		"last_seen_at": seenAt,
	}

	_, err := s.db.Collections["device"].UpdateDocument(ctx, key, update)
	if err != nil && shared.IsNotFound(err) {
		return &simulation.NotFoundError{Kind: "device", Key: key}
	}
	return err
}
