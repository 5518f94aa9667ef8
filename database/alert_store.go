package database

import (
	"context"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"

	"github.com/cyberrange/simnet-backend/model"
)

// ArangoAlertStore keeps the alert history in the "alert" collection.
type ArangoAlertStore struct {
	db DBConnection
}

// NewArangoAlertStore wires an alert store onto an initialized connection.
func NewArangoAlertStore(db DBConnection) *ArangoAlertStore {
	return &ArangoAlertStore{db: db}
}

// Record stores a newly raised alert.
func (s *ArangoAlertStore) Record(ctx context.Context, alert model.Alert) error {
	_, err := s.db.Collections["alert"].CreateDocument(ctx, alert)
	return err
}

// Resolve stamps every open alert for the device with the resolution time.
func (s *ArangoAlertStore) Resolve(ctx context.Context, deviceKey string, resolvedAt time.Time) error {
	query := `
		FOR a IN alert
			FILTER a.device_key == @deviceKey AND a.resolved_at == null
			UPDATE a WITH { resolved_at: @resolvedAt } IN alert
	`
	bindVars := map[string]interface{}{
		"deviceKey":  deviceKey,
		"resolvedAt": resolvedAt,
	}

	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return err
	}
	return cursor.Close()
}

// History returns the most recent alerts for a device, newest first.
func (s *ArangoAlertStore) History(ctx context.Context, deviceKey string, limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		FOR a IN alert
			FILTER a.device_key == @deviceKey
			SORT a.raised_at DESC
			LIMIT @limit
			RETURN a
	`
	bindVars := map[string]interface{}{
		"deviceKey": deviceKey,
		"limit":     limit,
	}

	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	alerts := []model.Alert{}
	for cursor.HasMore() {
		var alert model.Alert
		if _, err := cursor.ReadDocument(ctx, &alert); err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, nil
}
