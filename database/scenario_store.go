package database

import (
	"context"
	"strings"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/arangodb/shared"

	"github.com/cyberrange/simnet-backend/model"
	"github.com/cyberrange/simnet-backend/simulation"
)

// ArangoScenarioStore persists scenarios in the "scenario" collection.
type ArangoScenarioStore struct {
	db DBConnection
}

// NewArangoScenarioStore wires a scenario store onto an initialized connection.
func NewArangoScenarioStore(db DBConnection) *ArangoScenarioStore {
	return &ArangoScenarioStore{db: db}
}

// Insert creates the scenario document using the scenario key as the document key.
func (s *ArangoScenarioStore) Insert(ctx context.Context, scenario *model.Scenario) error {
	_, err := s.db.Collections["scenario"].CreateDocument(ctx, scenario)
	return err
}

// Update replaces the stored document with the given scenario state.
func (s *ArangoScenarioStore) Update(ctx context.Context, scenario *model.Scenario) error {
	_, err := s.db.Collections["scenario"].ReplaceDocument(ctx, scenario.Key, scenario)
	if err != nil && shared.IsNotFound(err) {
		return &simulation.NotFoundError{Kind: "scenario", Key: scenario.Key}
	}
	return err
}

// Delete removes the scenario document.
func (s *ArangoScenarioStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.Collections["scenario"].DeleteDocument(ctx, key)
	if err != nil && shared.IsNotFound(err) {
		return &simulation.NotFoundError{Kind: "scenario", Key: key}
	}
	return err
}

// Get reads a scenario by key.
func (s *ArangoScenarioStore) Get(ctx context.Context, key string) (*model.Scenario, error) {
	var scenario model.Scenario
	_, err := s.db.Collections["scenario"].ReadDocument(ctx, key, &scenario)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, &simulation.NotFoundError{Kind: "scenario", Key: key}
		}
		return nil, err
	}
	return &scenario, nil
}

// NameExists reports whether another scenario already uses the name,
// compared case insensitively.
func (s *ArangoScenarioStore) NameExists(ctx context.Context, name, excludeKey string) (bool, error) {
	query := `
		FOR sc IN scenario
			FILTER LOWER(sc.name) == @name AND sc._key != @exclude
			LIMIT 1
			RETURN sc._key
	`
	bindVars := map[string]interface{}{
		"name":    strings.ToLower(name),
		"exclude": excludeKey,
	}

	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return false, err
	}
	defer cursor.Close()

	return cursor.HasMore(), nil
}

// Query returns one page of scenarios plus the total count of matches.
func (s *ArangoScenarioStore) Query(ctx context.Context, q simulation.ScenarioQuery) ([]model.Scenario, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	var filters []string
	bindVars := map[string]interface{}{}

	if q.Type != "" {
		filters = append(filters, "FILTER sc.type == @type")
		bindVars["type"] = string(q.Type)
	}
	if q.Status != "" {
		filters = append(filters, "FILTER sc.status == @status")
		bindVars["status"] = string(q.Status)
	}
	if q.CreatedBy != "" {
		filters = append(filters, "FILTER sc.created_by == @createdBy")
		bindVars["createdBy"] = q.CreatedBy
	}
	if !q.From.IsZero() {
		filters = append(filters, "FILTER sc.created_at >= @from")
		bindVars["from"] = q.From
	}
	if !q.To.IsZero() {
		filters = append(filters, "FILTER sc.created_at <= @to")
		bindVars["to"] = q.To
	}

	filterClause := strings.Join(filters, "\n\t\t\t")

	// Count the full match set before paginating
	countQuery := `
		RETURN LENGTH(
			FOR sc IN scenario
				` + filterClause + `
				RETURN 1
		)
	`

	countCursor, err := s.db.Database.Query(ctx, countQuery, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return nil, 0, err
	}
	defer countCursor.Close()

	total := 0
	if countCursor.HasMore() {
		if _, err := countCursor.ReadDocument(ctx, &total); err != nil {
			return nil, 0, err
		}
	}

	pageQuery := `
		FOR sc IN scenario
			` + filterClause + `
			SORT sc.created_at DESC
			LIMIT @offset, @limit
			RETURN sc
	`
	bindVars["offset"] = q.Offset
	bindVars["limit"] = limit

	cursor, err := s.db.Database.Query(ctx, pageQuery, &arangodb.QueryOptions{
		BindVars: bindVars,
	})
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close()

	scenarios := []model.Scenario{}
	for cursor.HasMore() {
		var scenario model.Scenario
		if _, err := cursor.ReadDocument(ctx, &scenario); err != nil {
			return nil, 0, err
		}
		scenarios = append(scenarios, scenario)
	}

	return scenarios, total, nil
}
