package simulation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cyberrange/simnet-backend/model"
)

// MemScenarioStore is an in-memory ScenarioStore used by tests and by
// deployments that run without a database.
type MemScenarioStore struct {
	mu        sync.RWMutex
	scenarios map[string]model.Scenario
}

// NewMemScenarioStore creates an empty in-memory scenario store.
func NewMemScenarioStore() *MemScenarioStore {
	return &MemScenarioStore{scenarios: make(map[string]model.Scenario)}
}

// Insert stores a copy of the scenario.
func (m *MemScenarioStore) Insert(_ context.Context, s *model.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[s.Key] = cloneScenario(s)
	return nil
}

// Update overwrites an existing scenario.
func (m *MemScenarioStore) Update(_ context.Context, s *model.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenarios[s.Key]; !ok {
		return &NotFoundError{Kind: "scenario", Key: s.Key}
	}
	m.scenarios[s.Key] = cloneScenario(s)
	return nil
}

// Delete removes a scenario.
func (m *MemScenarioStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenarios[key]; !ok {
		return &NotFoundError{Kind: "scenario", Key: key}
	}
	delete(m.scenarios, key)
	return nil
}

// Get returns a copy of the scenario for the key.
func (m *MemScenarioStore) Get(_ context.Context, key string) (*model.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenarios[key]
	if !ok {
		return nil, &NotFoundError{Kind: "scenario", Key: key}
	}
	copied := cloneScenario(&s)
	return &copied, nil
}

// NameExists reports whether another scenario already uses the name.
func (m *MemScenarioStore) NameExists(_ context.Context, name, excludeKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for key, s := range m.scenarios {
		if key != excludeKey && strings.EqualFold(s.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// Query filters, sorts by creation time descending, and paginates.
func (m *MemScenarioStore) Query(_ context.Context, q ScenarioQuery) ([]model.Scenario, int, error) {
	m.mu.RLock()
	matches := make([]model.Scenario, 0, len(m.scenarios))
	for _, s := range m.scenarios {
		if q.Type != "" && s.Type != q.Type {
			continue
		}
		if q.Status != "" && s.Status != q.Status {
			continue
		}
		if q.CreatedBy != "" && s.CreatedBy != q.CreatedBy {
			continue
		}
		if !q.From.IsZero() && s.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && s.CreatedAt.After(q.To) {
			continue
		}
		matches = append(matches, cloneScenario(&s))
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := q.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

// MemDeviceStore is an in-memory DeviceStore.
type MemDeviceStore struct {
	mu      sync.RWMutex
	devices map[string]model.Device
}

// NewMemDeviceStore creates a device store seeded with the given devices.
func NewMemDeviceStore(devices ...model.Device) *MemDeviceStore {
	store := &MemDeviceStore{devices: make(map[string]model.Device)}
	for _, d := range devices {
		store.devices[d.Key] = d
	}
	return store
}

// Put adds or replaces a device.
func (m *MemDeviceStore) Put(d model.Device) {
	m.mu.Lock()
	m.devices[d.Key] = d
	m.mu.Unlock()
}

// Get returns the device for the key.
func (m *MemDeviceStore) Get(_ context.Context, key string) (*model.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[key]
	if !ok {
		return nil, &NotFoundError{Kind: "device", Key: key}
	}
	return &d, nil
}

// Lookup returns the devices found for the keys.
func (m *MemDeviceStore) Lookup(_ context.Context, keys []string) (map[string]model.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := make(map[string]model.Device, len(keys))
	for _, key := range keys {
		if d, ok := m.devices[key]; ok {
			found[key] = d
		}
	}
	return found, nil
}

// List returns all devices sorted by key.
func (m *MemDeviceStore) List(_ context.Context) ([]model.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	devices := make([]model.Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Key < devices[j].Key })
	return devices, nil
}

// UpdateStatus records a telemetry-reported status change.
func (m *MemDeviceStore) UpdateStatus(_ context.Context, key string, status model.DeviceStatus, metrics map[string]float64, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[key]
	if !ok {
		return &NotFoundError{Kind: "device", Key: key}
	}
	d.Status = status
	d.Metrics = metrics
	d.LastSeenAt = seenAt
	m.devices[key] = d
	return nil
}

func cloneScenario(s *model.Scenario) model.Scenario {
	copied := *s
	copied.TargetDevices = append([]string(nil), s.TargetDevices...)
	copied.ExecutionHistory = append([]model.HistoryEntry(nil), s.ExecutionHistory...)
	if s.Metadata != nil {
		copied.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			copied.Metadata[k] = v
		}
	}
	return copied
}
