// Package telemetry normalizes external device heartbeats into the common
// event envelope and hosts the synthetic heartbeat simulator. The adapter is
// the only path from telemetry producers into the broadcast layer.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cyberrange/simnet-backend/model"
	"github.com/cyberrange/simnet-backend/simulation"
)

// AlertLog records raised and resolved alerts for later review. A nil log
// disables recording.
type AlertLog interface {
	Record(ctx context.Context, alert model.Alert) error
	Resolve(ctx context.Context, deviceKey string, resolvedAt time.Time) error
}

// Adapter converts raw heartbeats into device-status events and decides when
// a status change warrants an alert or resolution event.
type Adapter struct {
	sink    simulation.EventSink
	devices simulation.DeviceStore
	alerts  AlertLog
	logger  *zap.Logger

	mu       sync.Mutex
	lastSeen map[string]model.DeviceStatus
}

// NewAdapter creates a telemetry adapter.
func NewAdapter(sink simulation.EventSink, devices simulation.DeviceStore, alerts AlertLog, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		sink:     sink,
		devices:  devices,
		alerts:   alerts,
		logger:   logger,
		lastSeen: make(map[string]model.DeviceStatus),
	}
}

// OnHeartbeat is the normalization entry point invoked once per producer
// tick. It publishes a device-status event, persists the status change, and
// separately evaluates whether the transition warrants an alert-topic event.
func (a *Adapter) OnHeartbeat(ctx context.Context, deviceKey string, status model.DeviceStatus, metrics map[string]float64) error {
	device, err := a.devices.Get(ctx, deviceKey)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := a.devices.UpdateStatus(ctx, deviceKey, status, metrics, now); err != nil {
		return err
	}

	scope := model.EventScope{
		DeviceKey:   deviceKey,
		Owner:       device.Owner,
		Criticality: string(device.Criticality),
		FilterValue: deviceKey,
	}
	a.sink.Publish(model.TopicDeviceStatus,
		model.NewEnvelope(model.EventDeviceStatus, map[string]interface{}{
			"device_key": deviceKey,
			"status":     status,
			"metrics":    metrics,
		}),
		scope)

	a.evaluateAlert(ctx, deviceKey, device, status, scope)
	return nil
}

// evaluateAlert raises an alert when a device degrades and a resolution when
// it recovers to HEALTHY. Repeating the same unhealthy status does not
// re-raise.
func (a *Adapter) evaluateAlert(ctx context.Context, deviceKey string, device *model.Device, status model.DeviceStatus, scope model.EventScope) {
	a.mu.Lock()
	previous, known := a.lastSeen[deviceKey]
	a.lastSeen[deviceKey] = status
	a.mu.Unlock()

	if known && previous == status {
		return
	}

	switch status {
	case model.DeviceStatusDegraded, model.DeviceStatusUnhealthy, model.DeviceStatusCompromised:
		severity := "warning"
		if status == model.DeviceStatusCompromised {
			severity = "critical"
		}
		alert := model.Alert{
			DeviceKey: deviceKey,
			Severity:  severity,
			Status:    status,
			Message:   fmt.Sprintf("Device %s reported %s", device.Name, status),
			RaisedAt:  time.Now().UTC(),
		}
		if a.alerts != nil {
			if err := a.alerts.Record(ctx, alert); err != nil {
				a.logger.Warn("failed to record alert",
					zap.String("device", deviceKey), zap.Error(err))
			}
		}
		a.sink.Publish(model.TopicAlert,
			model.NewEnvelope(model.EventAlertRaised, alert),
			scope)

	case model.DeviceStatusHealthy:
		if !known || !isAlerting(previous) {
			return
		}
		now := time.Now().UTC()
		if a.alerts != nil {
			if err := a.alerts.Resolve(ctx, deviceKey, now); err != nil {
				a.logger.Warn("failed to resolve alerts",
					zap.String("device", deviceKey), zap.Error(err))
			}
		}
		a.sink.Publish(model.TopicAlert,
			model.NewEnvelope(model.EventAlertResolved, model.Alert{
				DeviceKey:  deviceKey,
				Severity:   "info",
				Status:     status,
				Message:    fmt.Sprintf("Device %s recovered", device.Name),
				RaisedAt:   now,
				ResolvedAt: &now,
			}),
			scope)

	case model.DeviceStatusOffline:
		// Offline is reported through device-status only.
	}
}

func isAlerting(status model.DeviceStatus) bool {
	return status == model.DeviceStatusDegraded ||
		status == model.DeviceStatusUnhealthy ||
		status == model.DeviceStatusCompromised
}
