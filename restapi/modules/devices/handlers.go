// Package devices implements the REST API handlers for device inventory,
// alert history, and the synthetic heartbeat simulator.
package devices

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/cyberrange/simnet-backend/model"
	"github.com/cyberrange/simnet-backend/simulation"
	"github.com/cyberrange/simnet-backend/telemetry"
)

// AlertHistory reads recorded alerts for a device.
type AlertHistory interface {
	History(ctx context.Context, deviceKey string, limit int) ([]model.Alert, error)
}

// ListDevices handles GET /devices.
func ListDevices(store simulation.DeviceStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		devices, err := store.List(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"devices": devices,
		})
	}
}

// GetDevice handles GET /devices/:key.
func GetDevice(store simulation.DeviceStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		device, err := store.Get(c.Context(), c.Params("key"))
		if err != nil {
			var notFoundErr *simulation.NotFoundError
			if errors.As(err, &notFoundErr) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"success": false,
					"message": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"device":  device,
		})
	}
}

// GetAlerts handles GET /devices/:key/alerts.
func GetAlerts(history AlertHistory) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit"))
		alerts, err := history.History(c.Context(), c.Params("key"), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"alerts":  alerts,
		})
	}
}

// PostHeartbeat handles POST /devices/:key/heartbeat. It feeds an external
// telemetry reading through the adapter.
func PostHeartbeat(adapter *telemetry.Adapter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Status  model.DeviceStatus `json:"status"`
			Metrics map[string]float64 `json:"metrics"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}

		if err := adapter.OnHeartbeat(c.Context(), c.Params("key"), req.Status, req.Metrics); err != nil {
			var notFoundErr *simulation.NotFoundError
			if errors.As(err, &notFoundErr) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"success": false,
					"message": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"success": true,
			"message": "Heartbeat accepted",
		})
	}
}

// StartSimulation handles POST /devices/:key/simulate.
func StartSimulation(store simulation.DeviceStore, sim *telemetry.Simulator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Params("key")

		if _, err := store.Get(c.Context(), key); err != nil {
			var notFoundErr *simulation.NotFoundError
			if errors.As(err, &notFoundErr) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"success": false,
					"message": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		if err := sim.Start(context.Background(), key); err != nil {
			var alreadyErr *telemetry.AlreadySimulatingError
			if errors.As(err, &alreadyErr) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"success": false,
					"message": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"success": true,
			"message": "Heartbeat simulation started",
		})
	}
}

// StopSimulation handles DELETE /devices/:key/simulate. Stopping a device
// that is not simulating is a no-op.
func StopSimulation(sim *telemetry.Simulator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sim.Stop(c.Params("key"))

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Heartbeat simulation stopped",
		})
	}
}
