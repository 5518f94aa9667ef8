// Package scenarios implements the REST API handlers for scenario lifecycle operations.
package scenarios

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cyberrange/simnet-backend/model"
	"github.com/cyberrange/simnet-backend/simulation"
)

// scenarioRequest is the POST/PUT body for creating or updating a scenario.
type scenarioRequest struct {
	Name            string                 `json:"name"`
	Type            model.ScenarioType     `json:"type"`
	TargetDevices   []string               `json:"target_devices"`
	AttackVector    string                 `json:"attack_vector"`
	DurationSeconds int                    `json:"duration_seconds"`
	Metadata        map[string]interface{} `json:"metadata"`
}

func (r scenarioRequest) draft() *model.Scenario {
	return &model.Scenario{
		Name:            r.Name,
		Type:            r.Type,
		TargetDevices:   r.TargetDevices,
		AttackVector:    r.AttackVector,
		DurationSeconds: r.DurationSeconds,
		Metadata:        r.Metadata,
	}
}

// Actor resolves the acting user from the X-Actor header.
func Actor(c *fiber.Ctx) string {
	actor := c.Get("X-Actor")
	if actor == "" {
		actor = "anonymous"
	}
	return actor
}

// StatusForError maps the service error taxonomy onto HTTP status codes.
func StatusForError(err error) int {
	var validationErr *simulation.ValidationError
	var transitionErr *simulation.InvalidStateTransitionError
	var notFoundErr *simulation.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return fiber.StatusNotFound
	case errors.As(err, &transitionErr):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// errorJSON renders an error in the standard response shape, including the
// validation code and field when one is available.
func errorJSON(c *fiber.Ctx, err error) error {
	body := fiber.Map{
		"success": false,
		"message": err.Error(),
	}

	var validationErr *simulation.ValidationError
	if errors.As(err, &validationErr) {
		body["code"] = validationErr.Code
		body["field"] = validationErr.Field
	}

	return c.Status(StatusForError(err)).JSON(body)
}

// CreateScenario handles POST /scenarios.
func CreateScenario(svc *simulation.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req scenarioRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}

		scenario, err := svc.Create(c.Context(), req.draft(), Actor(c))
		if err != nil {
			return errorJSON(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":  true,
			"message":  "Scenario created",
			"scenario": scenario,
		})
	}
}

// UpdateScenario handles PUT /scenarios/:key. Only PENDING scenarios accept updates.
func UpdateScenario(svc *simulation.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req scenarioRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}

		scenario, err := svc.Update(c.Context(), c.Params("key"), req.draft(), Actor(c))
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(fiber.Map{
			"success":  true,
			"message":  "Scenario updated",
			"scenario": scenario,
		})
	}
}

// DeleteScenario handles DELETE /scenarios/:key.
func DeleteScenario(svc *simulation.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("key"), Actor(c)); err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Scenario deleted",
		})
	}
}

// GetScenario handles GET /scenarios/:key.
func GetScenario(svc *simulation.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scenario, err := svc.Get(c.Context(), c.Params("key"))
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(fiber.Map{
			"success":  true,
			"scenario": scenario,
		})
	}
}

// ListScenarios handles GET /scenarios with filter and pagination query params.
func ListScenarios(svc *simulation.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := simulation.ScenarioQuery{
			Type:      model.ScenarioType(c.Query("type")),
			Status:    model.ScenarioStatus(c.Query("status")),
			CreatedBy: c.Query("created_by"),
		}

		if from := c.Query("from"); from != "" {
			t, err := time.Parse(time.RFC3339, from)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"success": false,
					"message": "Invalid 'from' timestamp, expected RFC3339",
				})
			}
			q.From = t
		}
		if to := c.Query("to"); to != "" {
			t, err := time.Parse(time.RFC3339, to)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"success": false,
					"message": "Invalid 'to' timestamp, expected RFC3339",
				})
			}
			q.To = t
		}
		q.Limit, _ = strconv.Atoi(c.Query("limit"))
		q.Offset, _ = strconv.Atoi(c.Query("offset"))

		scenarios, total, err := svc.Query(c.Context(), q)
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(fiber.Map{
			"success":   true,
			"scenarios": scenarios,
			"total":     total,
		})
	}
}

// ExecuteScenario handles POST /scenarios/:key/execute. The run continues in
// the background; the response carries the run id for progress tracking.
func ExecuteScenario(svc *simulation.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		run, err := svc.Execute(c.Context(), c.Params("key"), Actor(c))
		if err != nil {
			return errorJSON(c, err)
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"success": true,
			"message": "Execution started",
			"run_id":  run.ID,
		})
	}
}

// CancelScenario handles POST /scenarios/:key/cancel.
func CancelScenario(svc *simulation.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Cancel(c.Context(), c.Params("key"), Actor(c)); err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Cancellation requested",
		})
	}
}

// GetRun handles GET /scenarios/:key/run, returning the live run snapshot.
func GetRun(svc *simulation.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		run := svc.Run(c.Params("key"))
		if run == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "No run recorded for scenario " + c.Params("key"),
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"run":     run.Snapshot(),
		})
	}
}
