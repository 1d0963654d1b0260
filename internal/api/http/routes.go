package httpapi

import (
	"bufio"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/orchestrator"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
)

var validate = validator.New()

const heartbeatInterval = 15 * time.Second

// RegisterRoutes wires the HTTP handlers into the Fiber app. Event streams end
// when shutdown is closed.
func RegisterRoutes(app *fiber.App, orch *orchestrator.Orchestrator, shutdown <-chan struct{}) {
	v1 := app.Group("/api/v1")

	v1.Get("/stations", func(c *fiber.Ctx) error {
		return c.JSON(stationsEnvelope(orch.Stations.Get()))
	})

	v1.Post("/stations/reload", func(c *fiber.Ctx) error {
		if err := orch.LoadStations(c.UserContext()); err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(selectionResponse(orch))
	})

	v1.Get("/selection", func(c *fiber.Ctx) error {
		return c.JSON(selectionResponse(orch))
	})

	v1.Put("/selection", func(c *fiber.Ctx) error {
		var req selectRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := orch.SelectStation(req.StationID); err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(selectionResponse(orch))
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		if err := orch.Refresh(); err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(selectionResponse(orch))
	})

	v1.Get("/widget", func(c *fiber.Ctx) error {
		return c.JSON(viewEnvelope(orch.Widget.Get(), widgetData))
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		return c.JSON(viewEnvelope(orch.History.Get(), historyData))
	})

	v1.Get("/chart", func(c *fiber.Ctx) error {
		return c.JSON(viewEnvelope(orch.Chart.Get(), chartData))
	})

	v1.Get("/events", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			streamEvents(w, orch, shutdown, heartbeatInterval)
		}))
		return nil
	})
}

// selectRequest is the body of PUT /selection.
type selectRequest struct {
	StationID string `json:"stationId" validate:"required,max=64"`
}

type selectionDTO struct {
	orchestrator.Selection
	Status orchestrator.Status `json:"status"`
}

func selectionResponse(orch *orchestrator.Orchestrator) selectionDTO {
	return selectionDTO{Selection: orch.Selection(), Status: orch.CurrentStatus()}
}

// toFiberError maps orchestration and classified errors onto HTTP statuses.
// Only the user-facing message is exposed.
func toFiberError(err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidTransition), errors.Is(err, orchestrator.ErrNothingSelected):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrStationNotFound):
		return fiber.NewError(fiber.StatusNotFound, "station not found")
	}

	e := resource.Classify(err)
	switch e.Kind {
	case resource.KindValidation:
		return fiber.NewError(fiber.StatusBadRequest, e.Message)
	case resource.KindAuthExpired:
		return fiber.NewError(fiber.StatusUnauthorized, e.Message)
	case resource.KindNetwork, resource.KindHTTP:
		return fiber.NewError(fiber.StatusBadGateway, e.Message)
	default:
		return fiber.NewError(fiber.StatusInternalServerError, e.Message)
	}
}

// ErrorHandler renders every error as a JSON body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
