// Package scheduler exposes the monitoring scheduler endpoints.
package scheduler

import (
	"github.com/ambaglabs/ambag/pkg/service/monitor"
	"github.com/ambaglabs/ambag/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the scheduler endpoints.
func Routes(app *fiber.App, sched *monitor.Scheduler) {
	app.Get("/scheduler/status", GetStatus(sched))
	app.Post("/scheduler/analyze/:id", TriggerAnalysis(sched))
}

// GetStatus reports the scheduler state with live goal counts.
func GetStatus(sched *monitor.Scheduler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := sched.Status(c.Context())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't read scheduler status", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Scheduler status", st)
	}
}

// TriggerAnalysis runs one goal through the assess-and-act pipeline on
// demand.
func TriggerAnalysis(sched *monitor.Scheduler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		res, err := sched.TriggerManualAnalysis(c.Context(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Analysis failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Analysis complete", res)
	}
}
