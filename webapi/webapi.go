// Package webapi provides the HTTP surface of the application,
// organized into sub-packages per domain:
// - goal: goal lifecycle and contribution endpoints
// - settlement: payout and auto-payment endpoints
// - scheduler: monitoring scheduler endpoints
package webapi

import (
	"errors"
	"strings"

	"github.com/ambaglabs/ambag/pkg/app"
	"github.com/ambaglabs/ambag/webapi/common"
	goalweb "github.com/ambaglabs/ambag/webapi/goal"
	schedulerweb "github.com/ambaglabs/ambag/webapi/scheduler"
	settlementweb "github.com/ambaglabs/ambag/webapi/settlement"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// SetupApp initializes Fiber with the application routes.
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	// Rate limiting keyed by client IP, honoring proxy headers.
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        a.Config.RateLimit.MaxRequests,
		Expiration: a.Config.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				if commaIndex := strings.Index(forwardedFor, ","); commaIndex != -1 {
					return strings.TrimSpace(forwardedFor[:commaIndex])
				}
				return strings.TrimSpace(forwardedFor)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(
				c,
				"Too Many Requests",
				errors.New("rate limit exceeded"),
				fiber.StatusTooManyRequests,
			)
		},
	}))
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())

	// Health check endpoint
	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("AMBAG API is running! 🚀")
	})

	goalweb.Routes(fiberApp, a.GoalService, a.PoolService, a.DispatchService)
	settlementweb.Routes(fiberApp, a.SettlementService)
	schedulerweb.Routes(fiberApp, a.Scheduler)

	return fiberApp
}
