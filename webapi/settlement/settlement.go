// Package settlement exposes payout and auto-payment endpoints.
package settlement

import (
	domaingoal "github.com/ambaglabs/ambag/pkg/domain/goal"
	settlementsvc "github.com/ambaglabs/ambag/pkg/service/settlement"
	"github.com/ambaglabs/ambag/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the settlement endpoints.
func Routes(app *fiber.App, svc *settlementsvc.Service) {
	app.Post("/goal/:id/payout", Payout(svc))
	app.Post("/goal/:id/auto-payment", SetupAutoPayment(svc))
	app.Post("/goal/:id/auto-payment/confirm", ConfirmAutoPayment(svc))
	app.Get("/auto-payment/queue", GetQueue(svc))
	app.Get("/payouts/:owner", GetPayouts(svc))
}

// Payout resolves a goal awaiting manual payout.
func Payout(svc *settlementsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		input, err := common.BindAndValidate[PayoutInput](c)
		if input == nil {
			return err
		}
		g, err := svc.Payout(c.Context(), id, input.Approve)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't resolve payout", err)
		}
		msg := "Payout approved"
		if !input.Approve {
			msg = "Payout rejected, goal reopened"
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, msg, g)
	}
}

// SetupAutoPayment attaches an auto-payment configuration to a goal.
func SetupAutoPayment(svc *settlementsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		input, err := common.BindAndValidate[AutoPaymentInput](c)
		if input == nil {
			return err
		}
		g, err := svc.SetupAutoPayment(c.Context(), id, domaingoal.AutoPayment{
			Enabled:               input.Enabled,
			Method:                domaingoal.PaymentMethod(input.Method),
			RequireConfirmation:   input.RequireConfirmation,
			AutoCompleteThreshold: input.AutoCompleteThreshold,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't configure auto-payment", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Auto-payment configured", g)
	}
}

// ConfirmAutoPayment resolves a queued auto-payment.
func ConfirmAutoPayment(svc *settlementsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		input, err := common.BindAndValidate[ConfirmInput](c)
		if input == nil {
			return err
		}
		vb, err := svc.ConfirmAutoPayment(c.Context(), id, input.Approve, input.Manager)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't confirm auto-payment", err)
		}
		if !input.Approve {
			return common.SuccessResponseJSON(c, fiber.StatusOK,
				"Auto-payment rejected, goal awaits manual payout", nil)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Auto-payment executed", vb)
	}
}

// GetPayouts lists the virtual-balance payouts owned by a member.
func GetPayouts(svc *settlementsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := c.Params("owner")
		payouts, err := svc.PayoutsByOwner(c.Context(), owner)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't list payouts", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Payouts listed", payouts)
	}
}

// GetQueue lists goals waiting for auto-payment confirmation.
func GetQueue(svc *settlementsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries, err := svc.AutoPaymentQueue(c.Context())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't list queue", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Queue listed", entries)
	}
}
