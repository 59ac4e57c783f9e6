// Package goal exposes goal lifecycle and contribution endpoints.
package goal

import (
	domaingoal "github.com/ambaglabs/ambag/pkg/domain/goal"
	dispatchsvc "github.com/ambaglabs/ambag/pkg/service/dispatch"
	goalsvc "github.com/ambaglabs/ambag/pkg/service/goal"
	poolsvc "github.com/ambaglabs/ambag/pkg/service/pool"
	"github.com/ambaglabs/ambag/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the goal and contribution endpoints.
func Routes(app *fiber.App, goals *goalsvc.Service, pools *poolsvc.Service, dispatch *dispatchsvc.Service) {
	app.Post("/goal", CreateGoal(goals))
	app.Get("/goal", ListGoals(goals))
	app.Get("/goal/:id", GetGoal(goals))
	app.Delete("/goal/:id", CancelGoal(goals))
	app.Post("/goal/pending/:id/approve", ApproveGoal(goals))
	app.Post("/goal/:id/contribute", Contribute(pools))
	app.Get("/goal/:id/contributors", GetContributors(pools))
	app.Get("/goal/:id/actions", GetActions(dispatch))
}

// CreateGoal creates a shared goal. Manager-created goals activate
// immediately; member-created goals wait for approval.
func CreateGoal(svc *goalsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[NewGoal](c)
		if input == nil {
			return err
		}
		in := goalsvc.CreateInput{
			Title:        input.Title,
			Description:  input.Description,
			TargetAmount: input.TargetAmount,
			CreatorName:  input.CreatorName,
			CreatorRole:  input.CreatorRole,
			TargetDate:   input.TargetDate,
			Members:      input.Members,
		}
		if input.AutoPayment != nil {
			in.AutoPayment = &domaingoal.AutoPayment{
				Enabled:               input.AutoPayment.Enabled,
				Method:                domaingoal.PaymentMethod(input.AutoPayment.Method),
				RequireConfirmation:   input.AutoPayment.RequireConfirmation,
				AutoCompleteThreshold: input.AutoPayment.AutoCompleteThreshold,
			}
		}
		g, err := svc.Create(c.Context(), in)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't create goal", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Goal created", g)
	}
}

// ApproveGoal resolves a pending goal by manager decision.
func ApproveGoal(svc *goalsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		input, err := common.BindAndValidate[ApprovalInput](c)
		if input == nil {
			return err
		}
		g, err := svc.Approve(c.Context(), id, input.Approve, input.Manager, input.Reason)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't resolve approval", err)
		}
		msg := "Goal approved"
		if !input.Approve {
			msg = "Goal rejected"
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, msg, g)
	}
}

// GetGoal returns a goal joined with its live pool figures.
func GetGoal(svc *goalsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		details, err := svc.Get(c.Context(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Goal not found", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Goal found", details)
	}
}

// ListGoals lists goals, optionally filtered by ?status=.
func ListGoals(svc *goalsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var statuses []domaingoal.Status
		if st := c.Query("status"); st != "" {
			statuses = append(statuses, domaingoal.Status(st))
		}
		goals, err := svc.List(c.Context(), statuses...)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't list goals", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Goals listed", goals)
	}
}

// CancelGoal soft-deletes a goal by status.
func CancelGoal(svc *goalsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		g, err := svc.Cancel(c.Context(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't cancel goal", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Goal cancelled", g)
	}
}

// Contribute records a payment toward a goal.
func Contribute(svc *poolsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		input, err := common.BindAndValidate[NewContribution](c)
		if input == nil {
			return err
		}
		res, err := svc.Contribute(c.Context(), id, input.Amount,
			input.ContributorName, input.PaymentMethod, input.ReferenceNumber)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't apply contribution", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Contribution applied", res)
	}
}

// GetContributors returns the pool details of a goal.
func GetContributors(svc *poolsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		details, err := svc.GetPool(c.Context(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Pool not found", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Pool found", details)
	}
}

// GetActions returns the autonomous action history of a goal.
func GetActions(svc *dispatchsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		records, err := svc.History(c.Context(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Couldn't list actions", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Actions listed", records)
	}
}
