// Package common holds the shared HTTP response shapes and the
// request binding helper used by every route package.
package common

import (
	"errors"

	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/domain/settlement"
	"github.com/ambaglabs/ambag/pkg/repository"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Errors   any    `json:"errors,omitempty"`
}

// SuccessResponseJSON writes the standard success envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{
		Status:  status,
		Message: message,
		Data:    data,
	})
}

// ProblemDetailsJSON writes an RFC 9457 problem response. Extra
// arguments refine it: a string becomes the detail, an int overrides
// the status derived from the error.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, opts ...any) error {
	status := 0
	detail := ""
	for _, o := range opts {
		switch v := o.(type) {
		case int:
			status = v
		case string:
			detail = v
		}
	}
	if status == 0 {
		status = ErrorToStatusCode(err)
	}
	if detail == "" && err != nil {
		detail = err.Error()
	}

	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.OriginalURL(),
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(pd)
}

// ErrorToStatusCode maps domain errors to appropriate HTTP status codes.
func ErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return fiber.StatusInternalServerError
	case errors.Is(err, goal.ErrGoalNotFound),
		errors.Is(err, pool.ErrPoolNotFound),
		errors.Is(err, settlement.ErrQueueEntryNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, goal.ErrEmptyTitle),
		errors.Is(err, goal.ErrInvalidTarget),
		errors.Is(err, goal.ErrInvalidRole),
		errors.Is(err, settlement.ErrInvalidAutoPaymentConfig):
		return fiber.StatusBadRequest
	case errors.Is(err, goal.ErrInvalidStateTransition),
		errors.Is(err, goal.ErrNotPendingApproval),
		errors.Is(err, repository.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

var validate = validator.New()

// BindAndValidate parses the request body and validates it using
// go-playground/validator. On failure the error response is already
// written; the caller just returns the error.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		return nil, ProblemDetailsJSON(c, "Validation failed", err, fiber.StatusBadRequest)
	}
	return &input, nil
}

// ParseID reads a UUID path parameter, writing the error response on
// failure.
func ParseID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, ProblemDetailsJSON(c, "Invalid goal ID", err,
			"must be a valid UUID", fiber.StatusBadRequest)
	}
	return id, nil
}
