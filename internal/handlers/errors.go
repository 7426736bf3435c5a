package handlers

import (
	"errors"
	"fmt"
	"log"

	"dryfruits/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// statusFor maps the service error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrPrecision):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrPaymentVerificationFailed),
		errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrProviderUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, services.ErrPaymentGateway):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// respondError logs err and writes it with the mapped status. Validation
// failures carry the per-field messages.
func respondError(c *fiber.Ctx, err error, message string) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("%s: %v", message, err)
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return c.Status(status).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  fieldErrors(validationErrors),
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

// validateBody checks req against its validate tags and writes the 400
// response when it fails. ok is false when a response was written.
func validateBody(c *fiber.Ctx, req any) (ok bool, err error) {
	if vErr := validate.Struct(req); vErr != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(vErr, &validationErrors) {
			return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"error":   vErr.Error(),
			})
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  fieldErrors(validationErrors),
		})
	}
	return true, nil
}

func fieldErrors(validationErrors validator.ValidationErrors) map[string]string {
	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return errorMessages
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}
