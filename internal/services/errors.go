package services

import (
	"errors"
	"fmt"

	"dryfruits/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// Error taxonomy of the storefront. Handlers map these onto HTTP statuses
// with errors.Is.
var (
	ErrInvalidInput              = errors.New("invalid input")
	ErrInvalidAmount             = errors.New("invalid amount")
	ErrPrecision                 = errors.New("amount does not convert to whole minor units")
	ErrNotFound                  = repositories.ErrNotFound
	ErrAlreadyExists             = errors.New("already exists")
	ErrInvalidCredentials        = errors.New("invalid credentials")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrInvalidTransition         = errors.New("invalid order status transition")
	ErrProviderUnavailable       = errors.New("logistics provider unavailable")
	ErrPaymentGateway            = errors.New("payment gateway unavailable")
	ErrPersistence               = errors.New("persistence failure")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// storeErr passes NotFound through, reports unique violations as
// ErrAlreadyExists and classifies everything else as a persistence failure.
func storeErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%s: %w", msg, err)
	case errors.Is(err, repositories.ErrDuplicate):
		return fmt.Errorf("%s: %w: %w", msg, ErrAlreadyExists, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrPersistence, err)
}

var validate = validator.New()

// validateStruct runs the struct's validate tags. The returned error wraps
// both ErrInvalidInput and the validator.ValidationErrors so callers can
// report individual fields.
func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}
