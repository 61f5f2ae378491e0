package services

import (
	"errors"
	"fmt"
)

var (
	ErrVendorNotFound   = errors.New("vendor not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrVendorExists     = errors.New("vendor already registered")
	ErrNotEligible      = errors.New("customer is not eligible for credit")
)

// ValidationError reports malformed user input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
