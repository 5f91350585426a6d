package validator

import (
	"github.com/go-playground/validator/v10"
)

// Validator wraps struct-tag validation together with business rules
type Validator struct {
	validate *validator.Validate
	business *BusinessValidator
}

// New creates a validator with all custom rules registered
func New() *Validator {
	business := NewBusinessValidator()
	return &Validator{
		validate: business.validate,
		business: business,
	}
}

// Validate validates a struct by its tags, returning nil when valid
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// Var validates a single variable against a tag expression
func (v *Validator) Var(field interface{}, tag string) error {
	if err := v.validate.Var(field, tag); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// GetBusinessValidator exposes the business rule validator
func (v *Validator) GetBusinessValidator() *BusinessValidator {
	return v.business
}
