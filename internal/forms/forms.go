// Package forms validates user input before anything is sent to the auction
// API. Every failure is a *ValidationError carrying the message shown to the
// user.
package forms

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

const (
	tagNoroffEmail = "noroff_email"
	tagAbsoluteURL = "url"
)

var noroffEmailPattern = regexp.MustCompile(`(?i)@(?:stud\.)?noroff\.no$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	instance := validator.New(validator.WithRequiredStructEnabled())
	if err := instance.RegisterValidation(tagNoroffEmail, func(field validator.FieldLevel) bool {
		return noroffEmailPattern.MatchString(field.Field().String())
	}); err != nil {
		panic(err)
	}
	return instance
}

// ValidationError is a rejected form. Message is safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (validationError *ValidationError) Error() string {
	return validationError.Message
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var validationError *ValidationError
	return errors.As(err, &validationError)
}

func invalid(field string, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// failures indexes validator errors by field and tag.
type failures map[string]map[string]bool

func collect(err error) failures {
	collected := failures{}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return collected
	}
	for _, fieldError := range validationErrors {
		if collected[fieldError.Field()] == nil {
			collected[fieldError.Field()] = map[string]bool{}
		}
		collected[fieldError.Field()][fieldError.Tag()] = true
	}
	return collected
}

func (collected failures) has(field string, tag string) bool {
	return collected[field][tag]
}

func (collected failures) any(field string) bool {
	return len(collected[field]) > 0
}

func isAbsoluteURL(raw string) bool {
	return validate.Var(raw, "required,"+tagAbsoluteURL) == nil
}
