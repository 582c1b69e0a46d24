package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance, reused across calls the way
// the package's authors intended (validator.Validate caches reflection
// data per struct type internally).
var validate = validator.New()

// ValidateOptions validates any options struct (engine Options, a
// compaction strategy's sub-options, ...) using its `validate` struct
// tags. It takes an interface rather than a concrete type so this
// package never needs to import the lsm package it validates for.
func ValidateOptions(opts any) error {
	if opts == nil {
		return errors.New("validation: options cannot be nil")
	}
	if err := validate.Struct(opts); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors into a single
// human-readable error naming the first failing field.
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, e := range validationErrs {
		field := e.Namespace()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
