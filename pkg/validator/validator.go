package validator

import (
	"context"
	"errors"
	"regexp"

	"github.com/go-playground/validator"
)

var (
	global      *validator.Validate
	aadharRegex = regexp.MustCompile(`^[0-9]{12}$`)
)

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrUnknownValidation  = "Unknown validation error"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("aadhar", validateAadhar)
	_ = v.RegisterValidation("gender", validateGender)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

func validateAadhar(fl validator.FieldLevel) bool {
	return aadharRegex.MatchString(fl.Field().String())
}

func validateGender(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "MALE", "FEMALE", "ALL":
		return true
	}
	return false
}

func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrors) == 0 {
		return nil
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "required":
		msg = ErrFieldRequired
	case "max":
		msg = ErrFieldExceedsMaxLen
	case "min":
		msg = ErrFieldBelowMinLen
	case "lt", "lte":
		msg = ErrFieldExceedsMaxVal
	case "gt", "gte":
		msg = ErrFieldBelowMinVal
	case "aadhar":
		msg = "Aadhar number must be exactly 12 digits"
	case "gender":
		msg = "Gender must be MALE, FEMALE or ALL"
	case "email":
		msg = ErrInvalidFormat
	default:
		msg = ErrUnknownValidation
	}
	return errors.New(msg + ": " + ve.Namespace())
}
