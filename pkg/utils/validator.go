package utils

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ErrorResponse represents the structure of the error response.
type ErrorResponse struct {
	Errors []CError `json:"errors"`
}

// CError represents a single validation error.
type CError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// Err converts the collected field errors into a 422 CustomError.
func (r *ErrorResponse) Err() *CustomError {
	msg := "Validation failed"
	field := ""
	if len(r.Errors) > 0 {
		msg = r.Errors[0].Msg
		field = r.Errors[0].Field
	}
	return NewError(422, msg, map[string]any{
		"field":  field,
		"errors": r.Errors,
	})
}

// Validator is a struct that holds the validator instance from the go-playground/validator package
type Validator struct {
	validator *validator.Validate
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *Validator {
	v := validator.New()

	CustomValidation(v)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: v}
}

// Validate validates the input struct and returns JSON-friendly field errors, or nil.
func (v *Validator) Validate(str any) *ErrorResponse {
	err := v.validator.Struct(str)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ErrorResponse{Errors: []CError{{Field: "", Msg: err.Error()}}}
	}
	response := ErrorResponse{Errors: make([]CError, 0, len(validationErrors))}
	for _, fe := range validationErrors {
		response.Errors = append(response.Errors, CError{
			Field: fe.Field(),
			Msg:   getErrorMessage(fe.Field(), fe.Tag(), fe.Param()),
		})
	}
	return &response
}

// ValidateVar checks a single value against a tag expression.
func (v *Validator) ValidateVar(field any, tag string) error {
	return v.validator.Var(field, tag)
}

func getErrorMessage(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of the following values: %s", field, param)
	case "username":
		return fmt.Sprintf("%s can only contain letters, numbers, underscores, and hyphens", field)
	case "password":
		return fmt.Sprintf("%s must contain at least one lowercase letter, one uppercase letter, and one digit", field)
	case "http_url":
		return fmt.Sprintf("%s must be a valid HTTP/HTTPS URL", field)
	case "notblank":
		return fmt.Sprintf("%s cannot be empty", field)
	default:
		return fmt.Sprintf("something wrong on %s; %s", field, tag)
	}
}

// CustomValidation registers the application-specific tags.
func CustomValidation(v *validator.Validate) {
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		var lower, upper, digit bool
		for _, r := range fl.Field().String() {
			switch {
			case unicode.IsLower(r):
				lower = true
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		return lower && upper && digit
	})
	v.RegisterValidation("http_url", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
	})
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}
