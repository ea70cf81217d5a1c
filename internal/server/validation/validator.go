// Package validation enforces field-level rules on account input before any
// store access.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/go-playground/validator/v10"
)

const (
	HandleMinLength   = 3
	HandleMaxLength   = 30
	PasswordMinLength = 8
	PasswordMaxLength = 128
)

var handlePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9_]*[a-z0-9])?$`)

// Registration is the validated shape of a registration request. Either
// Handle or DisplayName must be present.
type Registration struct {
	Handle      string `validate:"omitempty,handle"`
	DisplayName string `validate:"required_without=Handle,max=100"`
	Email       string `validate:"required,email,max=320"`
	Password    string `validate:"required,min=8,max=128"`
}

// Login is the validated shape of an authentication request.
type Login struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Lookup addresses an existing account. Legacy handles predate the handle
// rules, so only presence and length are checked.
type Lookup struct {
	Handle string `validate:"required,max=100"`
}

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return ValidHandle(fl.Field().String())
	})
	return &Validator{v: v}
}

// ValidHandle reports whether h is 3..30 characters of [a-z0-9_] with no
// leading or trailing underscore.
func ValidHandle(h string) bool {
	return len(h) >= HandleMinLength && len(h) <= HandleMaxLength && handlePattern.MatchString(h)
}

// Struct validates s and returns a *common.ValidationError listing every
// violation, or nil.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return common.NewValidationError(msgs...)
}

const handleMessage = "handle must be 3-30 characters of lowercase letters, digits or underscore, not starting or ending with underscore"

func message(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required", "required_without":
		if field == "displayname" {
			return "either handle or display name is required"
		}
		return field + " is required"
	case "email":
		return "email must be a valid address"
	case "handle":
		return handleMessage
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
