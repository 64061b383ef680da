package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound           = errors.New("event not found")
	ErrForbidden          = errors.New("not authorized")
	ErrAlreadyMember      = errors.New("already joined")
	ErrNotMember          = errors.New("not joined")
	ErrFull               = errors.New("event is full")
	ErrInvalid            = errors.New("invalid input")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// describeValidation turns validator errors into "field: rule" text. name overrides
// the field for single-value checks.
func describeValidation(name string, err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Field()
		if name != "" {
			field = name
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", field, rule))
	}
	return strings.Join(parts, "; ")
}
