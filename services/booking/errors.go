package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a malformed or incomplete booking request. It
// aborts the whole chain before any adapter is called.
type ValidationError struct {
	Fields map[string]string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid booking request: %s", e.Reason)
	}
	parts := make([]string, 0, len(e.Fields))
	for f, tag := range e.Fields {
		parts = append(parts, f+" "+tag)
	}
	sort.Strings(parts)
	return fmt.Sprintf("invalid booking request: %s", strings.Join(parts, ", "))
}

// ErrUnknownAction is returned by Dispatch for unregistered actions.
var ErrUnknownAction = errors.New("unknown hybrid action")

var validate = validator.New()

// validateStruct runs struct tag validation and returns a *ValidationError.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Reason: err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}
