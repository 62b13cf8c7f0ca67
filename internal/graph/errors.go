package graph

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator"
)

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("invalid domain object")

// ValidationError reports which field broke a construction invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// prefixed re-roots a ValidationError under a parent field, e.g. evidence[2].
func prefixed(prefix string, err error) error {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	field := prefix
	if ve.Field != "" {
		field = prefix + "." + ve.Field
	}
	return &ValidationError{Field: field, Reason: ve.Reason}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// checkStruct runs tag validation and converts the first failure into a ValidationError.
func checkStruct(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Reason: describeTag(fe.Tag(), fe.Param())}
}

func describeTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be >= " + param
	case "max", "lte":
		return "must be <= " + param
	case "gt":
		return "must be > " + param
	default:
		return "failed " + tag + " check"
	}
}
