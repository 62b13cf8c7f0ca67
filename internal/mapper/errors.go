package mapper

import (
	"errors"
	"fmt"

	"medgraph/internal/graph"
)

// ErrMapping is matched by every MappingError.
var ErrMapping = errors.New("persistence mapping failed")

// MappingError reports a record that cannot be converted to or from the
// domain model. Err carries the underlying decode or validation error, if any.
type MappingError struct {
	Record string
	Key    string
	Field  string
	Reason string
	Err    error
}

func (e *MappingError) Error() string {
	msg := fmt.Sprintf("map %s %q", e.Record, e.Key)
	if e.Field != "" {
		msg += ": " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MappingError) Unwrap() error { return e.Err }

func (e *MappingError) Is(target error) bool { return target == ErrMapping }

func entityErr(key, field, reason string, err error) error {
	return &MappingError{Record: "entity", Key: key, Field: field, Reason: reason, Err: err}
}

func relationshipErr(key, field, reason string, err error) error {
	return &MappingError{Record: "relationship", Key: key, Field: field, Reason: reason, Err: err}
}

// invalidRecord wraps a domain validation failure raised while rebuilding
// a value from a record.
func invalidRecord(wrap func(key, field, reason string, err error) error, key string, err error) error {
	var ve *graph.ValidationError
	if errors.As(err, &ve) {
		return wrap(key, ve.Field, "violates domain invariant", err)
	}
	return wrap(key, "", "violates domain invariant", err)
}
