package finder

import "fmt"

// TypeCoercionError reports a filter value that cannot be converted to the type of its field.
type TypeCoercionError struct {
	Field string
	Type  string
	Value any
	Err   error
}

func (e *TypeCoercionError) Error() string {
	msg := fmt.Sprintf("cannot convert %#v to %s for field %q", e.Value, e.Type, e.Field)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeCoercionError) Unwrap() error { return e.Err }

type InvalidJoinError struct {
	Path    string
	Segment string
	Type    string
}

func (e *InvalidJoinError) Error() string {
	return fmt.Sprintf("invalid join %q: '%s' is not a valid property of '%s'", e.Path, e.Segment, e.Type)
}

type InvalidFieldError struct {
	Field string
	Type  string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("missing field %q in %s", e.Field, e.Type)
}

type NotFoundError struct {
	Type string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s matches the query", e.Type)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// StoreError wraps an error returned by the underlying store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }
