package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Use errors.As to match them.

// ParseError reports a malformed date or amount in a source row. It is fatal
// for the request that read the row.
type ParseError struct {
	Source SourceKind
	ID     int64
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	where := e.Field
	if e.Source != "" {
		where = fmt.Sprintf("%s %d %s", e.Source, e.ID, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("parse %s %q: %v", where, e.Value, e.Err)
	}
	return fmt.Sprintf("parse %s %q", where, e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConflictError is returned when a membership number is already held by
// another subscription.
type ConflictError struct {
	Number   string
	HolderID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("membership number %s already assigned to subscription %d", e.Number, e.HolderID)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// Stable kind names, used by the HTTP layer and in logs.
const (
	KindParse      = "parse"
	KindConflict   = "conflict"
	KindNotFound   = "not_found"
	KindValidation = "validation"
	KindInternal   = "internal"
)

// ErrorKind classifies err into one of the Kind constants.
func ErrorKind(err error) string {
	var (
		pe *ParseError
		ce *ConflictError
		ne *NotFoundError
		ve *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return KindParse
	case errors.As(err, &ce):
		return KindConflict
	case errors.As(err, &ne):
		return KindNotFound
	case errors.As(err, &ve):
		return KindValidation
	default:
		return KindInternal
	}
}
