package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// The analysis error taxonomy. Every core component fails fast with one of
// these types; nothing is silently coerced to a default value.

// DataError indicates an input that violates a precondition: an empty point
// set, a zero denominator, a degenerate coordinate range.
type DataError struct {
	Op  string // computation that failed, e.g. "dmur: balance"
	Err error
}

func (e *DataError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *DataError) Unwrap() error { return e.Err }

// DataErrorf creates a DataError with a formatted cause.
func DataErrorf(op, format string, args ...any) *DataError {
	return &DataError{Op: op, Err: eris.Errorf(format, args...)}
}

// IsDataError reports whether err (or anything it wraps) is a DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// GeometryError indicates boundary synthesis could not produce any valid
// polygon even via fallback. Fatal for the analysis run.
type GeometryError struct {
	Op  string
	Err error
}

func (e *GeometryError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *GeometryError) Unwrap() error { return e.Err }

// GeometryErrorf creates a GeometryError with a formatted cause.
func GeometryErrorf(op, format string, args ...any) *GeometryError {
	return &GeometryError{Op: op, Err: eris.Errorf(format, args...)}
}

// IsGeometryError reports whether err is a GeometryError.
func IsGeometryError(err error) bool {
	var ge *GeometryError
	return errors.As(err, &ge)
}

// SelectionError indicates the region selector found no candidate meeting
// the point-count/area constraints. Recoverable at the caller's discretion:
// fall back to whole-area analysis, or abort.
type SelectionError struct {
	Candidates int // candidates examined before all were rejected
	Err        error
}

func (e *SelectionError) Error() string { return "region: " + e.Err.Error() }

func (e *SelectionError) Unwrap() error { return e.Err }

// SelectionErrorf creates a SelectionError noting how many candidates were
// examined.
func SelectionErrorf(candidates int, format string, args ...any) *SelectionError {
	return &SelectionError{Candidates: candidates, Err: eris.Errorf(format, args...)}
}

// IsSelectionError reports whether err is a SelectionError.
func IsSelectionError(err error) bool {
	var se *SelectionError
	return errors.As(err, &se)
}

// ConfigError indicates an invalid configuration: weights not summing to
// 1.0, or a non-positive bandwidth/alpha/buffer value.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string { return "config: " + e.Field + ": " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// ConfigErrorf creates a ConfigError for the named field.
func ConfigErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: eris.Errorf(format, args...)}
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
