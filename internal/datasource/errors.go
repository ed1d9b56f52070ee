// Package datasource holds what the reference dataset parsers share.
package datasource

import (
	"fmt"
	"strconv"
)

// FormatError reports a malformed line in a reference dataset. A single
// FormatError aborts the load of the whole dataset.
type FormatError struct {
	Dataset string // e.g. "hpo"
	Line    int    // 1-based line number in the source
	Field   string // offending field, empty for line-level problems
	Value   string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s format error at line %d: %v", e.Dataset, e.Line, e.Err)
	}
	return fmt.Sprintf("%s format error at line %d: field %s=%q: %v", e.Dataset, e.Line, e.Field, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ParseInt parses a decimal integer field, returning a FormatError on failure.
func ParseInt(dataset string, line int, field, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &FormatError{Dataset: dataset, Line: line, Field: field, Value: value, Err: err}
	}
	return n, nil
}

// ParseInt64 is ParseInt for 64-bit values.
func ParseInt64(dataset string, line int, field, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, &FormatError{Dataset: dataset, Line: line, Field: field, Value: value, Err: err}
	}
	return n, nil
}
