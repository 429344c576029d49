package converter

import (
	"errors"
	"fmt"
	"strings"
)

// Halting errors. Each typed error below matches one of these with errors.Is.
var (
	ErrColumnResolution = errors.New("could not find latitude/longitude columns")
	ErrIngestion        = errors.New("could not read input")
	ErrConfiguration    = errors.New("invalid conversion settings")
)

// Row-local failure causes. They end up in RowFailure.Reason, never in a
// returned error.
var (
	errMissingCoordinate = errors.New("missing coordinate")
	errNotNumeric        = errors.New("not a number")
)

// ColumnResolutionError is returned when the coordinate columns cannot be
// inferred from the headers: no candidate, or more than one, for a role.
type ColumnResolutionError struct {
	Headers  []string
	XMatches []string
	YMatches []string
}

func (e *ColumnResolutionError) Error() string {
	if len(e.XMatches) == 0 || len(e.YMatches) == 0 {
		return ErrColumnResolution.Error()
	}
	return fmt.Sprintf("ambiguous coordinate columns: x could be %s, y could be %s",
		strings.Join(e.XMatches, " or "), strings.Join(e.YMatches, " or "))
}

func (e *ColumnResolutionError) Is(target error) bool {
	return target == ErrColumnResolution
}

// IngestionError wraps anything that prevents a file from becoming a table.
type IngestionError struct {
	File string
	Err  error
}

func (e *IngestionError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("read input: %v", e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.File, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

func (e *IngestionError) Is(target error) bool {
	return target == ErrIngestion
}

// ConfigurationError reports an option that cannot be honoured, such as an
// unknown CRS or a column that does not exist.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
