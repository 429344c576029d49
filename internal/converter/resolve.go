package converter

import (
	"errors"
	"strings"
)

// Header names recognised by the heuristic, compared trimmed and lowercased.
// X holds the easting-like component, Y the northing-like one.
var (
	xColumnNames = []string{"lon", "longitude", "long", "lng", "easting", "east", "x"}
	yColumnNames = []string{"lat", "latitude", "northing", "north", "y"}
)

// missingMarkers are the cell values treated as absent, besides blanks.
var missingMarkers = map[string]bool{
	"nan":  true,
	"na":   true,
	"n/a":  true,
	"null": true,
	"none": true,
}

// IsMissing reports whether a cell holds no value.
func IsMissing(cell string) bool {
	s := strings.ToLower(strings.TrimSpace(cell))
	return s == "" || missingMarkers[s]
}

// ResolveColumns infers the X and Y columns from the headers. It refuses
// rather than guesses: no candidate or several candidates for either role
// yields a *ColumnResolutionError.
func ResolveColumns(headers []string) (xColumn, yColumn string, err error) {
	xs := matchColumns(headers, xColumnNames)
	ys := matchColumns(headers, yColumnNames)

	if len(xs) != 1 || len(ys) != 1 {
		return "", "", &ColumnResolutionError{Headers: headers, XMatches: xs, YMatches: ys}
	}
	return xs[0], ys[0], nil
}

// SuggestColumns runs the heuristic for pre-selection in a UI. A role that
// does not resolve to exactly one column comes back empty.
func SuggestColumns(headers []string) (xColumn, yColumn string) {
	if xs := matchColumns(headers, xColumnNames); len(xs) == 1 {
		xColumn = xs[0]
	}
	if ys := matchColumns(headers, yColumnNames); len(ys) == 1 {
		yColumn = ys[0]
	}
	return xColumn, yColumn
}

// ValidateColumns checks an explicit selection: both columns exist exactly
// once and they differ.
func ValidateColumns(headers []string, xColumn, yColumn string) error {
	if err := validateColumn(headers, "x_column", xColumn); err != nil {
		return err
	}
	if err := validateColumn(headers, "y_column", yColumn); err != nil {
		return err
	}
	if xColumn == yColumn {
		return &ConfigurationError{Field: "y_column", Value: yColumn, Err: errors.New("must differ from x_column")}
	}
	return nil
}

func validateColumn(headers []string, field, name string) error {
	if strings.TrimSpace(name) == "" {
		return &ConfigurationError{Field: field, Value: name, Err: errors.New("column name is required")}
	}

	count := 0
	for _, h := range headers {
		if h == name {
			count++
		}
	}

	switch count {
	case 0:
		return &ConfigurationError{Field: field, Value: name, Err: errors.New("no such column")}
	case 1:
		return nil
	default:
		return &ConfigurationError{Field: field, Value: name, Err: errors.New("column name appears more than once")}
	}
}

func matchColumns(headers []string, names []string) []string {
	var matches []string
	for _, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if key == n {
				matches = append(matches, h)
				break
			}
		}
	}
	return matches
}
