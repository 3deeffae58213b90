/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package params extracts typed values from the loosely-typed argument
// maps that tool calls arrive as.
package params

import (
	"fmt"
	"maps"
)

// Extract returns a required argument.
func Extract[T any](args map[string]any, name string) (T, error) {
	value, exists := args[name]
	if !exists {
		var zero T
		return zero, fmt.Errorf("%s parameter is required", name)
	}
	return coerce[T](name, value)
}

// ExtractOptional returns an argument or defaultValue when absent. A
// present argument of the wrong type is still an error.
func ExtractOptional[T any](args map[string]any, name string, defaultValue T) (T, error) {
	value, exists := args[name]
	if !exists {
		return defaultValue, nil
	}
	return coerce[T](name, value)
}

// coerce converts a decoded JSON value to the requested type. The only
// conversion beyond a direct assertion is float64 to int, since JSON
// decoding produces float64 for every number.
func coerce[T any](name string, value any) (T, error) {
	if v, ok := value.(T); ok {
		return v, nil
	}

	var zero T
	if _, wantInt := any(zero).(int); wantInt {
		if f, ok := value.(float64); ok {
			return any(int(f)).(T), nil
		}
	}
	return zero, fmt.Errorf("%s parameter must be of type %T, got %T", name, zero, value)
}

// Error builds an error response map.
func Error(format string, args ...any) map[string]any {
	return map[string]any{
		"error": fmt.Sprintf(format, args...),
	}
}

// ErrorWithContext builds an error response carrying extra fields.
func ErrorWithContext(err error, context map[string]any) map[string]any {
	response := map[string]any{
		"error": err.Error(),
	}
	maps.Copy(response, context)
	return response
}
