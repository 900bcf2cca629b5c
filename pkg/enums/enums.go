// Package enums holds the string enums shared by the API, the database types
// and the event payloads.
package enums

import (
	"fmt"
	"slices"
)

// values is the closed set a string enum accepts.
type values[T ~string] []T

func (vs values[T]) has(v T) bool { return slices.Contains(vs, v) }

func (vs values[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); vs.has(v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
