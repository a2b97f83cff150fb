package enums

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// parseEnum accepts value, ignoring surrounding whitespace, when it names a member of known.
func parseEnum[T ~string](known []T, value, kind string) (T, error) {
	candidate := T(strings.TrimSpace(value))
	if slices.Contains(known, candidate) {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}

// decodeUpper reads a JSON string and returns it trimmed and upper-cased.
func decodeUpper(data []byte) (string, error) {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(raw)), nil
}
