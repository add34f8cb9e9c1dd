package docstore

import (
	"encoding/json"
	"time"
)

// Field accessors. Documents round-trip through JSON, so a field written as
// time.Time or []string may come back as a string or []any; these helpers
// absorb both shapes.

// String returns the string value of a field, or "" if absent or not a string.
func String(fields map[string]any, key string) string {
	if value, ok := fields[key].(string); ok {
		return value
	}
	return ""
}

// Int returns the integer value of a field, accepting the numeric types
// JSON decoding can produce.
func Int(fields map[string]any, key string) int {
	switch value := fields[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return 0
		}
		return int(parsed)
	}
	return 0
}

// Time returns the time value of a field, parsing RFC 3339 strings.
func Time(fields map[string]any, key string) time.Time {
	switch value := fields[key].(type) {
	case time.Time:
		return value
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return time.Time{}
		}
		return parsed
	}
	return time.Time{}
}

// StringSlice returns the string-slice value of a field.
func StringSlice(fields map[string]any, key string) []string {
	switch value := fields[key].(type) {
	case []string:
		return append([]string(nil), value...)
	case []any:
		out := make([]string, 0, len(value))
		for _, entry := range value {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
