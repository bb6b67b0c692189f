package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/snipd/internal/ir"
)

// marshalConditions converts Conditions to JSON TEXT for storage.
// HTML escaping is disabled so URL patterns round-trip byte for byte.
func marshalConditions(c ir.Conditions) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("marshal conditions: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalConditions parses stored conditions.
// Malformed data decodes to a login filter no request satisfies, so the
// snippet is skipped instead of failing the request.
func unmarshalConditions(data string) ir.Conditions {
	var c ir.Conditions
	if data == "" || data == "{}" {
		return c
	}
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return ir.Conditions{Login: unreadableCondition}
	}
	return c
}

// unreadableCondition is never a valid filter value.
const unreadableCondition = "unreadable"

func marshalTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	return string(data), nil
}

func unmarshalTags(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}

// Timestamps are stored as unix nanoseconds in UTC.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
