package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/obelixia/reclock/internal/domain/record"
)

// parseAssignments turns key=value pairs into fields. Values that parse as
// JSON keep their type, anything else is a string.
func parseAssignments(pairs []string) (record.Fields, error) {
	fields := record.Fields{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, want key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		fields[key] = value
	}
	return fields, nil
}
