package worker

import (
	"encoding/json"

	"github.com/naveenspark/beacon/pkg/domain"
)

// ParsePayload turns a push payload into a notification title and options.
// Payloads are untrusted: missing, empty or mistyped fields take their
// defaults, and a payload that is not a JSON object yields all defaults.
func ParsePayload(data []byte, appName string) (string, domain.NotificationOptions) {
	if appName == "" {
		appName = DefaultTitle
	}
	var fields map[string]json.RawMessage
	if len(data) > 0 {
		json.Unmarshal(data, &fields) //nolint:errcheck // malformed payloads render with defaults
	}

	opts := domain.NotificationOptions{
		Body:               stringField(fields, "body", ""),
		Icon:               stringField(fields, "icon", DefaultIcon),
		Badge:              stringField(fields, "badge", DefaultBadge),
		Tag:                stringField(fields, "tag", DefaultTag),
		Data:               objectField(fields, "data"),
		RequireInteraction: boolField(fields, "requireInteraction"),
	}
	return stringField(fields, "title", appName), opts
}

func stringField(fields map[string]json.RawMessage, key, def string) string {
	raw, ok := fields[key]
	if !ok {
		return def
	}
	var s string
	if json.Unmarshal(raw, &s) != nil || s == "" {
		return def
	}
	return s
}

func boolField(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	var b bool
	if json.Unmarshal(raw, &b) != nil {
		return false
	}
	return b
}

func objectField(fields map[string]json.RawMessage, key string) map[string]any {
	obj := map[string]any{}
	if raw, ok := fields[key]; ok {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil && m != nil {
			obj = m
		}
	}
	return obj
}
