package tgui

import (
	"strings"
)

// Data formats inline callback data as "scope:action:payload".
// Payload is kept as-is (no escaping); callers must keep it free of ':'
// only if they intend to Parse() it back without a payload remainder.
func Data(scope, action, payload string) string {
	scope = strings.TrimSpace(scope)
	action = strings.TrimSpace(action)
	if payload == "" {
		return scope + ":" + action
	}
	return scope + ":" + action + ":" + payload
}

// Parse splits callback data produced by Data().
// The payload keeps any embedded ':' intact.
func Parse(data string) (scope, action, payload string) {
	data = strings.TrimSpace(strings.TrimPrefix(data, "\f"))
	parts := strings.SplitN(data, ":", 3)
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return parts[0], parts[1], ""
	case 1:
		return parts[0], "", ""
	default:
		return "", "", ""
	}
}
