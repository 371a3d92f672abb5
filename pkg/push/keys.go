package push

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeServerKey decodes a VAPID public key as served by the backend.
// Both the URL-safe and the standard alphabet are accepted, with or
// without padding.
func DecodeServerKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidServerKey)
	}
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	s = strings.TrimRight(s, "=")
	key, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServerKey, err)
	}
	return key, nil
}
