package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const cursorPrefix = "activity|"

// EncodeCursor serialises the last returned activity key to a string token.
func EncodeCursor(lastKey string) string {
	if lastKey == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + lastKey))
}

// DecodeCursor parses the encoded cursor token. An empty token yields an empty key.
func DecodeCursor(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	raw := string(decoded)
	if !strings.HasPrefix(raw, cursorPrefix) || len(raw) == len(cursorPrefix) {
		return "", fmt.Errorf("invalid cursor format")
	}
	return strings.TrimPrefix(raw, cursorPrefix), nil
}
