package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DecodeBase64 accepts standard or unpadded base64, optionally prefixed
// with a data URI header such as "data:image/png;base64,".
func DecodeBase64(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		if idx := strings.Index(encoded, ","); idx >= 0 {
			encoded = encoded[idx+1:]
		}
	}
	if encoded == "" {
		return nil, errors.New("empty base64 payload")
	}
	if data, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}
