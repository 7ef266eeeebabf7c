package mail

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeData decodes provider URL-safe base64 content. Padding is optional
// and standard-alphabet input is accepted as well.
func DecodeData(data string) ([]byte, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '-':
			return '+'
		case '_':
			return '/'
		case '\r', '\n', ' ', '\t':
			return -1
		}
		return r
	}, data)
	s = strings.TrimRight(s, "=")

	out, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return out, nil
}

// EncodeData encodes content the way providers deliver it.
func EncodeData(data []byte) string {
	return base64.URLEncoding.EncodeToString(data)
}
