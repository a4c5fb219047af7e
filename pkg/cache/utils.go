package cache

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// GenerateKey joins key parts with ':'.
func GenerateKey(parts ...string) string {
	return strings.Join(parts, ":")
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	case *string:
		*d = string(data)
		return nil
	default:
		return json.Unmarshal(data, dest)
	}
}

func newToken() string { return uuid.NewString() }
