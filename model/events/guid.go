package events

import (
	"encoding/json"
	"fmt"
	"strings"

	uuid "github.com/satori/go.uuid"
)

// Guid is a Windows-style event-log GUID. On the wire it is serialized
// surrounded by braces ("{...}") but parses whether or not the braces are
// present, matching the loose form event sources actually emit.
type Guid struct {
	uuid.UUID
}

// NewGuid generates a random Guid.
func NewGuid() Guid {
	return Guid{uuid.NewV4()}
}

// ParseGuid parses s, with or without surrounding braces.
func ParseGuid(s string) (Guid, error) {
	stripped := strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	u, err := uuid.FromString(stripped)
	if err != nil {
		return Guid{}, fmt.Errorf("events: parsing guid %q: %w", s, err)
	}
	return Guid{u}, nil
}

// MarshalJSON implements json.Marshaler, always emitting braces.
func (g Guid) MarshalJSON() ([]byte, error) {
	return json.Marshal("{" + g.UUID.String() + "}")
}

// UnmarshalJSON implements json.Unmarshaler, accepting braces or their
// absence.
func (g *Guid) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGuid(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
