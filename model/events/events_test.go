package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestEventDataHashSkipsAbsentFields(t *testing.T) {
	data := EventData{
		{Name: strPtr("User"), Value: strPtr("alice")},
		{Name: nil, Value: strPtr("orphan-value")},
		{Name: strPtr("orphan-name"), Value: nil},
	}

	h1 := data.Hash()

	var manual []byte
	manual = append(manual, "User"...)
	manual = append(manual, "alice"...)
	manual = append(manual, "orphan-value"...)
	manual = append(manual, "orphan-name"...)

	h2 := EventData{{Name: strPtr(string(manual))}}.Hash()

	require.Equal(t, h1, h2)
}

func TestEventDataHashIsDeterministic(t *testing.T) {
	data := EventData{{Name: strPtr("a"), Value: strPtr("b")}}
	require.Equal(t, data.Hash(), data.Hash())
}

func TestGuidRoundTripWithBraces(t *testing.T) {
	g := NewGuid()
	encoded, err := json.Marshal(g)
	require.NoError(t, err)
	require.Contains(t, string(encoded), "{")

	var decoded Guid
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, g, decoded)
}

func TestGuidParseWithoutBraces(t *testing.T) {
	g := NewGuid()
	parsed, err := ParseGuid(g.String())
	require.NoError(t, err)
	require.Equal(t, g, parsed)
}
