package collector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RyanW02/wineventchain/xerrors"
)

func TestParseChannelCaseInsensitive(t *testing.T) {
	cases := map[string]Channel{
		"application": Application,
		"APPLICATION": Application,
		"Security":    Security,
		"setup":       Setup,
		"SYSTEM":      System,
	}

	for in, want := range cases {
		got, err := ParseChannel(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestParseChannelRejectsUnknown(t *testing.T) {
	_, err := ParseChannel("powershell")
	require.ErrorIs(t, err, xerrors.ErrInvalidVariant)
}

func TestChannelStringRoundTrip(t *testing.T) {
	for _, c := range []Channel{Application, Security, Setup, System} {
		parsed, err := ParseChannel(c.String())
		require.NoError(t, err)
		require.Equal(t, c, parsed)
	}
}
