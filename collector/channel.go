// Package collector reads event-log records off a Windows event channel and
// decodes them into the event model shared with the blockchain and
// off-chain submitters. Subscribing to the OS event log itself is a Win32
// API boundary (EvtSubscribe et al.) this package deliberately does not
// implement; Source abstracts that boundary so the data-contract half —
// channel naming and XML decoding — can be exercised without it.
package collector

import (
	"strings"

	"github.com/RyanW02/wineventchain/xerrors"
)

// Channel identifies one of the Windows event log channels this agent can
// subscribe to.
type Channel int

const (
	Application Channel = iota
	Security
	Setup
	System
)

// String returns the channel's canonical (capitalized) name, as used both
// in configuration and as the EvtSubscribe channel path.
func (c Channel) String() string {
	switch c {
	case Application:
		return "Application"
	case Security:
		return "Security"
	case Setup:
		return "Setup"
	case System:
		return "System"
	default:
		return "unknown"
	}
}

// ParseChannel parses a channel name case-insensitively, matching the set
// of channels this agent knows how to subscribe to.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(s) {
	case "application":
		return Application, nil
	case "security":
		return Security, nil
	case "setup":
		return Setup, nil
	case "system":
		return System, nil
	default:
		return 0, xerrors.ErrInvalidVariant
	}
}
