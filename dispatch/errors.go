package dispatch

import (
	"fmt"

	"github.com/pinstack/backbox/protocol"
)

// ProtocolError describes an inbound message the dispatcher could not
// honor. The dispatch loop reports it back to the origin as an error
// command carrying the reason and the offending wire line.
type ProtocolError struct {
	Command string // command name
	Reason  string
	Raw     string // offending wire line
	ID      string // correlation id of the request, if any
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Reason)
}

func protocolErr(m *protocol.Message, reason string) *ProtocolError {
	return &ProtocolError{
		Command: m.Command,
		Reason:  reason,
		Raw:     m.String(),
		ID:      m.ID,
	}
}

func missingParam(m *protocol.Message, key string) *ProtocolError {
	return protocolErr(m, fmt.Sprintf("missing required parameter %q", key))
}

func badParam(m *protocol.Message, key, want string) *ProtocolError {
	return protocolErr(m, fmt.Sprintf("parameter %q must be %s", key, want))
}
