// Package protocol implements the backbox control protocol wire format:
// newline-terminated, percent-encoded command lines with typed parameter
// values, linking a machine origin to a media controller. It can be used
// externally to build additional tooling or integrations.
package protocol

import "strings"

// Version is the protocol revision this implementation speaks.
const Version = "1.0"

// Command names carried on the wire.
const (
	CmdHello           = "hello"
	CmdGoodbye         = "goodbye"
	CmdReset           = "reset"
	CmdResetComplete   = "reset_complete"
	CmdError           = "error"
	CmdSwitch          = "switch"
	CmdTrigger         = "trigger"
	CmdBallStart       = "ball_start"
	CmdBallEnd         = "ball_end"
	CmdModeStart       = "mode_start"
	CmdModeStop        = "mode_stop"
	CmdPlayerAdded     = "player_added"
	CmdPlayerTurnStart = "player_turn_start"
	CmdPlayerVariable  = "player_variable"
	CmdMachineVariable = "machine_variable"
	CmdMonitorStart    = "monitor_start"
	CmdMonitorStop     = "monitor_stop"
	CmdRegisterTrigger = "register_trigger"
	CmdRemoveTrigger   = "remove_trigger"
	CmdDMDFrame        = "dmd_frame"
)

// Reserved parameter names the codec handles itself.
const (
	paramJSON = "json"
	paramID   = "id"
)

// Params maps lowercased parameter names to typed values.
type Params map[string]Value

// Message is a single protocol message. Command and parameter names are
// lowercase; values keep their case. Messages decoded from the wire
// remember the original line, so String returns it verbatim. Treat a
// Message as read-only once it has been built or handed to a transport.
type Message struct {
	Command string
	ID      string
	Params  Params
	raw     string
}

// New builds a message with a normalized command and parameter names.
func New(command string, params Params) *Message {
	m := &Message{Command: strings.ToLower(command), Params: Params{}}
	for k, v := range params {
		m.Params[strings.ToLower(k)] = v
	}
	return m
}

// Raw returns the original wire line for decoded messages, without the
// terminator, or "" for messages built locally.
func (m *Message) Raw() string { return m.raw }

// String returns the wire line without the terminator: the original line
// for decoded messages, a fresh encoding otherwise.
func (m *Message) String() string {
	if m.raw != "" {
		return m.raw
	}
	return Encode(m)
}

// ToPacket renders the complete wire frame including the terminator.
func (m *Message) ToPacket() []byte {
	return append([]byte(m.String()), '\n')
}

// Param looks up a parameter by name.
func (m *Message) Param(key string) (Value, bool) {
	v, ok := m.Params[key]
	return v, ok
}

// --- Outbound builders ---

// Hello builds the handshake request advertising a protocol version.
func Hello(version string) *Message {
	return New(CmdHello, Params{"version": String(version)})
}

// Goodbye builds the connection teardown notice.
func Goodbye() *Message { return New(CmdGoodbye, nil) }

// Reset builds the state reset request.
func Reset() *Message { return New(CmdReset, nil) }

// ResetComplete builds the reset acknowledgement, echoing the request id.
func ResetComplete(id string) *Message {
	m := New(CmdResetComplete, nil)
	m.ID = id
	return m
}

// ErrorReply builds an error notice. command carries the offending wire
// line when known; id echoes the failed request.
func ErrorReply(message, command, id string) *Message {
	p := Params{"message": String(message)}
	if command != "" {
		p["command"] = String(command)
	}
	m := New(CmdError, p)
	m.ID = id
	return m
}

// Trigger builds a named trigger event with optional parameters.
func Trigger(name string, params Params) *Message {
	m := New(CmdTrigger, params)
	m.Params["name"] = String(name)
	return m
}

// Switch builds a switch state report.
func Switch(name string, state int64) *Message {
	return New(CmdSwitch, Params{"name": String(name), "state": Int(state)})
}

// MonitorStart asks the peer to start streaming a monitoring category.
func MonitorStart(category string) *Message {
	return New(CmdMonitorStart, Params{"category": String(category)})
}

// MonitorStop stops a monitoring category.
func MonitorStop(category string) *Message {
	return New(CmdMonitorStop, Params{"category": String(category)})
}

// RegisterTrigger subscribes the sender to a named event on the peer.
func RegisterTrigger(event string) *Message {
	return New(CmdRegisterTrigger, Params{"event": String(event)})
}

// RemoveTrigger removes a trigger registration.
func RemoveTrigger(event string) *Message {
	return New(CmdRemoveTrigger, Params{"event": String(event)})
}
