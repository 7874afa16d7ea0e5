package dispatch

import (
	"math"
	"strconv"
	"strings"

	"github.com/pinstack/backbox/protocol"
)

// Subscription keys for the decoded trigger families. Plain triggers are
// delivered under their own trigger name, other commands under the
// command name, and KeyAll sees every inbound message first.
const (
	KeyAll         = "*"
	KeyTimer       = "timer"
	KeyTilt        = "tilt"
	KeyTiltWarning = "tilt_warning"
	KeySlamTilt    = "slam_tilt"
)

// Event is a decoded inbound notification. Key reports the subscription
// key the event is delivered under.
type Event interface {
	Key() string
}

// MessageEvent wraps a message that has no dedicated decoder: unknown
// commands with subscribers, session commands, and the KeyAll feed.
type MessageEvent struct {
	Msg *protocol.Message
}

func (e MessageEvent) Key() string { return e.Msg.Command }

// TimerAction names the lifecycle step a timer trigger reports.
type TimerAction string

const (
	TimerStarted        TimerAction = "started"
	TimerStopped        TimerAction = "stopped"
	TimerPaused         TimerAction = "paused"
	TimerCompleted      TimerAction = "completed"
	TimerTick           TimerAction = "tick"
	TimerTimeAdded      TimerAction = "time_added"
	TimerTimeSubtracted TimerAction = "time_subtracted"
)

// TimerEvent is a decoded timer_<name>_<action> trigger. Delta is the
// signed tick change for time_added and time_subtracted, zero otherwise.
type TimerEvent struct {
	Name           string
	Action         TimerAction
	Ticks          int64
	TicksRemaining int64
	Delta          int64
}

func (e TimerEvent) Key() string { return KeyTimer }

// TiltEvent reports a tilt. It carries no parameters.
type TiltEvent struct{}

func (e TiltEvent) Key() string { return KeyTilt }

// SlamTiltEvent reports a slam tilt.
type SlamTiltEvent struct{}

func (e SlamTiltEvent) Key() string { return KeySlamTilt }

// TiltWarningEvent reports a tilt warning and how many remain before a
// full tilt.
type TiltWarningEvent struct {
	Warnings          int64
	WarningsRemaining int64
}

func (e TiltWarningEvent) Key() string { return KeyTiltWarning }

// TriggerEvent is a trigger with no dedicated decoding, keyed by its
// lowercased trigger name.
type TriggerEvent struct {
	Name   string
	Params protocol.Params
}

func (e TriggerEvent) Key() string { return strings.ToLower(e.Name) }

// SwitchEvent reports a switch state change.
type SwitchEvent struct {
	Name  string
	State int64
}

func (e SwitchEvent) Key() string { return protocol.CmdSwitch }

// BallStartEvent reports a new ball for a player.
type BallStartEvent struct {
	PlayerNum int64
	Ball      int64
}

func (e BallStartEvent) Key() string { return protocol.CmdBallStart }

// BallEndEvent reports the end of the current ball.
type BallEndEvent struct{}

func (e BallEndEvent) Key() string { return protocol.CmdBallEnd }

// ModeStartEvent reports a game mode starting.
type ModeStartEvent struct {
	Name     string
	Priority int64
}

func (e ModeStartEvent) Key() string { return protocol.CmdModeStart }

// ModeStopEvent reports a game mode stopping.
type ModeStopEvent struct {
	Name string
}

func (e ModeStopEvent) Key() string { return protocol.CmdModeStop }

// PlayerAddedEvent reports a player joining the game.
type PlayerAddedEvent struct {
	PlayerNum int64
}

func (e PlayerAddedEvent) Key() string { return protocol.CmdPlayerAdded }

// PlayerTurnStartEvent reports the start of a player's turn.
type PlayerTurnStartEvent struct {
	PlayerNum int64
}

func (e PlayerTurnStartEvent) Key() string { return protocol.CmdPlayerTurnStart }

// PlayerVariableEvent reports a player variable change. Values keep
// their wire types.
type PlayerVariableEvent struct {
	Name      string
	Value     protocol.Value
	PrevValue protocol.Value
	Change    protocol.Value
}

func (e PlayerVariableEvent) Key() string { return protocol.CmdPlayerVariable }

// MachineVariableEvent reports a machine variable change.
type MachineVariableEvent struct {
	Name  string
	Value protocol.Value
}

func (e MachineVariableEvent) Key() string { return protocol.CmdMachineVariable }

// ErrorEvent is an error reported by the origin.
type ErrorEvent struct {
	Message string
	Command string
	Fatal   bool
}

func (e ErrorEvent) Key() string { return protocol.CmdError }

// --- Parameter coercion ---

// intValue widens a wire value to an integer: ints directly, floats with
// a zero fractional part, and strings holding decimal digits.
func intValue(v protocol.Value) (int64, bool) {
	switch v.Kind() {
	case protocol.KindInt:
		return v.Int64(), true
	case protocol.KindFloat:
		f := v.Float64()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < float64(math.MaxInt64) {
			return int64(f), true
		}
	case protocol.KindString:
		if n, err := strconv.ParseInt(strings.TrimSpace(v.Str()), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// textValue renders a wire value as a string: strings verbatim, other
// kinds through their wire token.
func textValue(v protocol.Value) string {
	if v.Kind() == protocol.KindString {
		return v.Str()
	}
	return v.String()
}

func requireInt(m *protocol.Message, key string) (int64, error) {
	v, ok := m.Params[key]
	if !ok {
		return 0, missingParam(m, key)
	}
	n, ok := intValue(v)
	if !ok {
		return 0, badParam(m, key, "an integer")
	}
	return n, nil
}

func requireText(m *protocol.Message, key string) (string, error) {
	v, ok := m.Params[key]
	if !ok {
		return "", missingParam(m, key)
	}
	return textValue(v), nil
}

func optionalInt(m *protocol.Message, key string, def int64) int64 {
	v, ok := m.Params[key]
	if !ok {
		return def
	}
	if n, ok := intValue(v); ok {
		return n
	}
	return def
}

func optionalText(m *protocol.Message, key, def string) string {
	v, ok := m.Params[key]
	if !ok {
		return def
	}
	return textValue(v)
}

func optionalBool(m *protocol.Message, key string, def bool) bool {
	v, ok := m.Params[key]
	if !ok || v.Kind() != protocol.KindBool {
		return def
	}
	return v.Bool()
}

func optionalValue(m *protocol.Message, key string) protocol.Value {
	if v, ok := m.Params[key]; ok {
		return v
	}
	return protocol.None()
}
