// Package dispatch provides the inbound queue, command registry and event
// fan-out for protocol commands handled by the backbox daemon.
package dispatch

import (
	"errors"
	"strings"
	"sync"

	"github.com/pinstack/backbox/internal/logging"
	"github.com/pinstack/backbox/protocol"
)

// DefaultQueueCapacity bounds the inbound queue when Config leaves it zero.
const DefaultQueueCapacity = 512

// HandlerFunc decodes and handles one wire command. A returned error is
// reported back to the origin as an error command; *ProtocolError keeps
// its own wording and correlation id.
type HandlerFunc func(d *Dispatcher, m *protocol.Message) error

// Handler receives decoded events for a subscription key.
type Handler func(ev Event)

// Sender is the outbound half the dispatcher replies through.
type Sender interface {
	Send(m *protocol.Message) bool
}

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	key string
	id  uint64
}

type subscriber struct {
	id uint64
	fn Handler
}

// Config controls dispatcher behavior.
type Config struct {
	// QueueCapacity bounds the inbound queue. Zero means
	// DefaultQueueCapacity.
	QueueCapacity int
	// TimerTriggers decodes the timer and tilt trigger families into
	// typed events instead of plain triggers.
	TimerTriggers bool
	// StrictUnknown reports unknown commands to the origin instead of
	// ignoring them.
	StrictUnknown bool
}

// Dispatcher queues inbound messages and fans them out to command
// handlers and subscribers. Enqueue is safe from any goroutine;
// DrainAndProcess runs handlers on the caller's goroutine.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	subs     map[string][]subscriber
	nextSub  uint64
	sender   Sender
	shutdown func()

	queue         *queue
	timerTriggers bool
	strict        bool
}

// New creates a Dispatcher with the built-in command handlers installed.
func New(cfg Config) *Dispatcher {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	d := &Dispatcher{
		handlers:      make(map[string]HandlerFunc),
		subs:          make(map[string][]subscriber),
		queue:         newQueue(cfg.QueueCapacity),
		timerTriggers: cfg.TimerTriggers,
		strict:        cfg.StrictUnknown,
	}
	d.Register(protocol.CmdHello, handleHello)
	d.Register(protocol.CmdGoodbye, handleGoodbye)
	d.Register(protocol.CmdReset, handleReset)
	d.Register(protocol.CmdError, handleError)
	d.Register(protocol.CmdSwitch, handleSwitch)
	d.Register(protocol.CmdTrigger, handleTrigger)
	d.Register(protocol.CmdBallStart, handleBallStart)
	d.Register(protocol.CmdBallEnd, handleBallEnd)
	d.Register(protocol.CmdModeStart, handleModeStart)
	d.Register(protocol.CmdModeStop, handleModeStop)
	d.Register(protocol.CmdPlayerAdded, handlePlayerAdded)
	d.Register(protocol.CmdPlayerTurnStart, handlePlayerTurnStart)
	d.Register(protocol.CmdPlayerVariable, handlePlayerVariable)
	d.Register(protocol.CmdMachineVariable, handleMachineVariable)
	return d
}

// SetSender wires the transport the dispatcher replies through. Without
// one, replies are dropped.
func (d *Dispatcher) SetSender(s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sender = s
}

// SetShutdown registers the callback run when the origin says goodbye.
func (d *Dispatcher) SetShutdown(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdown = fn
}

// Register binds a command name to a handler, replacing any previous one.
func (d *Dispatcher) Register(command string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[strings.ToLower(command)] = handler
}

// Subscribe registers fn under a subscription key: a command name, a
// trigger name, one of the Key constants, or KeyAll for every inbound
// message. Handlers for a key run in subscription order.
func (d *Dispatcher) Subscribe(key string, fn Handler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	key = strings.ToLower(key)
	d.nextSub++
	d.subs[key] = append(d.subs[key], subscriber{id: d.nextSub, fn: fn})
	return Subscription{key: key, id: d.nextSub}
}

// Unsubscribe removes a subscription. Unknown tokens are ignored.
func (d *Dispatcher) Unsubscribe(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.subs[sub.key]
	for i, s := range list {
		if s.id != sub.id {
			continue
		}
		// Rebuild instead of splicing: notify iterates snapshots of
		// this slice outside the lock.
		next := make([]subscriber, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(d.subs, sub.key)
		} else {
			d.subs[sub.key] = next
		}
		return
	}
}

// Enqueue adds an inbound message for the next drain. Messages arriving
// while the queue is full are dropped.
func (d *Dispatcher) Enqueue(m *protocol.Message) bool {
	if !d.queue.push(m) {
		logging.Log.Debugw("inbound queue full, dropping message", "command", m.Command)
		return false
	}
	return true
}

// QueueLen reports how many messages are waiting.
func (d *Dispatcher) QueueLen() int { return d.queue.len() }

// DrainAndProcess dispatches every queued message in arrival order and
// reports how many it handled. Failures are reported to the origin and
// do not stop the drain.
func (d *Dispatcher) DrainAndProcess() int {
	n := 0
	for m := d.queue.pop(); m != nil; m = d.queue.pop() {
		d.dispatch(m)
		n++
	}
	return n
}

func (d *Dispatcher) dispatch(m *protocol.Message) {
	d.notify(KeyAll, MessageEvent{Msg: m})

	d.mu.RLock()
	handler, known := d.handlers[m.Command]
	d.mu.RUnlock()

	if !known {
		if d.hasSubscribers(m.Command) {
			d.notify(m.Command, MessageEvent{Msg: m})
			return
		}
		if d.strict {
			logging.Log.Warnw("unknown command", "command", m.Command)
			d.reply(protocol.ErrorReply("unknown command", m.String(), m.ID))
		} else {
			logging.Log.Debugw("ignoring unknown command", "command", m.Command)
		}
		return
	}

	if err := handler(d, m); err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			logging.Log.Warnw("protocol error", "command", perr.Command, "reason", perr.Reason)
			d.reply(protocol.ErrorReply(perr.Reason, perr.Raw, perr.ID))
			return
		}
		logging.Log.Errorw("handler failed", "command", m.Command, "error", err)
		d.reply(protocol.ErrorReply(err.Error(), m.String(), m.ID))
	}
}

// emit delivers ev to the subscribers of its key.
func (d *Dispatcher) emit(ev Event) { d.notify(ev.Key(), ev) }

func (d *Dispatcher) notify(key string, ev Event) {
	d.mu.RLock()
	list := d.subs[key]
	d.mu.RUnlock()
	for _, s := range list {
		s.fn(ev)
	}
}

func (d *Dispatcher) hasSubscribers(key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[key]) > 0
}

func (d *Dispatcher) reply(m *protocol.Message) {
	d.mu.RLock()
	s := d.sender
	d.mu.RUnlock()
	if s == nil {
		logging.Log.Debugw("no sender wired, dropping reply", "command", m.Command)
		return
	}
	s.Send(m)
}

// --- Built-in command handlers ---

func handleHello(d *Dispatcher, m *protocol.Message) error {
	version, err := requireText(m, "version")
	if err != nil {
		return err
	}
	if version != protocol.Version {
		return protocolErr(m, "unsupported protocol version "+version)
	}
	ack := protocol.Hello(protocol.Version)
	ack.ID = m.ID
	d.reply(ack)
	d.emit(MessageEvent{Msg: m})
	return nil
}

func handleGoodbye(d *Dispatcher, m *protocol.Message) error {
	d.emit(MessageEvent{Msg: m})
	d.mu.RLock()
	fn := d.shutdown
	d.mu.RUnlock()
	if fn != nil {
		fn()
	}
	return nil
}

func handleReset(d *Dispatcher, m *protocol.Message) error {
	d.emit(MessageEvent{Msg: m})
	d.reply(protocol.ResetComplete(m.ID))
	return nil
}

func handleError(d *Dispatcher, m *protocol.Message) error {
	text, err := requireText(m, "message")
	if err != nil {
		return err
	}
	ev := ErrorEvent{
		Message: text,
		Command: optionalText(m, "command", ""),
		Fatal:   optionalBool(m, "fatal", false),
	}
	logging.Log.Warnw("origin reported error",
		"message", ev.Message, "command", ev.Command, "fatal", ev.Fatal)
	d.emit(ev)
	return nil
}

func handleSwitch(d *Dispatcher, m *protocol.Message) error {
	name, err := requireText(m, "name")
	if err != nil {
		return err
	}
	state, err := requireInt(m, "state")
	if err != nil {
		return err
	}
	d.emit(SwitchEvent{Name: name, State: state})
	return nil
}

func handleTrigger(d *Dispatcher, m *protocol.Message) error {
	name, err := requireText(m, "name")
	if err != nil {
		return err
	}
	if d.timerTriggers {
		if ev, ok := decodeTriggerFamily(name, m); ok {
			d.emit(ev)
			return nil
		}
	}
	params := make(protocol.Params, len(m.Params))
	for k, v := range m.Params {
		if k != "name" {
			params[k] = v
		}
	}
	d.emit(TriggerEvent{Name: name, Params: params})
	return nil
}

// timerActions in most-specific-first order so longer suffixes win.
var timerActions = []TimerAction{
	TimerTimeSubtracted,
	TimerTimeAdded,
	TimerCompleted,
	TimerStarted,
	TimerStopped,
	TimerPaused,
	TimerTick,
}

func decodeTriggerFamily(name string, m *protocol.Message) (Event, bool) {
	switch strings.ToLower(name) {
	case KeyTilt:
		return TiltEvent{}, true
	case KeySlamTilt:
		return SlamTiltEvent{}, true
	case KeyTiltWarning:
		return TiltWarningEvent{
			Warnings:          optionalInt(m, "warnings", 0),
			WarningsRemaining: optionalInt(m, "warnings_remaining", 0),
		}, true
	}
	return decodeTimer(strings.ToLower(name), m)
}

func decodeTimer(name string, m *protocol.Message) (Event, bool) {
	const prefix = "timer_"
	if !strings.HasPrefix(name, prefix) {
		return nil, false
	}
	for _, action := range timerActions {
		suffix := "_" + string(action)
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		if len(name)-len(suffix) <= len(prefix) {
			return nil, false
		}
		ev := TimerEvent{
			Name:           name[len(prefix) : len(name)-len(suffix)],
			Action:         action,
			Ticks:          optionalInt(m, "ticks", 0),
			TicksRemaining: optionalInt(m, "ticks_remaining", 0),
		}
		switch action {
		case TimerTimeAdded:
			ev.Delta = optionalInt(m, "ticks_added", 0)
		case TimerTimeSubtracted:
			ev.Delta = -optionalInt(m, "ticks_subtracted", 0)
		}
		return ev, true
	}
	return nil, false
}

func handleBallStart(d *Dispatcher, m *protocol.Message) error {
	player, err := requireInt(m, "player_num")
	if err != nil {
		return err
	}
	ball, err := requireInt(m, "ball")
	if err != nil {
		return err
	}
	d.emit(BallStartEvent{PlayerNum: player, Ball: ball})
	return nil
}

func handleBallEnd(d *Dispatcher, m *protocol.Message) error {
	d.emit(BallEndEvent{})
	return nil
}

func handleModeStart(d *Dispatcher, m *protocol.Message) error {
	name, err := requireText(m, "name")
	if err != nil {
		return err
	}
	d.emit(ModeStartEvent{Name: name, Priority: optionalInt(m, "priority", 0)})
	return nil
}

func handleModeStop(d *Dispatcher, m *protocol.Message) error {
	name, err := requireText(m, "name")
	if err != nil {
		return err
	}
	d.emit(ModeStopEvent{Name: name})
	return nil
}

func handlePlayerAdded(d *Dispatcher, m *protocol.Message) error {
	player, err := requireInt(m, "player_num")
	if err != nil {
		return err
	}
	d.emit(PlayerAddedEvent{PlayerNum: player})
	return nil
}

func handlePlayerTurnStart(d *Dispatcher, m *protocol.Message) error {
	player, err := requireInt(m, "player_num")
	if err != nil {
		return err
	}
	d.emit(PlayerTurnStartEvent{PlayerNum: player})
	return nil
}

func handlePlayerVariable(d *Dispatcher, m *protocol.Message) error {
	name, err := requireText(m, "name")
	if err != nil {
		return err
	}
	d.emit(PlayerVariableEvent{
		Name:      name,
		Value:     optionalValue(m, "value"),
		PrevValue: optionalValue(m, "prev_value"),
		Change:    optionalValue(m, "change"),
	})
	return nil
}

func handleMachineVariable(d *Dispatcher, m *protocol.Message) error {
	name, err := requireText(m, "name")
	if err != nil {
		return err
	}
	d.emit(MachineVariableEvent{Name: name, Value: optionalValue(m, "value")})
	return nil
}
