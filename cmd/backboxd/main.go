// Command backboxd is the main entry point for the backbox media daemon.
// It loads configuration, binds the TCP listener the origin controller
// connects to, and processes queued protocol traffic on a fixed tick.
// On termination signals it says goodbye to the origin and exits.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pinstack/backbox/dispatch"
	"github.com/pinstack/backbox/internal/config"
	"github.com/pinstack/backbox/internal/control"
	"github.com/pinstack/backbox/internal/logging"
	"github.com/pinstack/backbox/protocol"
)

func main() {
	// Optional .env next to the binary, mainly for BACKBOX_* overrides
	// during development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("[backboxd] Failed to load config: %v", err)
	}

	if err := logging.Init(cfg.Log); err != nil {
		log.Fatalf("[backboxd] Failed to init logger: %v", err)
	}
	defer logging.Log.Sync()

	d := dispatch.New(dispatch.Config{
		QueueCapacity: cfg.Dispatch.QueueCapacity,
		TimerTriggers: cfg.Dispatch.TimerTriggers,
		StrictUnknown: cfg.Dispatch.StrictUnknown,
	})

	srv, err := control.NewServer(control.Config{
		Host:       cfg.Listen.Host,
		Port:       cfg.Listen.Port,
		ReadBuffer: cfg.Listen.ReadBuffer,
	}, d)
	if err != nil {
		logging.Log.Fatalw("failed to start control listener", "error", err)
	}
	d.SetSender(srv)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// A goodbye from the origin drives the same exit path as a signal.
	d.SetShutdown(func() {
		select {
		case sigChan <- syscall.SIGTERM:
		default:
		}
	})

	d.Subscribe(dispatch.KeyAll, func(ev dispatch.Event) {
		if me, ok := ev.(dispatch.MessageEvent); ok {
			logging.Log.Debugw("inbound command", "command", me.Msg.Command, "raw", me.Msg.Raw())
		}
	})
	subscribeEventLog(d)

	srv.Start()
	logging.Log.Infow("backboxd is running, waiting for the origin controller",
		"addr", srv.Addr().String(),
		"tick_interval", cfg.Dispatch.TickInterval)

	ticker := time.NewTicker(cfg.Dispatch.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.DrainAndProcess()
		case sig := <-sigChan:
			logging.Log.Infow("termination requested", "signal", sig.String())
			srv.Close()
			d.DrainAndProcess()
			logging.Log.Infow("shutdown complete")
			return
		}
	}
}

// subscribeEventLog attaches the default presentation hook: decoded game
// events are logged at info level until a media layer replaces them.
// Origin error reports are already logged by the dispatcher itself.
func subscribeEventLog(d *dispatch.Dispatcher) {
	keys := []string{
		protocol.CmdSwitch,
		dispatch.KeyTimer,
		dispatch.KeyTilt,
		dispatch.KeyTiltWarning,
		dispatch.KeySlamTilt,
		protocol.CmdBallStart,
		protocol.CmdBallEnd,
		protocol.CmdModeStart,
		protocol.CmdModeStop,
		protocol.CmdPlayerAdded,
		protocol.CmdPlayerTurnStart,
		protocol.CmdPlayerVariable,
		protocol.CmdMachineVariable,
	}
	for _, key := range keys {
		d.Subscribe(key, logEvent)
	}
}

func logEvent(ev dispatch.Event) {
	switch e := ev.(type) {
	case dispatch.SwitchEvent:
		logging.Log.Infow("switch", "name", e.Name, "state", e.State)
	case dispatch.TimerEvent:
		logging.Log.Infow("timer", "name", e.Name, "action", string(e.Action),
			"ticks", e.Ticks, "ticks_remaining", e.TicksRemaining, "delta", e.Delta)
	case dispatch.TiltEvent:
		logging.Log.Infow("tilt")
	case dispatch.SlamTiltEvent:
		logging.Log.Infow("slam tilt")
	case dispatch.TiltWarningEvent:
		logging.Log.Infow("tilt warning",
			"warnings", e.Warnings, "warnings_remaining", e.WarningsRemaining)
	case dispatch.BallStartEvent:
		logging.Log.Infow("ball start", "player", e.PlayerNum, "ball", e.Ball)
	case dispatch.BallEndEvent:
		logging.Log.Infow("ball end")
	case dispatch.ModeStartEvent:
		logging.Log.Infow("mode start", "name", e.Name, "priority", e.Priority)
	case dispatch.ModeStopEvent:
		logging.Log.Infow("mode stop", "name", e.Name)
	case dispatch.PlayerAddedEvent:
		logging.Log.Infow("player added", "player", e.PlayerNum)
	case dispatch.PlayerTurnStartEvent:
		logging.Log.Infow("player turn start", "player", e.PlayerNum)
	case dispatch.PlayerVariableEvent:
		logging.Log.Infow("player variable", "name", e.Name,
			"value", e.Value.Any(), "prev", e.PrevValue.Any(), "change", e.Change.Any())
	case dispatch.MachineVariableEvent:
		logging.Log.Infow("machine variable", "name", e.Name, "value", e.Value.Any())
	}
}
