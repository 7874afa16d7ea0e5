// Package cmd provides CLI commands for driving a running backboxd
// through its control port: one-shot sends, live monitoring and load
// generation. All commands claim the daemon's single client slot, so
// the origin controller must be disconnected while they run.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pinstack/backbox/internal/control"
	"github.com/pinstack/backbox/internal/controlcli"
)

var (
	daemonName   string
	overrideAddr string
)

// dialTarget resolves the daemon address from flags and ctl.yaml and
// opens a control connection to it.
func dialTarget() (*control.Client, error) {
	addr := overrideAddr
	if addr == "" {
		var err error
		addr, err = controlcli.CtlCfg.Resolve(daemonName)
		if err != nil {
			return nil, err
		}
	}
	return control.Dial(addr, controlcli.CtlCfg.DialTimeout())
}

func registerTargetFlags(c *cobra.Command) {
	c.PersistentFlags().StringVarP(&daemonName, "daemon", "d", "", "Daemon name from ctl.yaml")
	c.PersistentFlags().StringVar(&overrideAddr, "addr", "", "Direct daemon address (host:port), bypassing ctl.yaml")
}
