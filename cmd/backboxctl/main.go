// Command backboxctl provides CLI control over a running backboxd.
// It speaks the same line protocol as the origin controller and can
// send single commands, watch daemon traffic, or flood the daemon with
// synthetic switch events for throughput measurements.
package main

import (
	"fmt"
	"os"

	"github.com/pinstack/backbox/cmd/backboxctl/cmd"
	"github.com/pinstack/backbox/internal/controlcli"
	"github.com/pinstack/backbox/internal/logging"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "backboxctl",
	Short: "Control interface for the backbox daemon",
	Long:  `backboxctl talks to backboxd over its control port using the same line protocol as the origin pinball controller.`,
	PersistentPreRun: func(c *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		// Protocol lines go to stdout, logs stay on stderr.
		logging.Init(logging.Config{Level: level, ToStderr: true})
	},
}

func main() {
	var err error
	controlcli.CtlCfg, err = controlcli.LoadCTLConfig()
	if err != nil {
		logging.Log.Errorf("[backboxctl] Failed to load config: %v", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(cmd.SendCmd)
	rootCmd.AddCommand(cmd.MonitorCmd)
	rootCmd.AddCommand(cmd.BenchCmd)
}
