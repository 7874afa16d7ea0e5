package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pinstack/backbox/internal/controlcli"
	"github.com/pinstack/backbox/internal/logging"
	"github.com/pinstack/backbox/protocol"
)

var monitorCategory string

// MonitorCmd attaches to the daemon and prints everything it sends.
var MonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Attach to the daemon and print every message it sends",
	Long: `Perform the hello handshake, then print each line the daemon emits
until the connection drops. With --category a monitor_start command is
sent first so subscribers on the daemon can begin streaming.`,
	Run: func(c *cobra.Command, args []string) {
		client, err := dialTarget()
		if err != nil {
			logging.Log.Errorf("[backboxctl] error: %v", err)
			return
		}
		defer client.Close()

		reply, err := client.Hello(controlcli.CtlCfg.DialTimeout())
		if err != nil {
			logging.Log.Errorf("[backboxctl] handshake failed: %v", err)
			return
		}
		fmt.Println(reply.Raw())

		if monitorCategory != "" {
			if err := client.Send(protocol.MonitorStart(monitorCategory)); err != nil {
				logging.Log.Errorf("[backboxctl] error: %v", err)
				return
			}
		}

		for {
			m, err := client.Receive()
			if err != nil {
				logging.Log.Infof("[backboxctl] connection closed: %v", err)
				return
			}
			fmt.Println(m.Raw())
		}
	},
}

func init() {
	registerTargetFlags(MonitorCmd)
	MonitorCmd.Flags().StringVar(&monitorCategory, "category", "", "Send monitor_start for this category after the handshake")
}
