package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pinstack/backbox/internal/logging"
	"github.com/pinstack/backbox/protocol"
)

var (
	sendRaw  bool
	sendID   bool
	sendWait time.Duration
)

// SendCmd sends a single protocol command to the daemon.
var SendCmd = &cobra.Command{
	Use:   "send <command> [key=value ...]",
	Short: "Send one command to the daemon",
	Long: `Send one protocol command. Parameters are key=value pairs whose values
use the wire syntax, e.g. state=int:1 or enabled=bool:True; untagged
values are sent as strings. With --raw the arguments are joined with
spaces and sent as a single preencoded line instead.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(c *cobra.Command, args []string) {
		client, err := dialTarget()
		if err != nil {
			logging.Log.Errorf("[backboxctl] error: %v", err)
			return
		}
		defer client.Close()

		var sent string
		if sendRaw {
			line := strings.Join(args, " ")
			if err := client.SendLine(line); err != nil {
				logging.Log.Errorf("[backboxctl] error: %v", err)
				return
			}
			sent = line
		} else {
			params := protocol.Params{}
			for _, arg := range args[1:] {
				key, val, ok := strings.Cut(arg, "=")
				if !ok {
					params[key] = protocol.None()
					continue
				}
				params[key] = protocol.ParseValue(val)
			}
			m := protocol.New(args[0], params)
			if sendID {
				m.ID = uuid.NewString()
			}
			if err := client.Send(m); err != nil {
				logging.Log.Errorf("[backboxctl] error: %v", err)
				return
			}
			sent = m.String()
		}
		fmt.Println(sent)

		if sendWait > 0 {
			reply, err := client.ReceiveTimeout(sendWait)
			if err != nil {
				logging.Log.Errorf("[backboxctl] no reply: %v", err)
				return
			}
			fmt.Println(reply.Raw())
		}
	},
}

func init() {
	registerTargetFlags(SendCmd)
	SendCmd.Flags().BoolVar(&sendRaw, "raw", false, "Send the arguments verbatim as one line")
	SendCmd.Flags().BoolVar(&sendID, "id", false, "Attach a generated id parameter")
	SendCmd.Flags().DurationVar(&sendWait, "wait", 0, "Wait this long for a reply and print it")
}
