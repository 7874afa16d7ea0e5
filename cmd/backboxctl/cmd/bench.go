package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/pinstack/backbox/internal/controlcli"
	"github.com/pinstack/backbox/internal/logging"
	"github.com/pinstack/backbox/protocol"
)

var (
	benchRate   float64
	benchCount  int
	benchSwitch string
)

// BenchCmd floods the daemon with switch events at a fixed rate and
// reports end-to-end throughput.
var BenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure daemon throughput with synthetic switch events",
	Long: `Send a paced stream of switch events followed by a reset whose
reset_complete reply marks the moment the daemon has processed the whole
run. Rates beyond what the dispatch tick drains overflow the inbound
queue and drop messages; lower --rate or raise dispatch.queue_capacity
on the daemon if the run times out.`,
	Run: func(c *cobra.Command, args []string) {
		client, err := dialTarget()
		if err != nil {
			logging.Log.Errorf("[backboxctl] error: %v", err)
			return
		}
		defer client.Close()

		if _, err := client.Hello(controlcli.CtlCfg.DialTimeout()); err != nil {
			logging.Log.Errorf("[backboxctl] handshake failed: %v", err)
			return
		}

		limiter := rate.NewLimiter(rate.Limit(benchRate), 1)
		start := time.Now()
		for i := 0; i < benchCount; i++ {
			if err := limiter.Wait(context.Background()); err != nil {
				logging.Log.Errorf("[backboxctl] error: %v", err)
				return
			}
			if err := client.Send(protocol.Switch(benchSwitch, int64(i%2))); err != nil {
				logging.Log.Errorf("[backboxctl] send failed after %d messages: %v", i, err)
				return
			}
		}

		// The reset rides behind every switch in the FIFO queue, so its
		// acknowledgement marks the end of the run.
		barrier := protocol.Reset()
		barrier.ID = uuid.NewString()
		if err := client.Send(barrier); err != nil {
			logging.Log.Errorf("[backboxctl] error: %v", err)
			return
		}
		for {
			reply, err := client.ReceiveTimeout(5 * time.Second)
			if err != nil {
				logging.Log.Errorf("[backboxctl] no reset_complete, queue may have overflowed: %v", err)
				return
			}
			if reply.Command == protocol.CmdResetComplete && reply.ID == barrier.ID {
				break
			}
		}

		elapsed := time.Since(start)
		fmt.Printf("sent %d switch events in %s (%.0f msg/s)\n",
			benchCount, elapsed.Round(time.Millisecond), float64(benchCount)/elapsed.Seconds())
	},
}

func init() {
	registerTargetFlags(BenchCmd)
	BenchCmd.Flags().Float64Var(&benchRate, "rate", 1000, "Messages per second")
	BenchCmd.Flags().IntVar(&benchCount, "count", 1000, "Number of switch events to send")
	BenchCmd.Flags().StringVar(&benchSwitch, "switch", "s_bench", "Switch name to report")
}
