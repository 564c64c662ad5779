package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pulsenet/pulse"
)

func newTraceCommand(s *session) *cobra.Command {
	var presses uint64

	traceCmd := &cobra.Command{
		Use:   "trace <netlist>",
		Short: "Print every pulse of a number of presses.",
		Long: `trace prints one line per pulse as press.wave source -level-> destination, ` +
			`in the order the pulses are delivered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := s.loadGraph(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			logger := pulse.NewPulseLogger(log.New(out, "", 0)).WithPressIndex()

			counts, err := s.analyzer(logger).Tally(g, presses)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(out, "low %d, high %d\n", counts.Low, counts.High)

			return err
		},
	}

	traceCmd.Flags().Uint64VarP(&presses, "presses", "n", 1, "number of button presses")

	return traceCmd
}
