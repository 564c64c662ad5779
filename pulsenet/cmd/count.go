package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/pulsenet/analysis"
)

func newCountCommand(s *session) *cobra.Command {
	var presses uint64

	countCmd := &cobra.Command{
		Use:   "count <netlist>",
		Short: "Multiply the low and high pulses sent over a number of presses.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := s.loadGraph(args[0])
			if err != nil {
				return err
			}

			counts, err := s.analyzer().Tally(g, presses)
			if err != nil {
				return err
			}

			s.logger.Info("pulses counted",
				"presses", presses, "low", counts.Low, "high", counts.High)

			product, err := analysis.Product(counts)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), product)

			return err
		},
	}

	countCmd.Flags().Uint64VarP(&presses, "presses", "n", 1000, "number of button presses")

	return countCmd
}
