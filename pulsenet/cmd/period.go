package cmd

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/pulsenet/analysis"
	"github.com/sarchlab/pulsenet/pulse"
)

func newPeriodCommand(s *session) *cobra.Command {
	var (
		feeders   []string
		feedersOf string
	)

	periodCmd := &cobra.Command{
		Use:   "period <netlist>",
		Short: "Find the press at which every feeder fires low together.",
		Long: `period finds, for every feeder edge, the first press at which it ` +
			`carries a low pulse, and prints the least common multiple of those ` +
			`presses. Each feeder is searched on a fresh copy of the circuit. ` +
			`The result is only meaningful if the feeders drive independent ` +
			`sub-circuits that fire periodically from the first press.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := s.loadGraph(args[0])
			if err != nil {
				return err
			}

			edges, err := parseEdges(feeders)
			if err != nil {
				return err
			}

			if feedersOf != "" {
				suggested, err := analysis.SuggestFeeders(g, feedersOf)
				if err != nil {
					return err
				}

				s.logger.Info("feeders found", "sink", feedersOf, "edges", fmt.Sprint(suggested))
				edges = append(edges, suggested...)
			}

			if len(edges) == 0 {
				return errors.New("give at least one --feeder or --feeders-of")
			}

			period, err := s.analyzer().FindCombinedPeriod(cmd.Context(), g, edges)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), period)

			return err
		},
	}

	periodCmd.Flags().StringSliceVar(&feeders, "feeder", nil,
		"feeder edge as from:to, may be repeated")
	periodCmd.Flags().StringVar(&feedersOf, "feeders-of", "",
		"find the feeders of this sink from the circuit layout")

	return periodCmd
}

func parseEdges(feeders []string) ([]pulse.Edge, error) {
	edges := make([]pulse.Edge, 0, len(feeders))

	for _, f := range feeders {
		from, to, ok := strings.Cut(f, ":")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)

		if !ok || from == "" || to == "" {
			return nil, errors.Errorf("bad feeder %q, want from:to", f)
		}

		edges = append(edges, pulse.Edge{From: from, To: to})
	}

	return edges, nil
}
