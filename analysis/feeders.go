package analysis

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/pulsenet/circuit"
	"github.com/sarchlab/pulsenet/pulse"
)

// ErrNoFeederPattern is returned when a sink is not driven by the hub layout
// SuggestFeeders looks for.
var ErrNoFeederPattern = errors.New("analysis: sink is not fed by a conjunction hub")

// SuggestFeeders looks for the usual layout in front of sink: one
// conjunction hub feeding the sink, and in front of the hub one single-input
// conjunction per sub-circuit. It returns the edge into each of those
// inverters, which carries a low pulse once per sub-circuit period.
//
// The result is only a suggestion. Whether the sub-circuits are independent
// and periodic from the first press is not checked.
func SuggestFeeders(g *circuit.Graph, sink string) ([]pulse.Edge, error) {
	in := g.Inputs(sink)
	if len(in) != 1 {
		return nil, errors.Wrapf(ErrNoFeederPattern, "%q has %d inputs", sink, len(in))
	}

	hub, err := conjunctionNamed(g, in[0])
	if err != nil {
		return nil, err
	}

	var edges []pulse.Edge

	for _, name := range hub.Inputs() {
		inverter, err := conjunctionNamed(g, name)
		if err != nil {
			return nil, err
		}

		invIn := inverter.Inputs()
		if len(invIn) != 1 {
			return nil, errors.Wrapf(ErrNoFeederPattern,
				"conjunction %q has %d inputs", name, len(invIn))
		}

		edges = append(edges, pulse.Edge{From: invIn[0], To: name})
	}

	if len(edges) == 0 {
		return nil, errors.Wrapf(ErrNoFeederPattern, "hub %q has no inputs", in[0])
	}

	return edges, nil
}

func conjunctionNamed(g *circuit.Graph, name string) (*circuit.Conjunction, error) {
	m, ok := g.Module(name)
	if !ok {
		return nil, errors.Wrapf(ErrNoFeederPattern, "%q is a sink", name)
	}

	c, ok := m.Kind.(*circuit.Conjunction)
	if !ok {
		return nil, errors.Wrapf(ErrNoFeederPattern, "%q is a %s", name, m.Kind.Marker())
	}

	return c, nil
}
