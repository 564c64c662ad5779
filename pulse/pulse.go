// Package pulse runs button presses through a circuit.
//
// A Scheduler delivers pulses in strict arrival order across the whole
// network: every module reacts to the pulses of one wave before any module
// sees a pulse caused by a later wave. This order is part of the observable
// behavior of a circuit with feedback loops.
package pulse

import (
	"fmt"

	"github.com/sarchlab/pulsenet/circuit"
)

// Button is the source name of the pulse injected by a button press.
const Button = ""

// A Pulse is one low or high signal traveling along one edge.
type Pulse struct {
	Source      string
	Level       circuit.Level
	Destination string
}

func (p Pulse) String() string {
	src := p.Source
	if src == Button {
		src = "button"
	}

	return fmt.Sprintf("%s -%s-> %s", src, p.Level, p.Destination)
}

// An Edge connects two modules.
type Edge struct {
	From string
	To   string
}

func (e Edge) String() string {
	return e.From + "->" + e.To
}

// A Delivery is a pulse as seen by the scheduler.
type Delivery struct {
	Pulse

	// Press is the 1-based index of the press that caused the pulse.
	Press uint64

	// Wave is the hop distance from the button. The button pulse is wave 0.
	Wave uint64

	// Seq is the 1-based position of the pulse within its press.
	Seq uint64
}

// A Watch asks the scheduler to look for a low pulse along an edge.
type Watch struct {
	Edge Edge

	// StopOnFire ends the press as soon as the edge carries a low pulse. The
	// counts of such a press are partial.
	StopOnFire bool
}

func (w *Watch) matches(p Pulse) bool {
	return p.Level == circuit.Low &&
		p.Source == w.Edge.From &&
		p.Destination == w.Edge.To
}
