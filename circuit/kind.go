package circuit

import (
	"sort"

	"github.com/pkg/errors"
)

// Level is the value carried by a pulse.
type Level bool

const (
	// Low is the low pulse level.
	Low Level = false

	// High is the high pulse level.
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}

	return "low"
}

// A Kind is the behavior of a module. The set of kinds is closed: Broadcast,
// FlipFlop and Conjunction are the only implementations.
type Kind interface {
	// Marker returns the netlist marker that declares this kind.
	Marker() Marker

	clone() Kind
	reset()
}

// Broadcast forwards every pulse it receives unchanged.
type Broadcast struct{}

// Marker returns MarkerNone.
func (*Broadcast) Marker() Marker { return MarkerNone }

func (*Broadcast) clone() Kind { return &Broadcast{} }

func (*Broadcast) reset() {}

// FlipFlop is a two-state module that toggles on every low pulse.
type FlipFlop struct {
	On bool
}

// Marker returns MarkerFlipFlop.
func (*FlipFlop) Marker() Marker { return MarkerFlipFlop }

// Toggle flips the state and returns the level the flip-flop emits.
func (f *FlipFlop) Toggle() Level {
	f.On = !f.On
	return Level(f.On)
}

func (f *FlipFlop) clone() Kind { return &FlipFlop{On: f.On} }

func (f *FlipFlop) reset() { f.On = false }

// Conjunction remembers the last level received from each of its inputs.
//
// The input set is fixed when the graph is built and never changes.
type Conjunction struct {
	remembered map[string]Level
	inputs     []string
}

// NewConjunction creates a conjunction that remembers a low level for each of
// the given inputs.
func NewConjunction(inputs ...string) *Conjunction {
	c := &Conjunction{remembered: make(map[string]Level, len(inputs))}

	for _, in := range inputs {
		if _, dup := c.remembered[in]; dup {
			continue
		}

		c.remembered[in] = Low
		c.inputs = append(c.inputs, in)
	}

	sort.Strings(c.inputs)

	return c
}

// Marker returns MarkerConjunction.
func (*Conjunction) Marker() Marker { return MarkerConjunction }

// Remember records the level last received from source.
func (c *Conjunction) Remember(source string, level Level) error {
	if _, ok := c.remembered[source]; !ok {
		return errors.Wrapf(ErrUnknownInput, "source %q", source)
	}

	c.remembered[source] = level

	return nil
}

// Output is low when every remembered level is high and high otherwise. A
// conjunction without inputs always outputs low.
func (c *Conjunction) Output() Level {
	for _, l := range c.remembered {
		if l == Low {
			return High
		}
	}

	return Low
}

// Remembered returns the level remembered for source.
func (c *Conjunction) Remembered(source string) (level Level, ok bool) {
	level, ok = c.remembered[source]
	return level, ok
}

// Inputs returns the sorted names of the modules feeding the conjunction.
func (c *Conjunction) Inputs() []string {
	out := make([]string, len(c.inputs))
	copy(out, c.inputs)

	return out
}

func (c *Conjunction) clone() Kind {
	n := &Conjunction{
		remembered: make(map[string]Level, len(c.remembered)),
		inputs:     c.Inputs(),
	}

	for k, v := range c.remembered {
		n.remembered[k] = v
	}

	return n
}

func (c *Conjunction) reset() {
	for k := range c.remembered {
		c.remembered[k] = Low
	}
}
