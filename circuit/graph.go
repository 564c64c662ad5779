// Package circuit describes a network of pulse modules and their state.
package circuit

import (
	"sort"

	"github.com/pkg/errors"
)

// BroadcasterName is the module that receives the button pulse.
const BroadcasterName = "broadcaster"

// Marker is the one-character prefix that declares the kind of a module.
type Marker rune

// Netlist markers.
const (
	MarkerNone        Marker = 0
	MarkerFlipFlop    Marker = '%'
	MarkerConjunction Marker = '&'
)

func (m Marker) String() string {
	switch m {
	case MarkerNone:
		return "broadcast"
	case MarkerFlipFlop:
		return "flip-flop"
	case MarkerConjunction:
		return "conjunction"
	default:
		return "marker(" + string(rune(m)) + ")"
	}
}

var (
	// ErrBuild is the cause of every error returned by Build.
	ErrBuild = errors.New("circuit: invalid netlist")

	// ErrUnknownInput is returned when a conjunction receives a pulse from a
	// module that does not feed it.
	ErrUnknownInput = errors.New("circuit: pulse from unknown input")
)

// A Declaration declares one module of a netlist.
type Declaration struct {
	Marker       Marker
	Name         string
	Destinations []string
}

// A Module is a named node of the graph.
type Module struct {
	Name         string
	Kind         Kind
	Destinations []string
}

// Graph maps module names to modules. Destination names that are not modules
// are sinks.
type Graph struct {
	modules map[string]*Module
	order   []string
	inputs  map[string][]string
}

// Build creates a graph from its declarations. Conjunctions are given one
// remembered entry for each module with an edge into them.
func Build(decls []Declaration) (*Graph, error) {
	g := &Graph{
		modules: make(map[string]*Module, len(decls)),
		inputs:  make(map[string][]string),
	}

	for i, d := range decls {
		if err := validateDeclaration(d); err != nil {
			return nil, errors.Wrapf(err, "declaration %d", i)
		}

		if _, dup := g.modules[d.Name]; dup {
			return nil, errors.Wrapf(ErrBuild, "duplicate module %q", d.Name)
		}

		dests := make([]string, len(d.Destinations))
		copy(dests, d.Destinations)

		g.modules[d.Name] = &Module{Name: d.Name, Destinations: dests}
		g.order = append(g.order, d.Name)

		for _, dst := range dests {
			g.inputs[dst] = appendUnique(g.inputs[dst], d.Name)
		}
	}

	if _, ok := g.modules[BroadcasterName]; !ok {
		return nil, errors.Wrapf(ErrBuild, "no %q module", BroadcasterName)
	}

	for _, d := range decls {
		if d.Name == BroadcasterName && d.Marker != MarkerNone {
			return nil, errors.Wrapf(ErrBuild,
				"%q must not be a %s", BroadcasterName, d.Marker)
		}

		g.modules[d.Name].Kind = newKind(d.Marker, g.inputs[d.Name])
	}

	for name := range g.inputs {
		sort.Strings(g.inputs[name])
	}

	return g, nil
}

func validateDeclaration(d Declaration) error {
	if d.Name == "" {
		return errors.Wrap(ErrBuild, "empty module name")
	}

	switch d.Marker {
	case MarkerNone, MarkerFlipFlop, MarkerConjunction:
	default:
		return errors.Wrapf(ErrBuild, "module %q has unknown %s", d.Name, d.Marker)
	}

	for _, dst := range d.Destinations {
		if dst == "" {
			return errors.Wrapf(ErrBuild, "module %q has an empty destination", d.Name)
		}
	}

	return nil
}

func newKind(m Marker, inputs []string) Kind {
	switch m {
	case MarkerFlipFlop:
		return &FlipFlop{}
	case MarkerConjunction:
		return NewConjunction(inputs...)
	default:
		return &Broadcast{}
	}
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}

	return append(list, s)
}

// Module returns the module with the given name. It returns false for sinks
// and unknown names.
func (g *Graph) Module(name string) (*Module, bool) {
	m, ok := g.modules[name]
	return m, ok
}

// Names returns the module names in declaration order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)

	return out
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	return len(g.order)
}

// Inputs returns the sorted names of the modules with an edge into name.
func (g *Graph) Inputs(name string) []string {
	in := g.inputs[name]
	out := make([]string, len(in))
	copy(out, in)

	return out
}

// Sinks returns the sorted destination names that are not modules.
func (g *Graph) Sinks() []string {
	var sinks []string

	for name := range g.inputs {
		if _, ok := g.modules[name]; !ok {
			sinks = append(sinks, name)
		}
	}

	sort.Strings(sinks)

	return sinks
}

// Clone returns a deep copy of the graph. Pulses processed on the copy never
// affect the original.
func (g *Graph) Clone() *Graph {
	n := &Graph{
		modules: make(map[string]*Module, len(g.modules)),
		order:   g.Names(),
		inputs:  make(map[string][]string, len(g.inputs)),
	}

	for name, m := range g.modules {
		dests := make([]string, len(m.Destinations))
		copy(dests, m.Destinations)

		n.modules[name] = &Module{
			Name:         m.Name,
			Kind:         m.Kind.clone(),
			Destinations: dests,
		}
	}

	for name := range g.inputs {
		n.inputs[name] = g.Inputs(name)
	}

	return n
}

// Reset puts every module back into its initial state.
func (g *Graph) Reset() {
	for _, m := range g.modules {
		m.Kind.reset()
	}
}
