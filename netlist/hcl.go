package netlist

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"

	"github.com/sarchlab/pulsenet/circuit"
)

var blockMarkers = map[string]circuit.Marker{
	"broadcast":   circuit.MarkerNone,
	"flipflop":    circuit.MarkerFlipFlop,
	"conjunction": circuit.MarkerConjunction,
}

var netlistSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "broadcast", LabelNames: []string{"name"}},
		{Type: "flipflop", LabelNames: []string{"name"}},
		{Type: "conjunction", LabelNames: []string{"name"}},
	},
}

type moduleBody struct {
	Destinations []string `hcl:"destinations,optional"`
}

// ParseHCL reads a netlist written as HCL blocks:
//
//	broadcast "broadcaster" {
//	  destinations = ["a"]
//	}
//
//	flipflop "a" {
//	  destinations = ["inv", "con"]
//	}
//
// Declarations keep the order of the blocks in the source.
func ParseHCL(src []byte, filename string) ([]circuit.Declaration, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrap(ErrSyntax, diags.Error())
	}

	content, diags := file.Body.Content(netlistSchema)
	if diags.HasErrors() {
		return nil, errors.Wrap(ErrSyntax, diags.Error())
	}

	decls := make([]circuit.Declaration, 0, len(content.Blocks))

	for _, block := range content.Blocks {
		var body moduleBody

		diags := gohcl.DecodeBody(block.Body, nil, &body)
		if diags.HasErrors() {
			return nil, errors.Wrap(ErrSyntax, diags.Error())
		}

		name := block.Labels[0]
		if !validName(name) {
			return nil, errors.Wrapf(ErrSyntax, "%s: bad module name %q",
				block.DefRange, name)
		}

		for _, dst := range body.Destinations {
			if !validName(dst) {
				return nil, errors.Wrapf(ErrSyntax, "%s: bad destination %q of %q",
					block.DefRange, dst, name)
			}
		}

		decls = append(decls, circuit.Declaration{
			Marker:       blockMarkers[block.Type],
			Name:         name,
			Destinations: body.Destinations,
		})
	}

	return decls, nil
}
