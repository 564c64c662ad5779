package netlist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/pulsenet/circuit"
)

// Load reads the netlist at path. Files ending in .hcl are parsed as HCL and
// everything else as the line format.
func Load(path string) ([]circuit.Declaration, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading netlist %s", path)
	}

	var decls []circuit.Declaration

	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		decls, err = ParseHCL(src, path)
	} else {
		decls, err = ParseText(bytes.NewReader(src))
	}

	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	return decls, nil
}

// LoadGraph reads the netlist at path and builds its graph.
func LoadGraph(path string) (*circuit.Graph, error) {
	decls, err := Load(path)
	if err != nil {
		return nil, err
	}

	g, err := circuit.Build(decls)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s", path)
	}

	return g, nil
}
