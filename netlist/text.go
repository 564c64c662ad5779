// Package netlist reads circuit declarations from text and HCL files.
package netlist

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/pulsenet/circuit"
)

// ErrSyntax is returned for netlists that cannot be parsed.
var ErrSyntax = errors.New("netlist: syntax error")

const arrow = "->"

// ParseText reads one declaration per line in the form
//
//	broadcaster -> a, b
//	%a -> inv
//	&inv -> a
//
// Blank lines and lines starting with # are skipped.
func ParseText(r io.Reader) ([]circuit.Declaration, error) {
	var decls []circuit.Declaration

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		d, err := parseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}

		decls = append(decls, d)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading netlist")
	}

	return decls, nil
}

func parseLine(line string) (circuit.Declaration, error) {
	var d circuit.Declaration

	lhs, rhs, ok := strings.Cut(line, arrow)
	if !ok {
		return d, errors.Wrapf(ErrSyntax, "missing %q in %q", arrow, line)
	}

	lhs = strings.TrimSpace(lhs)

	switch {
	case strings.HasPrefix(lhs, string(circuit.MarkerFlipFlop)):
		d.Marker = circuit.MarkerFlipFlop
		lhs = lhs[1:]
	case strings.HasPrefix(lhs, string(circuit.MarkerConjunction)):
		d.Marker = circuit.MarkerConjunction
		lhs = lhs[1:]
	}

	if !validName(lhs) {
		return d, errors.Wrapf(ErrSyntax, "bad module name %q", lhs)
	}

	d.Name = lhs

	rhs = strings.TrimSpace(rhs)
	if rhs == "" {
		return d, nil
	}

	for _, dst := range strings.Split(rhs, ",") {
		dst = strings.TrimSpace(dst)
		if !validName(dst) {
			return d, errors.Wrapf(ErrSyntax, "bad destination %q of %q", dst, d.Name)
		}

		d.Destinations = append(d.Destinations, dst)
	}

	return d, nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}

	return !strings.ContainsAny(s, " \t,%&->#")
}
