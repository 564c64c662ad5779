// Command pulsenet counts the pulses of a circuit netlist and finds the
// press at which a sink first receives a low pulse.
package main

import "github.com/sarchlab/pulsenet/pulsenet/cmd"

func main() {
	cmd.Execute()
}
