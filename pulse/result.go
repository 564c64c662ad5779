package pulse

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/pulsenet/circuit"
)

// ErrPartialCounts is returned when totals are requested from a press that
// stopped before its queue drained.
var ErrPartialCounts = errors.New("pulse: press did not drain, counts are partial")

// Counts holds the number of low and high pulses delivered.
type Counts struct {
	Low  uint64
	High uint64
}

// Add returns the componentwise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{Low: c.Low + o.Low, High: c.High + o.High}
}

// Total returns the number of pulses of both levels.
func (c Counts) Total() uint64 {
	return c.Low + c.High
}

func (c *Counts) count(l circuit.Level) {
	if l == circuit.High {
		c.High++
		return
	}

	c.Low++
}

// Outcome tells how a press ended.
type Outcome int

const (
	// Pending is the outcome of a press that has not ended.
	Pending Outcome = iota

	// Drained means every pulse of the press was delivered.
	Drained

	// Interrupted means the press stopped when the watched edge fired.
	Interrupted

	// Aborted means the press stopped on an error.
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Drained:
		return "drained"
	case Interrupted:
		return "interrupted"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result describes one press.
type Result struct {
	Outcome Outcome

	// Press is the 1-based index of the press on its scheduler.
	Press uint64

	// Fired reports whether the watched edge carried a low pulse.
	Fired bool

	// FiredAt is the Seq of the first matching pulse, or 0.
	FiredAt uint64

	counts Counts
}

// Totals returns the pulse counts of a drained press. For any other outcome
// it returns the partial counts together with ErrPartialCounts.
func (r Result) Totals() (Counts, error) {
	if r.Outcome != Drained {
		return r.counts, ErrPartialCounts
	}

	return r.counts, nil
}

// Partial returns the pulses counted so far, whether or not the press
// drained.
func (r Result) Partial() Counts {
	return r.counts
}
