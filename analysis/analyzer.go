// Package analysis answers questions about circuits by pressing their button
// many times.
package analysis

import (
	"context"
	"log/slog"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/sarchlab/pulsenet/circuit"
	"github.com/sarchlab/pulsenet/monitoring"
	"github.com/sarchlab/pulsenet/pulse"
)

// DefaultMaxPresses caps the presses of a single period search.
const DefaultMaxPresses = 1 << 20

var (
	// ErrNoFeeders is returned when a combined period is requested for an
	// empty set of edges.
	ErrNoFeeders = errors.New("analysis: no feeder edges")

	// ErrPeriodNotFound is returned when a feeder does not fire low within
	// the press budget.
	ErrPeriodNotFound = errors.New("analysis: feeder never fired low")

	// ErrOverflow is returned when a result does not fit in 64 bits.
	ErrOverflow = errors.New("analysis: result overflows uint64")
)

// Builder can build Analyzers.
type Builder struct {
	schedulers pulse.Builder
	maxPresses uint64
	monitor    *monitoring.Monitor
	hooks      []pulse.Hook
	logger     *slog.Logger
}

// MakeBuilder creates a Builder with default schedulers and press budget.
func MakeBuilder() Builder {
	return Builder{
		schedulers: pulse.MakeBuilder(),
		maxPresses: DefaultMaxPresses,
	}
}

// WithSchedulerBuilder sets how schedulers are built for every run.
func (b Builder) WithSchedulerBuilder(sb pulse.Builder) Builder {
	b.schedulers = sb
	return b
}

// WithMaxPresses caps the presses of a period search. Zero removes the cap.
func (b Builder) WithMaxPresses(n uint64) Builder {
	b.maxPresses = n
	return b
}

// WithMonitor registers every period search with a monitor.
func (b Builder) WithMonitor(m *monitoring.Monitor) Builder {
	b.monitor = m
	return b
}

// WithHook attaches a hook to every scheduler the Analyzer builds.
func (b Builder) WithHook(h pulse.Hook) Builder {
	hooks := make([]pulse.Hook, len(b.hooks), len(b.hooks)+1)
	copy(hooks, b.hooks)
	b.hooks = append(hooks, h)

	return b
}

// WithLogger sets the logger used to report search results.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

// Build creates the Analyzer.
func (b Builder) Build() *Analyzer {
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	schedulers := b.schedulers
	for _, h := range b.hooks {
		schedulers = schedulers.WithHook(h)
	}

	return &Analyzer{
		schedulers: schedulers,
		maxPresses: b.maxPresses,
		monitor:    b.monitor,
		logger:     logger,
	}
}

// An Analyzer runs pulse counts and period searches.
type Analyzer struct {
	schedulers pulse.Builder
	maxPresses uint64
	monitor    *monitoring.Monitor
	logger     *slog.Logger
}

// Tally presses the button of g the given number of times and sums the
// pulses of every press. State carries over between presses and into later
// calls on the same graph.
func (a *Analyzer) Tally(g *circuit.Graph, presses uint64) (pulse.Counts, error) {
	var total pulse.Counts

	s, err := a.schedulers.Build(g)
	if err != nil {
		return total, err
	}

	if a.monitor != nil {
		a.monitor.RegisterScheduler("tally", s)
	}

	for i := uint64(0); i < presses; i++ {
		res, err := s.ProcessPress(nil)
		if err != nil {
			return total, err
		}

		counts, err := res.Totals()
		if err != nil {
			return total, err
		}

		total = total.Add(counts)
	}

	return total, nil
}

// CountPulses returns the number of low pulses times the number of high
// pulses sent during the given number of presses.
func (a *Analyzer) CountPulses(g *circuit.Graph, presses uint64) (uint64, error) {
	counts, err := a.Tally(g, presses)
	if err != nil {
		return 0, err
	}

	a.logger.Debug("pulses counted",
		"presses", presses, "low", counts.Low, "high", counts.High)

	return Product(counts)
}

// Product returns the number of low pulses times the number of high pulses.
func Product(c pulse.Counts) (uint64, error) {
	hi, lo := bits.Mul64(c.Low, c.High)
	if hi != 0 {
		return 0, errors.Wrapf(ErrOverflow, "%d low x %d high", c.Low, c.High)
	}

	return lo, nil
}

// FindPeriod presses the button of g until edge carries a low pulse and
// returns the number of presses. The search starts from the current state of
// g, so g must be fresh and must not be shared with other searches.
func (a *Analyzer) FindPeriod(
	ctx context.Context,
	g *circuit.Graph,
	edge pulse.Edge,
) (uint64, error) {
	s, err := a.schedulers.Build(g)
	if err != nil {
		return 0, err
	}

	var bar *monitoring.ProgressBar
	if a.monitor != nil {
		a.monitor.RegisterScheduler(edge.String(), s)
		bar = a.monitor.CreateProgressBar("period "+edge.String(), a.maxPresses)
		defer a.monitor.CompleteProgressBar(bar)
	}

	watch := &pulse.Watch{Edge: edge, StopOnFire: true}

	for press := uint64(1); a.maxPresses == 0 || press <= a.maxPresses; press++ {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrapf(err, "searching %s at press %d", edge, press)
		}

		res, err := s.ProcessPress(watch)
		if err != nil {
			return 0, errors.Wrapf(err, "searching %s", edge)
		}

		bar.IncrementFinished(1)

		if res.Fired {
			a.logger.Debug("feeder period found", "edge", edge.String(), "presses", press)
			return press, nil
		}
	}

	return 0, errors.Wrapf(ErrPeriodNotFound, "%s within %d presses", edge, a.maxPresses)
}

// FindCombinedPeriod finds the period of every feeder edge on its own copy of
// g and combines the periods with their least common multiple. Each feeder
// must fire low periodically from the first press on; this is not checked.
func (a *Analyzer) FindCombinedPeriod(
	ctx context.Context,
	g *circuit.Graph,
	edges []pulse.Edge,
) (uint64, error) {
	if len(edges) == 0 {
		return 0, ErrNoFeeders
	}

	combined := uint64(1)

	for _, e := range edges {
		period, err := a.FindPeriod(ctx, g.Clone(), e)
		if err != nil {
			return 0, err
		}

		combined, err = LCM(combined, period)
		if err != nil {
			return 0, err
		}
	}

	a.logger.Info("combined period found", "feeders", len(edges), "presses", combined)

	return combined, nil
}

// CountPulses is Analyzer.CountPulses with default settings.
func CountPulses(g *circuit.Graph, presses uint64) (uint64, error) {
	return MakeBuilder().Build().CountPulses(g, presses)
}

// FindCombinedPeriod is Analyzer.FindCombinedPeriod with default settings.
func FindCombinedPeriod(
	ctx context.Context,
	g *circuit.Graph,
	edges []pulse.Edge,
) (uint64, error) {
	return MakeBuilder().Build().FindCombinedPeriod(ctx, g, edges)
}
