package pulse

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/sarchlab/pulsenet/circuit"
)

// DefaultPulseLimit is the default number of pulses a single press may
// deliver before it is considered runaway.
const DefaultPulseLimit = 1 << 24

var (
	// ErrUnknownEntry is returned when the entry module cannot take the
	// button pulse.
	ErrUnknownEntry = errors.New("pulse: invalid entry module")

	// ErrPulseLimit is returned when a press delivers more pulses than the
	// scheduler allows.
	ErrPulseLimit = errors.New("pulse: pulse limit exceeded")
)

// Builder can build Schedulers.
type Builder struct {
	entry      string
	pulseLimit uint64
	hooks      []Hook
}

// MakeBuilder creates a Builder that presses the broadcaster.
func MakeBuilder() Builder {
	return Builder{
		entry:      circuit.BroadcasterName,
		pulseLimit: DefaultPulseLimit,
	}
}

// WithEntry sets the module that receives the button pulse.
func (b Builder) WithEntry(name string) Builder {
	b.entry = name
	return b
}

// WithPulseLimit sets the maximum number of pulses per press. Zero disables
// the limit.
func (b Builder) WithPulseLimit(n uint64) Builder {
	b.pulseLimit = n
	return b
}

// WithHook attaches a hook to every scheduler built.
func (b Builder) WithHook(h Hook) Builder {
	hooks := make([]Hook, len(b.hooks), len(b.hooks)+1)
	copy(hooks, b.hooks)
	b.hooks = append(hooks, h)

	return b
}

// Build creates a Scheduler that presses the button of g. The scheduler
// mutates the state of g.
func (b Builder) Build(g *circuit.Graph) (*Scheduler, error) {
	m, ok := g.Module(b.entry)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEntry, "no module %q", b.entry)
	}

	if _, isConj := m.Kind.(*circuit.Conjunction); isConj {
		return nil, errors.Wrapf(ErrUnknownEntry,
			"conjunction %q cannot receive the button pulse", b.entry)
	}

	s := &Scheduler{
		HookableBase: NewHookableBase(),
		graph:        g,
		entry:        b.entry,
		pulseLimit:   b.pulseLimit,
		queue:        newPulseQueue(),
	}

	for _, h := range b.hooks {
		s.AcceptHook(h)
	}

	return s, nil
}

// A Scheduler processes button presses one at a time. Module state persists
// from one press to the next.
type Scheduler struct {
	*HookableBase

	graph      *circuit.Graph
	entry      string
	pulseLimit uint64
	queue      *pulseQueue
	nextSeq    uint64

	presses   atomic.Uint64
	delivered atomic.Uint64

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// Graph returns the circuit the scheduler drives.
func (s *Scheduler) Graph() *circuit.Graph {
	return s.graph
}

// Entry returns the module that receives the button pulse.
func (s *Scheduler) Entry() string {
	return s.entry
}

// Presses returns the number of presses started so far.
func (s *Scheduler) Presses() uint64 {
	return s.presses.Load()
}

// Delivered returns the number of pulses delivered over all presses.
func (s *Scheduler) Delivered() uint64 {
	return s.delivered.Load()
}

// ProcessPress sends one low pulse from the button to the entry module and
// delivers pulses until the queue is empty. If watch is not nil, the result
// reports whether the watched edge carried a low pulse; with
// watch.StopOnFire the press ends at that pulse.
func (s *Scheduler) ProcessPress(watch *Watch) (Result, error) {
	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	press := s.presses.Add(1)
	res := Result{Press: press}

	s.InvokeHook(HookCtx{Domain: s, Pos: HookPosPressStart, Item: press})

	s.nextSeq = 0
	s.push(Pulse{Source: Button, Level: circuit.Low, Destination: s.entry}, press, 0)

	for s.queue.Len() > 0 {
		d := s.queue.Pop()

		s.pauseLock.Lock()
		stop, err := s.deliver(d, watch, &res)
		s.pauseLock.Unlock()

		if err != nil {
			s.queue.Clear()
			res.Outcome = Aborted
			s.endPress(res)

			return res, errors.Wrapf(err, "press %d", press)
		}

		if stop {
			s.queue.Clear()
			res.Outcome = Interrupted
			s.endPress(res)

			return res, nil
		}
	}

	res.Outcome = Drained
	s.endPress(res)

	return res, nil
}

func (s *Scheduler) endPress(res Result) {
	s.InvokeHook(HookCtx{
		Domain: s,
		Pos:    HookPosPressEnd,
		Item:   res.Press,
		Detail: res,
	})
}

func (s *Scheduler) push(p Pulse, press, wave uint64) {
	s.nextSeq++
	s.queue.Push(&Delivery{Pulse: p, Press: press, Wave: wave, Seq: s.nextSeq})
}

func (s *Scheduler) deliver(d *Delivery, watch *Watch, res *Result) (bool, error) {
	res.counts.count(d.Level)
	s.delivered.Add(1)

	if s.pulseLimit > 0 && res.counts.Total() > s.pulseLimit {
		return false, errors.Wrapf(ErrPulseLimit, "more than %d pulses", s.pulseLimit)
	}

	hookCtx := HookCtx{Domain: s, Pos: HookPosBeforePulse, Item: *d}
	s.InvokeHook(hookCtx)

	if watch != nil && watch.matches(d.Pulse) {
		if !res.Fired {
			res.Fired = true
			res.FiredAt = d.Seq
		}

		if watch.StopOnFire {
			return true, nil
		}
	}

	if err := s.react(d); err != nil {
		return false, err
	}

	hookCtx.Pos = HookPosAfterPulse
	s.InvokeHook(hookCtx)

	return false, nil
}

func (s *Scheduler) react(d *Delivery) error {
	m, ok := s.graph.Module(d.Destination)
	if !ok {
		return nil
	}

	level := d.Level

	switch k := m.Kind.(type) {
	case *circuit.Broadcast:
	case *circuit.FlipFlop:
		if level == circuit.High {
			return nil
		}

		level = k.Toggle()
	case *circuit.Conjunction:
		if err := k.Remember(d.Source, level); err != nil {
			return errors.Wrapf(err, "conjunction %q", m.Name)
		}

		level = k.Output()
	default:
		panic(fmt.Sprintf("pulse: module %q has unknown kind %T", m.Name, m.Kind))
	}

	for _, dst := range m.Destinations {
		s.push(Pulse{Source: m.Name, Level: level, Destination: dst}, d.Press, d.Wave+1)
	}

	return nil
}

// Pause blocks pulse delivery until Continue is called.
func (s *Scheduler) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.pauseLock.Lock()
	s.isPaused = true
}

// Continue resumes pulse delivery after a Pause.
func (s *Scheduler) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.pauseLock.Unlock()
	s.isPaused = false
}

// IsPaused tells whether the scheduler is paused.
func (s *Scheduler) IsPaused() bool {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	return s.isPaused
}
