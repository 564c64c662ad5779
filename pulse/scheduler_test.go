package pulse

import (
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/pulsenet/circuit"
)

func flipFlop(name string, dests ...string) circuit.Declaration {
	return circuit.Declaration{Marker: circuit.MarkerFlipFlop, Name: name, Destinations: dests}
}

func conjunction(name string, dests ...string) circuit.Declaration {
	return circuit.Declaration{Marker: circuit.MarkerConjunction, Name: name, Destinations: dests}
}

func broadcaster(dests ...string) circuit.Declaration {
	return circuit.Declaration{Name: circuit.BroadcasterName, Destinations: dests}
}

func mustBuild(decls ...circuit.Declaration) *circuit.Graph {
	g, err := circuit.Build(decls)
	Expect(err).NotTo(HaveOccurred())

	return g
}

func firstSample() *circuit.Graph {
	return mustBuild(
		broadcaster("a", "b", "c"),
		flipFlop("a", "b"),
		flipFlop("b", "c"),
		flipFlop("c", "inv"),
		conjunction("inv", "a"),
	)
}

func secondSample() *circuit.Graph {
	return mustBuild(
		broadcaster("a"),
		flipFlop("a", "inv", "con"),
		conjunction("inv", "b"),
		flipFlop("b", "con"),
		conjunction("con", "output"),
	)
}

type deliveryRecorder struct {
	deliveries []Delivery
}

func (r *deliveryRecorder) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforePulse {
		return
	}

	r.deliveries = append(r.deliveries, ctx.Item.(Delivery))
}

func (r *deliveryRecorder) lines() []string {
	out := make([]string, 0, len(r.deliveries))
	for _, d := range r.deliveries {
		out = append(out, d.Pulse.String())
	}

	return out
}

var _ = ginkgo.Describe("Scheduler", func() {
	var (
		mockCtrl *gomock.Controller
		recorder *deliveryRecorder
	)

	ginkgo.BeforeEach(func() {
		mockCtrl = gomock.NewController(ginkgo.GinkgoT())
		recorder = &deliveryRecorder{}
	})

	ginkgo.AfterEach(func() {
		mockCtrl.Finish()
	})

	ginkgo.It("should deliver pulses in arrival order", func() {
		s, err := MakeBuilder().WithHook(recorder).Build(firstSample())
		Expect(err).NotTo(HaveOccurred())

		res, err := s.ProcessPress(nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(recorder.lines()).To(Equal([]string{
			"button -low-> broadcaster",
			"broadcaster -low-> a",
			"broadcaster -low-> b",
			"broadcaster -low-> c",
			"a -high-> b",
			"b -high-> c",
			"c -high-> inv",
			"inv -low-> a",
			"a -low-> b",
			"b -low-> c",
			"c -low-> inv",
			"inv -high-> a",
		}))

		waves := make([]uint64, 0, len(recorder.deliveries))
		for i, d := range recorder.deliveries {
			Expect(d.Seq).To(Equal(uint64(i + 1)))
			Expect(d.Press).To(Equal(uint64(1)))
			waves = append(waves, d.Wave)
		}
		Expect(waves).To(Equal([]uint64{0, 1, 1, 1, 2, 2, 2, 3, 4, 5, 6, 7}))

		totals, err := res.Totals()
		Expect(err).NotTo(HaveOccurred())
		Expect(totals).To(Equal(Counts{Low: 8, High: 4}))
		Expect(res.Outcome).To(Equal(Drained))
		Expect(res.Fired).To(BeFalse())
	})

	ginkgo.It("should keep module state across presses", func() {
		g := secondSample()
		s, err := MakeBuilder().Build(g)
		Expect(err).NotTo(HaveOccurred())

		var sum Counts
		for i := 0; i < 4; i++ {
			res, err := s.ProcessPress(nil)
			Expect(err).NotTo(HaveOccurred())

			totals, err := res.Totals()
			Expect(err).NotTo(HaveOccurred())
			sum = sum.Add(totals)
		}

		Expect(sum).To(Equal(Counts{Low: 17, High: 11}))
		Expect(s.Presses()).To(Equal(uint64(4)))
		Expect(s.Delivered()).To(Equal(sum.Total()))

		a, _ := g.Module("a")
		Expect(a.Kind.(*circuit.FlipFlop).On).To(BeFalse())
	})

	ginkgo.It("should ignore high pulses at flip-flops", func() {
		g := mustBuild(
			broadcaster("hi"),
			conjunction("hi", "ff"),
			flipFlop("ff", "out"),
		)
		s, err := MakeBuilder().Build(g)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 3; i++ {
			res, err := s.ProcessPress(nil)
			Expect(err).NotTo(HaveOccurred())

			totals, _ := res.Totals()
			Expect(totals).To(Equal(Counts{Low: 2, High: 1}))
		}

		ff, _ := g.Module("ff")
		Expect(ff.Kind.(*circuit.FlipFlop).On).To(BeFalse())
	})

	ginkgo.It("should report a watched edge without stopping", func() {
		s, err := MakeBuilder().Build(firstSample())
		Expect(err).NotTo(HaveOccurred())

		res, err := s.ProcessPress(&Watch{Edge: Edge{From: "inv", To: "a"}})
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Outcome).To(Equal(Drained))
		Expect(res.Fired).To(BeTrue())
		Expect(res.FiredAt).To(Equal(uint64(8)))

		totals, err := res.Totals()
		Expect(err).NotTo(HaveOccurred())
		Expect(totals).To(Equal(Counts{Low: 8, High: 4}))
	})

	ginkgo.It("should stop when the watched edge fires", func() {
		s, err := MakeBuilder().WithHook(recorder).Build(firstSample())
		Expect(err).NotTo(HaveOccurred())

		res, err := s.ProcessPress(&Watch{
			Edge:       Edge{From: "inv", To: "a"},
			StopOnFire: true,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Outcome).To(Equal(Interrupted))
		Expect(res.Fired).To(BeTrue())
		Expect(res.Partial()).To(Equal(Counts{Low: 5, High: 3}))

		_, err = res.Totals()
		Expect(errors.Is(err, ErrPartialCounts)).To(BeTrue())
		Expect(recorder.deliveries).To(HaveLen(8))

		res, err = s.ProcessPress(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(recorder.deliveries[8].Pulse.String()).
			To(Equal("button -low-> broadcaster"))
		Expect(recorder.deliveries[8].Seq).To(Equal(uint64(1)))
	})

	ginkgo.It("should not match a high pulse on the watched edge", func() {
		s, err := MakeBuilder().Build(firstSample())
		Expect(err).NotTo(HaveOccurred())

		res, err := s.ProcessPress(&Watch{
			Edge:       Edge{From: "a", To: "b"},
			StopOnFire: true,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Fired).To(BeTrue())
		Expect(res.FiredAt).To(Equal(uint64(9)))
	})

	ginkgo.It("should invoke hooks around presses and pulses", func() {
		hook := NewMockHook(mockCtrl)

		var positions []*HookPos
		hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			positions = append(positions, ctx.Pos)
		}).Times(1 + 2*12 + 1)

		s, err := MakeBuilder().WithHook(hook).Build(firstSample())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.NumHooks()).To(Equal(1))

		_, err = s.ProcessPress(nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(positions[0]).To(BeIdenticalTo(HookPosPressStart))
		Expect(positions[1]).To(BeIdenticalTo(HookPosBeforePulse))
		Expect(positions[2]).To(BeIdenticalTo(HookPosAfterPulse))
		Expect(positions[len(positions)-1]).To(BeIdenticalTo(HookPosPressEnd))
	})

	ginkgo.It("should pass the result to press end hooks", func() {
		hook := NewMockHook(mockCtrl)

		var results []Result
		hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			if ctx.Pos == HookPosPressEnd {
				results = append(results, ctx.Detail.(Result))
			}
		}).AnyTimes()

		s, err := MakeBuilder().WithHook(hook).Build(firstSample())
		Expect(err).NotTo(HaveOccurred())

		_, err = s.ProcessPress(nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(results).To(HaveLen(1))
		Expect(results[0].Press).To(Equal(uint64(1)))
		Expect(results[0].Partial()).To(Equal(Counts{Low: 8, High: 4}))
	})

	ginkgo.It("should abort a press over the pulse limit", func() {
		s, err := MakeBuilder().WithPulseLimit(5).Build(firstSample())
		Expect(err).NotTo(HaveOccurred())

		_, err = s.ProcessPress(nil)
		Expect(errors.Is(err, ErrPulseLimit)).To(BeTrue())

		s, err = MakeBuilder().WithPulseLimit(12).Build(firstSample())
		Expect(err).NotTo(HaveOccurred())

		_, err = s.ProcessPress(nil)
		Expect(err).NotTo(HaveOccurred())
	})

	ginkgo.It("should mark a press over the pulse limit as aborted", func() {
		hook := NewMockHook(mockCtrl)

		var ended []Result
		hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			if ctx.Pos == HookPosPressEnd {
				ended = append(ended, ctx.Detail.(Result))
			}
		}).AnyTimes()

		s, err := MakeBuilder().
			WithPulseLimit(5).
			WithHook(hook).
			Build(firstSample())
		Expect(err).NotTo(HaveOccurred())

		res, err := s.ProcessPress(nil)
		Expect(errors.Is(err, ErrPulseLimit)).To(BeTrue())
		Expect(res.Outcome).To(Equal(Aborted))
		Expect(res.Partial()).To(Equal(Counts{Low: 4, High: 2}))

		_, err = res.Totals()
		Expect(errors.Is(err, ErrPartialCounts)).To(BeTrue())

		Expect(ended).To(HaveLen(1))
		Expect(ended[0].Outcome).To(Equal(Aborted))
	})

	ginkgo.It("should not report a zero result as drained", func() {
		var res Result
		Expect(res.Outcome).To(Equal(Pending))

		_, err := res.Totals()
		Expect(errors.Is(err, ErrPartialCounts)).To(BeTrue())
	})

	ginkgo.It("should press another entry module", func() {
		s, err := MakeBuilder().WithEntry("c").WithHook(recorder).Build(firstSample())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Entry()).To(Equal("c"))

		_, err = s.ProcessPress(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(recorder.lines()[:2]).To(Equal([]string{
			"button -low-> c",
			"c -high-> inv",
		}))
	})

	ginkgo.It("should reject entries that cannot take the button pulse", func() {
		_, err := MakeBuilder().WithEntry("inv").Build(firstSample())
		Expect(errors.Is(err, ErrUnknownEntry)).To(BeTrue())

		_, err = MakeBuilder().WithEntry("nowhere").Build(firstSample())
		Expect(errors.Is(err, ErrUnknownEntry)).To(BeTrue())
	})

	ginkgo.It("should hold pulses while paused", func() {
		s, err := MakeBuilder().Build(firstSample())
		Expect(err).NotTo(HaveOccurred())

		s.Pause()
		Expect(s.IsPaused()).To(BeTrue())

		done := make(chan Result, 1)
		go func() {
			defer ginkgo.GinkgoRecover()

			res, err := s.ProcessPress(nil)
			Expect(err).NotTo(HaveOccurred())
			done <- res
		}()

		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

		s.Continue()
		Expect(s.IsPaused()).To(BeFalse())
		Eventually(done).Should(Receive())
	})
})
