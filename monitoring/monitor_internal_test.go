package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pulsenet/circuit"
	"github.com/sarchlab/pulsenet/pulse"
)

func newSampleScheduler() *pulse.Scheduler {
	g, err := circuit.Build([]circuit.Declaration{
		{Name: "broadcaster", Destinations: []string{"a"}},
		{Marker: circuit.MarkerFlipFlop, Name: "a", Destinations: []string{"inv", "out"}},
		{Marker: circuit.MarkerConjunction, Name: "inv", Destinations: []string{"a"}},
	})
	Expect(err).NotTo(HaveOccurred())

	s, err := pulse.MakeBuilder().Build(g)
	Expect(err).NotTo(HaveOccurred())

	return s
}

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
		s *pulse.Scheduler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		m = NewMonitor()
		s = newSampleScheduler()
		m.RegisterScheduler("trial", s)
	})

	It("should list registered schedulers", func() {
		m.RegisterScheduler("other", newSampleScheduler())
		m.RegisterScheduler("trial", s)

		rec := get("/api/schedulers")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var names []string
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(Equal([]string{"trial", "other"}))
	})

	It("should report scheduler status", func() {
		_, err := s.ProcessPress(nil)
		Expect(err).NotTo(HaveOccurred())

		rec := get("/api/scheduler/trial")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var rsp schedulerRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Entry).To(Equal("broadcaster"))
		Expect(rsp.Presses).To(Equal(uint64(1)))
		Expect(rsp.Delivered).To(Equal(s.Delivered()))
		Expect(rsp.Modules).To(Equal([]string{"broadcaster", "a", "inv"}))
		Expect(rsp.Sinks).To(Equal([]string{"out"}))
	})

	It("should return 404 for unknown schedulers", func() {
		Expect(get("/api/scheduler/nope").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/pause/nope").Code).To(Equal(http.StatusNotFound))
	})

	It("should pause and continue a scheduler", func() {
		Expect(get("/api/pause/trial").Code).To(Equal(http.StatusOK))
		Expect(s.IsPaused()).To(BeTrue())

		Expect(get("/api/continue/trial").Code).To(Equal(http.StatusOK))
		Expect(s.IsPaused()).To(BeFalse())
	})

	It("should serialize a module", func() {
		rec := get("/api/module/trial/inv")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("inv"))
		Expect(s.IsPaused()).To(BeFalse())

		Expect(get("/api/module/trial/out").Code).To(Equal(http.StatusNotFound))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("period a->inv", 10)
		bar.IncrementFinished(3)
		m.CompleteProgressBar(bar)

		rec := get("/api/progress")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var bars []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("period a->inv"))
		Expect(bars[0]["finished"]).To(BeNumerically("==", 3))
		Expect(bars[0]["total"]).To(BeNumerically("==", 10))
		Expect(bars[0]["done"]).To(BeTrue())
	})

	It("should tolerate nil progress bars", func() {
		var bar *ProgressBar
		bar.IncrementFinished(1)
		m.CompleteProgressBar(nil)
	})

	It("should serve the dashboard", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should reject privileged port numbers", func() {
		Expect(NewMonitor().WithPortNumber(80).portNumber).To(Equal(0))
		Expect(NewMonitor().WithPortNumber(8080).portNumber).To(Equal(8080))
	})
})
