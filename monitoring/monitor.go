// Package monitoring turns a running analysis into a small web service that
// reports progress and lets the user pause and inspect schedulers.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/pulsenet/monitoring/web"
	"github.com/sarchlab/pulsenet/pulse"
)

type namedScheduler struct {
	name      string
	scheduler *pulse.Scheduler
}

// Monitor exposes schedulers and progress bars over HTTP.
type Monitor struct {
	portNumber  int
	openBrowser bool

	lock         sync.Mutex
	schedulers   []namedScheduler
	progressBars []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor in the default browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterScheduler registers a scheduler under a name. A scheduler
// registered under an existing name replaces it.
func (m *Monitor) RegisterScheduler(name string, s *pulse.Scheduler) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i, e := range m.schedulers {
		if e.name == name {
			m.schedulers[i].scheduler = s
			return
		}
	}

	m.schedulers = append(m.schedulers, namedScheduler{name: name, scheduler: s})
}

func (m *Monitor) findScheduler(name string) *pulse.Scheduler {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, e := range m.schedulers {
		if e.name == name {
			return e.scheduler
		}
	}

	return nil
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar marks a bar as done. Finished bars stay listed so the
// result of every search can be read back.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	if pb == nil {
		return
	}

	pb.Lock()
	defer pb.Unlock()

	pb.Done = true
}

// ProgressBars returns the bars created so far, oldest first.
func (m *Monitor) ProgressBars() []*ProgressBar {
	m.lock.Lock()
	defer m.lock.Unlock()

	bars := make([]*ProgressBar, len(m.progressBars))
	copy(bars, m.progressBars)

	return bars
}

// StartServer starts the monitor as a web server and returns its address.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring pulsenet at %s\n", url)

	router := m.router()

	go func() {
		err := http.Serve(listener, router)
		dieOnErr(err)
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return url, nil
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/schedulers", m.listSchedulers)
	r.HandleFunc("/api/scheduler/{name}", m.schedulerStatus)
	r.HandleFunc("/api/pause/{name}", m.pauseScheduler)
	r.HandleFunc("/api/continue/{name}", m.continueScheduler)
	r.HandleFunc("/api/module/{name}/{module}", m.moduleDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

func (m *Monitor) listSchedulers(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.schedulers))
	for _, e := range m.schedulers {
		names = append(names, e.name)
	}
	m.lock.Unlock()

	writeJSON(w, names)
}

type schedulerRsp struct {
	Name      string   `json:"name"`
	Entry     string   `json:"entry"`
	Presses   uint64   `json:"presses"`
	Delivered uint64   `json:"delivered"`
	Paused    bool     `json:"paused"`
	Modules   []string `json:"modules"`
	Sinks     []string `json:"sinks"`
}

func (m *Monitor) schedulerStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	s := m.findSchedulerOr404(w, name)
	if s == nil {
		return
	}

	writeJSON(w, schedulerRsp{
		Name:      name,
		Entry:     s.Entry(),
		Presses:   s.Presses(),
		Delivered: s.Delivered(),
		Paused:    s.IsPaused(),
		Modules:   s.Graph().Names(),
		Sinks:     s.Graph().Sinks(),
	})
}

func (m *Monitor) pauseScheduler(w http.ResponseWriter, r *http.Request) {
	s := m.findSchedulerOr404(w, mux.Vars(r)["name"])
	if s == nil {
		return
	}

	s.Pause()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueScheduler(w http.ResponseWriter, r *http.Request) {
	s := m.findSchedulerOr404(w, mux.Vars(r)["name"])
	if s == nil {
		return
	}

	s.Continue()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) moduleDetails(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s := m.findSchedulerOr404(w, vars["name"])
	if s == nil {
		return
	}

	module, ok := s.Graph().Module(vars["module"])
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Module not found"))
		dieOnErr(err)

		return
	}

	if !s.IsPaused() {
		s.Pause()
		defer s.Continue()
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(module)
	serializer.SetMaxDepth(2)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) findSchedulerOr404(
	w http.ResponseWriter,
	name string,
) *pulse.Scheduler {
	s := m.findScheduler(name)
	if s == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Scheduler not found"))
		dieOnErr(err)
	}

	return s
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	bars := m.ProgressBars()

	for _, b := range bars {
		b.Lock()
	}

	bytes, err := json.Marshal(bars)

	for _, b := range bars {
		b.Unlock()
	}

	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
