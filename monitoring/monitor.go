// Package monitoring turns a running simulation into an HTTP server that can
// be inspected and paused from outside.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/qnetsim/sim/id"
	"github.com/sarchlab/qnetsim/sim/logging"
	"github.com/sarchlab/qnetsim/sim/modeling"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// ProfileDuration is how long the CPU is sampled for a profile.
var ProfileDuration = time.Second

// An Engine is the part of the event engine that the monitor controls.
type Engine interface {
	timing.TimeTeller

	Pause()
	Continue()
}

// An EntityRegistry lists the entities of a simulation.
type EntityRegistry interface {
	Entities() []modeling.Entity
	GetEntityByName(name string) modeling.Entity
}

// A TrafficCounter reports per-domain hook counts.
type TrafficCounter interface {
	Domains() []string
	Snapshot(domain string) map[string]uint64
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine     Engine
	entities   EntityRegistry
	traffic    TrafficCounter
	portNumber int
	log        *logrus.Entry

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{log: logging.Discard().For("monitor")}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.log.Warnf("port %d is not allowed for monitoring, "+
			"using a random port instead", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the sink that the monitor logs to.
func (m *Monitor) WithLogger(sink *logging.Sink) *Monitor {
	m.log = sink.For("monitor")
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e Engine) {
	m.engine = e
}

// RegisterEntities registers the entities that can be inspected.
func (m *Monitor) RegisterEntities(r EntityRegistry) {
	m.entities = r
}

// RegisterTrafficCounter registers the counter that traffic reports come
// from.
func (m *Monitor) RegisterTrafficCounter(c TrafficCounter) {
	m.traffic = c
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        id.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler that serves the monitoring API.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/entities", m.listEntities)
	r.HandleFunc("/api/entity/{name}", m.entityDetails)
	r.HandleFunc("/api/field/{name}/{path}", m.fieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/traffic", m.listTrafficDomains)
	r.HandleFunc("/api/traffic/{name}", m.reportTraffic)

	return r
}

// StartServer starts serving the monitoring API and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 0 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("monitoring: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.log.Infof("monitoring simulation with %s", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorf("monitoring server stopped: %v", err)
		}
	}()

	return url, nil
}

// StopServer stops the server started by StartServer.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.engineMustBeRegistered(w) {
		return
	}

	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.engineMustBeRegistered(w) {
		return
	}

	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now timing.VTimeInPS `json:"now"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if !m.engineMustBeRegistered(w) {
		return
	}

	m.writeJSON(w, nowRsp{Now: m.engine.Now()})
}

func (m *Monitor) engineMustBeRegistered(w http.ResponseWriter) bool {
	if m.engine == nil {
		http.Error(w, "no engine registered", http.StatusServiceUnavailable)
		return false
	}

	return true
}

func (m *Monitor) listEntities(w http.ResponseWriter, _ *http.Request) {
	names := []string{}

	if m.entities != nil {
		for _, e := range m.entities.Entities() {
			names = append(names, e.Name())
		}
	}

	m.writeJSON(w, names)
}

func (m *Monitor) entityDetails(w http.ResponseWriter, r *http.Request) {
	entity := m.findEntityOr404(w, mux.Vars(r)["name"])
	if entity == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(entity)
	serializer.SetMaxDepth(1)

	buf := bytes.NewBuffer(nil)
	if err := serializer.Serialize(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.write(w, buf.Bytes())
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	entity := m.findEntityOr404(w, vars["name"])
	if entity == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(entity)
	serializer.SetMaxDepth(1)

	if err := serializer.SetEntryPoint(strings.Split(vars["path"], ".")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	buf := bytes.NewBuffer(nil)
	if err := serializer.Serialize(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.write(w, buf.Bytes())
}

func (m *Monitor) findEntityOr404(
	w http.ResponseWriter,
	name string,
) modeling.Entity {
	var entity modeling.Entity
	if m.entities != nil {
		entity = m.entities.GetEntityByName(name)
	}

	if entity == nil {
		http.Error(w, "entity not found", http.StatusNotFound)
	}

	return entity
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(ProfileDuration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) listTrafficDomains(w http.ResponseWriter, _ *http.Request) {
	domains := []string{}
	if m.traffic != nil {
		domains = m.traffic.Domains()
	}

	m.writeJSON(w, domains)
}

func (m *Monitor) reportTraffic(w http.ResponseWriter, r *http.Request) {
	if m.traffic == nil {
		http.Error(w, "no traffic counter registered", http.StatusServiceUnavailable)
		return
	}

	m.writeJSON(w, m.traffic.Snapshot(mux.Vars(r)["name"]))
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	m.write(w, data)
}

func (m *Monitor) write(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		m.log.Warnf("failed to write response: %v", err)
	}
}
