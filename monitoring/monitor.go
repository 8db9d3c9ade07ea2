// Package monitoring turns a running simulation into a small HTTP server so
// that stats can be inspected while a long run is in flight.
package monitoring

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	// Enable profiling endpoints.
	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"

	"github.com/tracelab/memhier/stats"
)

// Monitor serves the live statistics of one simulation over HTTP.
type Monitor struct {
	registry   *stats.Registry
	portNumber int
	url        string
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port the server listens on. Port 0 picks a free
// one.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	m.portNumber = portNumber
	return m
}

// RegisterStatsRegistry sets the registry the monitor serves.
func (m *Monitor) RegisterStatsRegistry(registry *stats.Registry) {
	m.registry = registry
}

// StartServer starts serving in the background and prints the address.
func (m *Monitor) StartServer() {
	listener, err := net.Listen("tcp",
		fmt.Sprintf("localhost:%d", m.portNumber))
	if err != nil {
		panic(err)
	}

	m.url = "http://" + listener.Addr().String()
	fmt.Fprintf(os.Stderr, "Monitoring simulation at %s\n", m.url)

	r := mux.NewRouter()
	r.HandleFunc("/api/stats", m.serveStats)
	r.HandleFunc("/api/process", m.serveProcess)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	go func() {
		err := http.Serve(listener, r)
		if err != nil {
			log.Fatal(err)
		}
	}()
}

// OpenDashboard opens the monitor's address in the default browser.
func (m *Monitor) OpenDashboard() {
	if m.url == "" {
		return
	}

	err := browser.OpenURL(m.url + "/api/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open browser: %s\n", err)
	}
}

type statEntry struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	Desc  string `json:"desc"`
}

func (m *Monitor) serveStats(w http.ResponseWriter, _ *http.Request) {
	entries := []statEntry{}
	if m.registry != nil {
		for _, s := range m.registry.All() {
			entries = append(entries, statEntry{
				Name:  s.Name(),
				Value: s.Value(),
				Desc:  s.Desc(),
			})
		}
	}

	writeJSON(w, entries)
}

type processInfo struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

func (m *Monitor) serveProcess(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	info := processInfo{PID: p.Pid}
	if memInfo, err := p.MemoryInfo(); err == nil {
		info.RSSBytes = memInfo.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		info.CPUPercent = cpu
	}

	writeJSON(w, info)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
