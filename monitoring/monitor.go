// Package monitoring serves the state of running caches over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
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
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/wbcache/cache"
	"github.com/sarchlab/wbcache/hooking"
	"github.com/sarchlab/wbcache/monitoring/web"
	"github.com/sarchlab/wbcache/tracing"
)

type monitoredCache struct {
	cache   *cache.SyncCache
	counter *hooking.EventCounter
}

type monitoredTracer struct {
	average *tracing.AverageTimeTracer
	total   *tracing.TotalTimeTracer
}

// Monitor turns a program that uses caches into a server that allows
// external inspection of the caches.
type Monitor struct {
	lock        sync.Mutex
	caches      []monitoredCache
	portNumber  int
	openBrowser bool

	tracers map[string]monitoredTracer

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
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

// WithBrowser makes the monitor open the web page once the server starts.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterCache registers a cache to be monitored. The counter may be nil.
// When it is not, it is attached to the cache and its counts are served as
// the cache statistics.
func (m *Monitor) RegisterCache(
	c *cache.SyncCache,
	counter *hooking.EventCounter,
) {
	if counter != nil {
		c.Do(func(inner *cache.Cache) {
			inner.AcceptHook(counter)
		})
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.caches = append(m.caches, monitoredCache{cache: c, counter: counter})
}

// RegisterTracer registers the tracers of one kind of task under the given
// name. Either tracer may be nil.
func (m *Monitor) RegisterTracer(
	name string,
	average *tracing.AverageTimeTracer,
	total *tracing.TotalTimeTracer,
) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.tracers == nil {
		m.tracers = make(map[string]monitoredTracer)
	}

	m.tracers[name] = monitoredTracer{average: average, total: total}
}

// CreateProgressBar creates a progress bar for a batch of total accesses and
// shows it until it is completed.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		id:        xid.New().String(),
		name:      name,
		startTime: time.Now(),
		total:     total,
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

// Handler returns the HTTP handler that serves the monitoring API and the
// web page.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	fServer := http.FileServer(web.GetAssets())
	r.HandleFunc("/api/caches", m.listCaches)
	r.HandleFunc("/api/cache/{name}", m.cacheDetail)
	r.HandleFunc("/api/cache/{name}/lines", m.listLines)
	r.HandleFunc("/api/cache/{name}/stats", m.cacheStats)
	r.HandleFunc("/api/cache/{name}/verify", m.verifyCache)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/tracers", m.listTracers)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(fServer)

	return r
}

// StartServer starts the monitor as a web server and returns the address it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	server := &http.Server{Handler: m.Handler()}

	m.lock.Lock()
	m.server = server
	m.lock.Unlock()

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring caches with %s\n", url)

	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("cannot open browser: %v", err)
		}
	}

	return url, nil
}

// StopServer stops accepting new requests and waits for the requests being
// served to finish, or for ctx to be done.
func (m *Monitor) StopServer(ctx context.Context) error {
	m.lock.Lock()
	server := m.server
	m.server = nil
	m.lock.Unlock()

	if server == nil {
		return nil
	}

	return server.Shutdown(ctx)
}

func (m *Monitor) listCaches(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.caches))
	for _, c := range m.caches {
		names = append(names, c.cache.Name())
	}
	m.lock.Unlock()

	writeJSON(w, names)
}

func (m *Monitor) cacheDetail(w http.ResponseWriter, r *http.Request) {
	c := m.findCacheOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	c.cache.Do(func(inner *cache.Cache) {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(inner)
		serializer.SetMaxDepth(1)
		err := serializer.Serialize(w)
		dieOnErr(err)
	})
}

type lineRsp struct {
	Index      int    `json:"index"`
	LastAccess uint64 `json:"last_access"`
	Checksum   uint32 `json:"checksum"`
	ID         string `json:"id"`
	Value      string `json:"value"`
	Guard      byte   `json:"guard"`
	Empty      bool   `json:"empty"`
	Dirty      bool   `json:"dirty"`
}

func (m *Monitor) listLines(w http.ResponseWriter, r *http.Request) {
	c := m.findCacheOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	views := c.cache.Lines()
	rsp := make([]lineRsp, 0, len(views))

	for _, v := range views {
		rsp = append(rsp, lineRsp{
			Index:      v.Index,
			LastAccess: v.LastAccess,
			Checksum:   v.Checksum,
			ID:         hex.EncodeToString(v.ID),
			Value:      hex.EncodeToString(v.Value),
			Guard:      v.Guard,
			Empty:      v.Empty,
			Dirty:      v.Dirty,
		})
	}

	writeJSON(w, rsp)
}

type statsRsp struct {
	NumLines    int               `json:"num_lines"`
	NumOccupied int               `json:"num_occupied"`
	Clock       uint64            `json:"clock"`
	Closed      bool              `json:"closed"`
	Events      map[string]uint64 `json:"events"`
}

func (m *Monitor) cacheStats(w http.ResponseWriter, r *http.Request) {
	c := m.findCacheOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	rsp := statsRsp{Events: map[string]uint64{}}

	c.cache.Do(func(inner *cache.Cache) {
		rsp.NumLines = inner.NumLines()
		rsp.NumOccupied = inner.NumOccupied()
		rsp.Clock = inner.Clock()
		rsp.Closed = inner.IsClosed()
	})

	if c.counter != nil {
		rsp.Events = c.counter.Snapshot()
	}

	writeJSON(w, rsp)
}

type verifyRsp struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (m *Monitor) verifyCache(w http.ResponseWriter, r *http.Request) {
	c := m.findCacheOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	rsp := verifyRsp{OK: true}
	if err := c.cache.Verify(); err != nil {
		rsp = verifyRsp{Error: err.Error()}
	}

	writeJSON(w, rsp)
}

type fieldReq struct {
	CacheName string `json:"cache_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	c := m.findCacheOr404(w, req.CacheName)
	if c == nil {
		return
	}

	fields := strings.Split(req.FieldName, ".")

	c.cache.Do(func(inner *cache.Cache) {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(inner)
		serializer.SetMaxDepth(1)

		if err := serializer.SetEntryPoint(fields); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: %s", err)
			return
		}

		err := serializer.Serialize(w)
		dieOnErr(err)
	})
}

func (m *Monitor) findCacheOr404(
	w http.ResponseWriter,
	name string,
) *monitoredCache {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i := range m.caches {
		if m.caches[i].cache.Name() == name {
			c := m.caches[i]
			return &c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Cache not found"))
	dieOnErr(err)

	return nil
}

type tracerRsp struct {
	Count       uint64 `json:"count"`
	AverageTime int64  `json:"average_time_ns"`
	TotalTime   int64  `json:"total_time_ns"`
	LongestTime int64  `json:"longest_time_ns"`
	InFlight    int    `json:"in_flight"`
}

func (m *Monitor) listTracers(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	rsp := make(map[string]tracerRsp, len(m.tracers))
	for name, t := range m.tracers {
		r := tracerRsp{}

		if t.average != nil {
			r.Count = t.average.TotalCount()
			r.AverageTime = t.average.AverageTime().Nanoseconds()
		}

		if t.total != nil {
			r.Count = t.total.TotalCount()
			r.TotalTime = t.total.TotalTime().Nanoseconds()
			r.LongestTime = t.total.LongestTime().Nanoseconds()
			r.InFlight = t.total.InFlight()
		}

		rsp[name] = r
	}
	m.lock.Unlock()

	writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	rsp := make([]Progress, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		rsp = append(rsp, b.Progress())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, rsp)
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
