package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wbcache/backing/memstore"
	"github.com/sarchlab/wbcache/cache"
	"github.com/sarchlab/wbcache/hooking"
	"github.com/sarchlab/wbcache/tracing"
)

func get(server *httptest.Server, path string) (int, []byte) {
	rsp, err := http.Get(server.URL + path)
	Expect(err).ToNot(HaveOccurred())
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	Expect(err).ToNot(HaveOccurred())

	return rsp.StatusCode, body
}

var _ = Describe("Monitor", func() {
	var (
		m       *Monitor
		store   *memstore.Store
		c       *cache.SyncCache
		counter *hooking.EventCounter
		server  *httptest.Server
	)

	BeforeEach(func() {
		store = memstore.New()
		store.Put([]byte{1}, []byte{0xa1})
		store.Put([]byte{2}, []byte{0xa2})

		inner, err := cache.MakeBuilder().
			WithNumLines(2).
			WithEntrySize(1).
			WithIDSize(1).
			WithBackingStore(store).
			Build("L1")
		Expect(err).ToNot(HaveOccurred())

		c = cache.NewSyncCache(inner)
		counter = hooking.NewEventCounter()

		m = NewMonitor()
		m.RegisterCache(c, counter)

		server = httptest.NewServer(m.Handler())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should list caches", func() {
		code, body := get(server, "/api/caches")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`["L1"]`))
	})

	It("should list lines", func() {
		out := make([]byte, 1)
		Expect(c.Read([]byte{2}, out)).To(Succeed())

		code, body := get(server, "/api/cache/L1/lines")
		Expect(code).To(Equal(http.StatusOK))

		var lines []lineRsp
		Expect(json.Unmarshal(body, &lines)).To(Succeed())
		Expect(lines).To(HaveLen(2))
		Expect(lines[0].ID).To(Equal("02"))
		Expect(lines[0].Value).To(Equal("a2"))
		Expect(lines[0].Empty).To(BeFalse())
		Expect(lines[1].Empty).To(BeTrue())
	})

	It("should report statistics", func() {
		out := make([]byte, 1)
		Expect(c.Read([]byte{1}, out)).To(Succeed())
		Expect(c.Read([]byte{1}, out)).To(Succeed())

		code, body := get(server, "/api/cache/L1/stats")
		Expect(code).To(Equal(http.StatusOK))

		var stats statsRsp
		Expect(json.Unmarshal(body, &stats)).To(Succeed())
		Expect(stats.NumLines).To(Equal(2))
		Expect(stats.NumOccupied).To(Equal(1))
		Expect(stats.Clock).To(Equal(uint64(2)))
		Expect(stats.Events).To(HaveKeyWithValue("CacheMiss", uint64(1)))
		Expect(stats.Events).To(HaveKeyWithValue("CacheHit", uint64(1)))
	})

	It("should verify a cache", func() {
		code, body := get(server, "/api/cache/L1/verify")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"ok":true}`))
	})

	It("should serialize cache details", func() {
		code, body := get(server, "/api/cache/L1")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).ToNot(BeEmpty())
	})

	It("should reject malformed field requests", func() {
		code, _ := get(server, "/api/field/"+url.PathEscape("{not json"))

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should return 404 for unknown caches", func() {
		code, body := get(server, "/api/cache/L9/lines")

		Expect(code).To(Equal(http.StatusNotFound))
		Expect(string(body)).To(Equal("Cache not found"))
	})

	It("should serve the web page", func() {
		code, body := get(server, "/")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should report resource usage", func() {
		code, body := get(server, "/api/resource")

		Expect(code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should report tracers", func() {
		average := tracing.NewAverageTimeTracer(tracing.WallClock{}, nil)
		total := tracing.NewTotalTimeTracer(tracing.WallClock{}, nil)
		for _, t := range []tracing.Tracer{average, total} {
			t.StartTask(tracing.Task{ID: "1"})
			t.EndTask(tracing.Task{ID: "1"})
		}
		total.StartTask(tracing.Task{ID: "2"})

		m.RegisterTracer("L1.load", average, total)
		m.RegisterTracer("L1.store", average, nil)

		code, body := get(server, "/api/tracers")
		Expect(code).To(Equal(http.StatusOK))

		var rsp map[string]tracerRsp
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp).To(HaveKey("L1.load"))
		Expect(rsp["L1.load"].Count).To(Equal(uint64(1)))
		Expect(rsp["L1.load"].TotalTime).To(
			Equal(total.TotalTime().Nanoseconds()))
		Expect(rsp["L1.load"].InFlight).To(Equal(1))
		Expect(rsp["L1.store"].TotalTime).To(BeZero())
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("warm up", 10)
		for i := 0; i < 4; i++ {
			bar.Begin()
		}
		bar.Done(nil)
		bar.Done(nil)
		bar.Done(errors.New("not found"))

		code, body := get(server, "/api/progress")
		Expect(code).To(Equal(http.StatusOK))

		var bars []Progress
		Expect(json.Unmarshal(body, &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("warm up"))
		Expect(bars[0].Total).To(Equal(uint64(10)))
		Expect(bars[0].Finished).To(Equal(uint64(3)))
		Expect(bars[0].Failed).To(Equal(uint64(1)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)

		_, body = get(server, "/api/progress")
		Expect(body).To(MatchJSON(`[]`))
	})

	It("should fall back to a random port for reserved ports", func() {
		m.WithPortNumber(80)

		Expect(m.portNumber).To(Equal(0))
	})

	It("should start and stop the server", func() {
		addr, err := m.StartServer()
		Expect(err).ToNot(HaveOccurred())

		rsp, err := http.Get(addr + "/api/caches")
		Expect(err).ToNot(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		Expect(m.StopServer(context.Background())).To(Succeed())

		_, err = http.Get(addr + "/api/caches")
		Expect(err).To(HaveOccurred())
	})

	It("should do nothing when stopping a server that never started", func() {
		Expect(m.StopServer(context.Background())).To(Succeed())
	})

	It("should wait for running requests when stopping", func() {
		addr, err := m.StartServer()
		Expect(err).ToNot(HaveOccurred())

		release := make(chan struct{})
		locked := make(chan struct{})
		go c.Do(func(*cache.Cache) {
			close(locked)
			<-release
		})
		<-locked

		codes := make(chan int, 1)
		go func() {
			defer GinkgoRecover()

			rsp, err := http.Get(addr + "/api/cache/L1/lines")
			Expect(err).ToNot(HaveOccurred())
			rsp.Body.Close()
			codes <- rsp.StatusCode
		}()
		time.Sleep(100 * time.Millisecond)

		stopped := make(chan error, 1)
		go func() { stopped <- m.StopServer(context.Background()) }()

		Consistently(stopped, 100*time.Millisecond).ShouldNot(Receive())

		close(release)

		Eventually(stopped).Should(Receive(BeNil()))
		Eventually(codes).Should(Receive(Equal(http.StatusOK)))
	})
})
