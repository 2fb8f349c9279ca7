package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qnetsim/optical"
	"github.com/sarchlab/qnetsim/sim/hooking"
	"github.com/sarchlab/qnetsim/sim/modeling"
	"github.com/sarchlab/qnetsim/sim/simulation"
	"github.com/sarchlab/qnetsim/sim/timing"
	"github.com/sarchlab/qnetsim/tracing"
)

type fakeEngine struct {
	now       timing.VTimeInPS
	paused    int
	continued int
}

func (e *fakeEngine) Now() timing.VTimeInPS { return e.now }
func (e *fakeEngine) Pause()                { e.paused++ }
func (e *fakeEngine) Continue()             { e.continued++ }

type probe struct {
	modeling.EntityBase
	Count int
	Label string
}

type namedDomain struct {
	*hooking.HookableBase
	name string
}

func (d namedDomain) Name() string { return d.name }

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		engine *fakeEngine
		sim    *simulation.Simulation
		router http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	BeforeEach(func() {
		engine = &fakeEngine{now: 42}
		sim = simulation.NewSimulation()
		sim.RegisterEntity(&probe{
			EntityBase: modeling.MakeEntityBase("probe"),
			Count:      3,
			Label:      "p",
		})

		m = NewMonitor()
		m.RegisterEngine(engine)
		m.RegisterEntities(sim)
		router = m.Router()
	})

	It("should report the time", func() {
		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"now": 42}`))
	})

	It("should pause and continue the engine", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))

		Expect(engine.paused).To(Equal(1))
		Expect(engine.continued).To(Equal(1))
	})

	It("should refuse to control a missing engine", func() {
		m = NewMonitor()
		router = m.Router()

		Expect(get("/api/now").Code).To(Equal(http.StatusServiceUnavailable))
		Expect(get("/api/pause").Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("should list entities", func() {
		rec := get("/api/entities")

		Expect(rec.Body.String()).To(MatchJSON(`["probe"]`))
	})

	It("should serialize entities", func() {
		rec := get("/api/entity/probe")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Count"))
	})

	It("should answer 404 for unknown entities", func() {
		Expect(get("/api/entity/nobody").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/field/nobody/Count").Code).To(Equal(http.StatusNotFound))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("photons", 10)
		bar.IncrementInProgress(4)
		bar.MoveInProgressToFinished(3)
		bar.IncrementFinished(1)

		var bars []progressRsp
		Expect(json.Unmarshal(get("/api/progress").Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("photons"))
		Expect(bars[0].Finished).To(Equal(uint64(4)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(MatchJSON(`[]`))
	})

	It("should move a bar with simulated time", func() {
		bar := m.CreateProgressBar("time", 100)
		hook := &TimeProgressHook{Bar: bar}

		hook.Func(hooking.HookCtx{
			Pos:  timing.HookPosAfterEvent,
			Item: timing.NewEventBase(60, nil),
		})
		Expect(bar.Finished).To(Equal(uint64(60)))

		hook.Func(hooking.HookCtx{
			Pos:  timing.HookPosBeforeEvent,
			Item: timing.NewEventBase(80, nil),
		})
		Expect(bar.Finished).To(Equal(uint64(60)))

		hook.Func(hooking.HookCtx{
			Pos:  timing.HookPosAfterEvent,
			Item: timing.NewEventBase(500, nil),
		})
		Expect(bar.Finished).To(Equal(uint64(100)))
	})

	It("should report traffic", func() {
		counter := tracing.NewCounter()
		d := namedDomain{HookableBase: hooking.NewHookableBase(), name: "qc"}
		counter.Func(hooking.HookCtx{Domain: d, Pos: optical.HookPosQubitSend})
		m.RegisterTrafficCounter(counter)

		Expect(get("/api/traffic").Body.String()).To(MatchJSON(`["qc"]`))
		Expect(get("/api/traffic/qc").Body.String()).
			To(MatchJSON(`{"QubitSend": 1}`))
	})

	It("should report resources", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should fall back to a random port", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should serve over http", func() {
		url, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(m.StopServer()).To(Succeed()) }()

		rsp, err := http.Get(url + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(MatchJSON(`{"now": 42}`))
	})
})
