package health

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/honeycombio/spanbeat/logger"
	"github.com/honeycombio/spanbeat/metrics"
)

// Background loops (the promotion and heartbeat loops, the generator) register
// here with a timeout and then call Ready each time they run. A loop that goes
// longer than its timeout without reporting marks the whole process as not
// alive; a loop that reports ready=false marks it as not ready. The debug
// service reads the result back through Reporter.
//
// Registration does not start the countdown; it starts on the first call to
// Ready.

// Recorder is the interface used by object that want to record their own health
// status and make it available to the system.
type Recorder interface {
	Register(subsystem string, timeout time.Duration)
	Unregister(subsystem string)
	Ready(subsystem string, ready bool)
}

// Reporter is the interface that is used to read back the health status of the system.
type Reporter interface {
	IsAlive() bool
	IsReady() bool
}

// TickerTime is the interval at which all registered subsystems are
// surveyed. It should be shorter than any registered timeout.
var TickerTime = 500 * time.Millisecond

// SubsystemStatus is a point-in-time view of one registered subsystem.
type SubsystemStatus struct {
	Name     string        `json:"name"`
	Timeout  time.Duration `json:"timeout"`
	TimeLeft time.Duration `json:"time_left"`
	Ready    bool          `json:"ready"`
	Alive    bool          `json:"alive"`
}

type subsystem struct {
	timeout time.Duration
	// timeLeft is negative until the first report; zero means dead
	timeLeft time.Duration
	ready    bool
	alive    bool
}

// Health tracks the liveness and readiness of registered subsystems.
type Health struct {
	Clock   clockwork.Clock `inject:""`
	Metrics metrics.Metrics `inject:"metrics"`
	Logger  logger.Logger   `inject:""`

	subsystems map[string]*subsystem
	// unregistered remembers names that used to be registered so late reports
	// from them are not treated as errors
	unregistered map[string]struct{}
	mut          sync.RWMutex
	done         chan struct{}
	wg           sync.WaitGroup
}

var (
	_ Recorder = (*Health)(nil)
	_ Reporter = (*Health)(nil)
)

func (h *Health) Start() error {
	// if we don't have a logger or metrics object, we'll use the null ones (makes testing easier)
	if h.Logger == nil {
		h.Logger = &logger.NullLogger{}
	}
	if h.Metrics == nil {
		h.Metrics = &metrics.NullMetrics{}
	}
	if h.Clock == nil {
		h.Clock = clockwork.NewRealClock()
	}
	h.Metrics.Register(metrics.Metadata{Name: "is_ready", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "1 if every registered subsystem is ready"})
	h.Metrics.Register(metrics.Metadata{Name: "is_alive", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "1 if every registered subsystem has reported within its timeout"})

	h.subsystems = make(map[string]*subsystem)
	h.unregistered = make(map[string]struct{})
	h.done = make(chan struct{})
	h.wg.Add(1)
	go h.ticker()
	return nil
}

func (h *Health) Stop() error {
	close(h.done)
	h.wg.Wait()
	return nil
}

func (h *Health) ticker() {
	defer h.wg.Done()
	tick := h.Clock.NewTicker(TickerTime)
	defer tick.Stop()
	for {
		select {
		case <-tick.Chan():
			h.mut.Lock()
			for _, s := range h.subsystems {
				// only count down positive values; zero already means dead
				if s.timeLeft > 0 {
					s.timeLeft = max(s.timeLeft-TickerTime, 0)
				}
			}
			h.mut.Unlock()
		case <-h.done:
			return
		}
	}
}

// Register a subsystem with the health system. The timeout is the maximum
// expected interval between subsystem reports.
func (h *Health) Register(name string, timeout time.Duration) {
	h.mut.Lock()
	defer h.mut.Unlock()
	h.subsystems[name] = &subsystem{
		timeout:  timeout,
		timeLeft: -1,
	}
	delete(h.unregistered, name)

	fields := map[string]any{
		"source":  name,
		"timeout": timeout,
	}
	h.Logger.Debug().WithFields(fields).Logf("Registered Health ticker")
	if timeout < TickerTime {
		h.Logger.Error().WithFields(fields).Logf("Registering a timeout less than the ticker time")
	}
}

// Unregister removes a subsystem. It no longer needs to report in, and the
// process is no longer held unready on its account.
func (h *Health) Unregister(name string) {
	h.mut.Lock()
	defer h.mut.Unlock()
	if _, ok := h.subsystems[name]; ok {
		delete(h.subsystems, name)
		h.unregistered[name] = struct{}{}
	}
}

// Ready is called by subsystems with a flag to indicate their readiness. Even
// unready subsystems are alive as long as they report in.
func (h *Health) Ready(name string, ready bool) {
	h.mut.Lock()
	defer h.mut.Unlock()
	s, ok := h.subsystems[name]
	if !ok {
		if _, was := h.unregistered[name]; !was {
			h.Logger.Error().WithString("subsystem", name).Logf("Health.Ready called for unregistered subsystem")
		}
		return
	}
	if s.ready != ready {
		h.Logger.Info().WithFields(map[string]any{
			"subsystem": name,
			"ready":     ready,
		}).Logf("Health.Ready reporting subsystem changing state")
	}
	s.ready = ready
	s.timeLeft = s.timeout
	if !s.alive {
		s.alive = true
		h.Logger.Info().WithString("subsystem", name).Logf("Health.Ready reporting subsystem alive")
	}
	h.Metrics.Gauge("is_ready", h.checkReady())
	h.Metrics.Gauge("is_alive", h.checkAlive())
}

// IsAlive returns true if all registered subsystems are alive
func (h *Health) IsAlive() bool {
	h.mut.Lock()
	defer h.mut.Unlock()
	return h.checkAlive()
}

// checkAlive must be called with the write lock held.
func (h *Health) checkAlive() bool {
	alive := true
	for name, s := range h.subsystems {
		if s.timeLeft == 0 {
			if s.alive {
				h.Logger.Error().WithString("subsystem", name).Logf("IsAlive: subsystem dead due to timeout")
				s.alive = false
			}
			alive = false
		}
	}
	return alive
}

// IsReady returns true if something has registered and every registered
// subsystem is ready and reporting.
func (h *Health) IsReady() bool {
	h.mut.RLock()
	defer h.mut.RUnlock()
	return h.checkReady()
}

// checkReady must be called with the lock held.
func (h *Health) checkReady() bool {
	if len(h.subsystems) == 0 {
		return false
	}
	for name, s := range h.subsystems {
		if s.timeLeft <= 0 || !s.ready {
			h.Logger.Debug().WithFields(map[string]any{
				"subsystem": name,
				"time_left": s.timeLeft,
				"ready":     s.ready,
			}).Logf("Health.IsReady reporting subsystem not ready")
			return false
		}
	}
	return true
}

// Statuses returns the state of every registered subsystem, sorted by name.
func (h *Health) Statuses() []SubsystemStatus {
	h.mut.RLock()
	defer h.mut.RUnlock()
	out := make([]SubsystemStatus, 0, len(h.subsystems))
	for name, s := range h.subsystems {
		out = append(out, SubsystemStatus{
			Name:     name,
			Timeout:  s.timeout,
			TimeLeft: s.timeLeft,
			Ready:    s.ready,
			Alive:    s.alive,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
