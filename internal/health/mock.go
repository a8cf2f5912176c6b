package health

import (
	"sync"
	"time"
)

var _ Reporter = (*MockHealthReporter)(nil)

// MockHealthReporter lets tests set the answers a Reporter gives.
type MockHealthReporter struct {
	isAlive bool
	isReady bool
	mutex   sync.Mutex
}

func (m *MockHealthReporter) SetAlive(isAlive bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.isAlive = isAlive
}

func (m *MockHealthReporter) IsAlive() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.isAlive
}

func (m *MockHealthReporter) SetReady(isReady bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.isReady = isReady
}

func (m *MockHealthReporter) IsReady() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.isReady
}

var _ Recorder = (*MockHealthRecorder)(nil)

// MockHealthRecorder remembers which subsystems are registered and how often
// each has reported.
type MockHealthRecorder struct {
	registered map[string]time.Duration
	reports    map[string]int
	mutex      sync.Mutex
}

func (m *MockHealthRecorder) Register(subsystem string, timeout time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.registered == nil {
		m.registered = make(map[string]time.Duration)
		m.reports = make(map[string]int)
	}
	m.registered[subsystem] = timeout
}

func (m *MockHealthRecorder) Unregister(subsystem string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.registered, subsystem)
}

func (m *MockHealthRecorder) Ready(subsystem string, ready bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.reports == nil {
		m.reports = make(map[string]int)
	}
	m.reports[subsystem]++
}

// Registered returns the timeout a subsystem registered with, if it is
// currently registered.
func (m *MockHealthRecorder) Registered(subsystem string) (time.Duration, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	d, ok := m.registered[subsystem]
	return d, ok
}

func (m *MockHealthRecorder) Reports(subsystem string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.reports[subsystem]
}
