package metrics

var _ Metrics = (*NullMetrics)(nil)

// NullMetrics is what the processor and health tracker fall back to when
// nothing is injected. It records nothing, so Get never finds a value.
type NullMetrics struct{}

func (n *NullMetrics) Start() {}

func (n *NullMetrics) Register(Metadata)          {}
func (n *NullMetrics) Increment(string)           {}
func (n *NullMetrics) Gauge(string, any)          {}
func (n *NullMetrics) Count(string, any)          {}
func (n *NullMetrics) Histogram(string, any)      {}
func (n *NullMetrics) Up(string)                  {}
func (n *NullMetrics) Down(string)                {}
func (n *NullMetrics) Store(string, float64)      {}
func (n *NullMetrics) Get(string) (float64, bool) { return 0, false }
