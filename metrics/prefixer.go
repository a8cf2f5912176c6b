package metrics

var _ Metrics = (*MetricsPrefixer)(nil)

// MetricsPrefixer namespaces one component's metrics inside the shared
// MultiMetrics, so the generator's "spans_started" is reported as
// "generator_spans_started" while Get on the shared object still sees it.
type MetricsPrefixer struct {
	Metrics Metrics `inject:"metrics"`
	prefix  string
}

// NewMetricsPrefixer joins prefix to every name with an underscore. An empty
// prefix passes names through unchanged.
func NewMetricsPrefixer(prefix string) *MetricsPrefixer {
	if prefix != "" {
		prefix += "_"
	}
	return &MetricsPrefixer{prefix: prefix}
}

func (p *MetricsPrefixer) name(n string) string { return p.prefix + n }

func (p *MetricsPrefixer) Start() error { return nil }

func (p *MetricsPrefixer) Register(metadata Metadata) {
	metadata.Name = p.name(metadata.Name)
	p.Metrics.Register(metadata)
}

func (p *MetricsPrefixer) Increment(n string)           { p.Metrics.Increment(p.name(n)) }
func (p *MetricsPrefixer) Gauge(n string, val any)      { p.Metrics.Gauge(p.name(n), val) }
func (p *MetricsPrefixer) Count(n string, val any)      { p.Metrics.Count(p.name(n), val) }
func (p *MetricsPrefixer) Histogram(n string, obs any)  { p.Metrics.Histogram(p.name(n), obs) }
func (p *MetricsPrefixer) Up(n string)                  { p.Metrics.Up(p.name(n)) }
func (p *MetricsPrefixer) Down(n string)                { p.Metrics.Down(p.name(n)) }
func (p *MetricsPrefixer) Get(n string) (float64, bool) { return p.Metrics.Get(p.name(n)) }
func (p *MetricsPrefixer) Store(n string, val float64)  { p.Metrics.Store(p.name(n), val) }
