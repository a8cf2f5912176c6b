package debug

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/internal/health"
	"github.com/honeycombio/spanbeat/logger"
	"github.com/honeycombio/spanbeat/processor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// statuser is implemented by health trackers that can list their subsystems.
type statuser interface {
	Statuses() []health.SubsystemStatus
}

// injectable debug service
type DebugService struct {
	Config    config.Config   `inject:""`
	Logger    logger.Logger   `inject:""`
	Health    health.Reporter `inject:""`
	Version   string          `inject:"version"`
	Processor *processor.PartialSpanProcessor

	router  *mux.Router
	server  *http.Server
	urls    []string
	expVars map[string]any
	mutex   sync.RWMutex
}

func (s *DebugService) Start() error {
	s.expVars = make(map[string]any)
	s.router = mux.NewRouter()

	// Add to the router but don't add an index entry.
	s.router.HandleFunc("/", s.indexHandler)

	s.HandleFunc("/alive", s.alive)
	s.HandleFunc("/ready", s.ready)
	s.HandleFunc("/version", s.version)
	s.HandleFunc("/health/subsystems", s.subsystems)
	s.HandleFunc("/partial/counts", s.partialCounts)
	s.HandleFunc("/config/{format}", s.heartbeatConfig)

	s.HandleFunc("/debug/pprof/", pprof.Index)
	s.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	s.HandleFunc("/debug/pprof/profile", pprof.Profile)
	s.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	s.HandleFunc("/debug/pprof/trace", pprof.Trace)
	s.router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	s.HandleFunc("/debug/vars", s.expvarHandler)
	s.Publish("cmdline", os.Args)
	s.Publish("memstats", Func(memstats))
	if s.Processor != nil {
		s.Publish("partial_spans", Func(func() any { return s.Processor.Counts() }))
	}

	addr := s.Config.GetDebugServiceAddr()
	if addr == "" {
		return nil
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.Logger.Info().WithString("addr", addr).Logf("Debug service listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Warn().WithString("addr", addr).Logf("debug http server error: %s", err)
		}
	}()
	return nil
}

func (s *DebugService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler exposes the routes without a listener, for tests and embedding.
func (s *DebugService) Handler() http.Handler {
	return s.router
}

// Use HandleFunc to add new services on the internal debugging port.
func (s *DebugService) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.urls = append(s.urls, pattern)
	s.router.HandleFunc(pattern, handler)
}

// Publish an expvar at /debug/vars, possibly using Func
func (s *DebugService) Publish(name string, v any) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, existing := s.expVars[name]; existing {
		panic("reuse of exported var name: " + name)
	}
	s.expVars[name] = v
}

func (s *DebugService) indexHandler(w http.ResponseWriter, req *http.Request) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if err := indexTmpl.Execute(w, s.urls); err != nil {
		s.Logger.Warn().Logf("error rendering debug index: %s", err)
	}
}

var indexTmpl = template.Must(template.New("index").Parse(`
<html>
<head>
<title>Debug Index</title>
</head>
<body>
<h2>Index</h2>
<table>
{{range .}}
<tr><td><a href="{{.}}?debug=1">{{.}}</a>
{{end}}
</table>
</body>
</html>
`))

func (s *DebugService) alive(w http.ResponseWriter, req *http.Request) {
	if s.Health != nil && !s.Health.IsAlive() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"source": "spanbeat", "alive": "no"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"source": "spanbeat", "alive": "yes"})
}

func (s *DebugService) ready(w http.ResponseWriter, req *http.Request) {
	if s.Health != nil && !s.Health.IsReady() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"source": "spanbeat", "ready": "no"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"source": "spanbeat", "ready": "yes"})
}

func (s *DebugService) version(w http.ResponseWriter, req *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"source": "spanbeat", "version": s.Version})
}

func (s *DebugService) subsystems(w http.ResponseWriter, req *http.Request) {
	st, ok := s.Health.(statuser)
	if !ok {
		http.Error(w, "health details not available", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, st.Statuses())
}

func (s *DebugService) partialCounts(w http.ResponseWriter, req *http.Request) {
	if s.Processor == nil {
		http.Error(w, "no partial span processor", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Processor.Counts())
}

// heartbeatConfig reports the timing in effect. Sink settings are left out
// because they carry credentials.
func (s *DebugService) heartbeatConfig(w http.ResponseWriter, req *http.Request) {
	format := strings.ToLower(mux.Vars(req)["format"])
	cfg := map[string]any{
		"Heartbeat": s.Config.GetHeartbeatConfig(),
		"SinkTypes": config.SinkTypes(s.Config.GetSinkConfig().Type),
		"Hashes":    s.Config.GetHashes(),
	}

	var (
		body        []byte
		err         error
		contentType string
	)
	switch format {
	case "json":
		body, err = json.Marshal(cfg)
		contentType = "application/json"
	case "toml":
		body, err = toml.Marshal(cfg)
		contentType = "application/toml"
	case "yaml":
		body, err = yaml.Marshal(cfg)
		contentType = "application/yaml"
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("got error %v trying to marshal to %s", err, format), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(body)
}

func (s *DebugService) expvarHandler(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	values := make(map[string]any, len(s.expVars))
	for k, v := range s.expVars {
		if f, ok := v.(Func); ok {
			v = f()
		}
		values[k] = v
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		s.Logger.Warn().Logf("error encoding expvars: %s", err)
	}
	w.Write(b)
}

func (s *DebugService) writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func memstats() any {
	stats := new(runtime.MemStats)
	runtime.ReadMemStats(stats)
	return *stats
}

type Func func() any
