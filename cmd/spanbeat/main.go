package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/facebookgo/inject"
	"github.com/facebookgo/startstop"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/honeycombio/spanbeat/app"
	"github.com/honeycombio/spanbeat/config"
	"github.com/honeycombio/spanbeat/generator"
	"github.com/honeycombio/spanbeat/internal/health"
	"github.com/honeycombio/spanbeat/internal/otelutil"
	"github.com/honeycombio/spanbeat/logger"
	"github.com/honeycombio/spanbeat/metrics"
	"github.com/honeycombio/spanbeat/processor"
	"github.com/honeycombio/spanbeat/service/debug"
	"github.com/honeycombio/spanbeat/sink"
)

// set by the release build.
var BuildID string
var version string

type graphLogger struct {
}

func (g graphLogger) Debugf(format string, v ...interface{}) {
	fmt.Printf(format, v...)
	fmt.Println()
}

func main() {
	opts, err := config.NewCmdEnvOptions(os.Args[1:])
	if err != nil {
		fmt.Printf("Command line parsing error '%s' -- call with --help for usage.\n", err)
		os.Exit(1)
	}

	if BuildID == "" {
		version = "dev"
	} else {
		version = BuildID
	}

	if opts.Version {
		fmt.Println("Version: " + version)
		os.Exit(0)
	}

	c, err := config.NewConfig(opts)
	if err != nil {
		fmt.Printf("%+v\n", err)
		os.Exit(1)
	}
	if opts.Validate {
		fmt.Println("Config validated successfully.")
		os.Exit(0)
	}

	lgr := logger.GetLoggerImplementation(c)
	logLevel := c.GetLoggerLevel().String()
	if err := lgr.SetLevel(logLevel); err != nil {
		fmt.Printf("unable to set logging level: %v\n", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	metricsSingleton := metrics.NewMultiMetrics()
	hlth := &health.Health{}

	snk, err := sink.GetSinkImplementation(c, lgr)
	if err != nil {
		fmt.Printf("unable to build snapshot sink: %v\n", err)
		os.Exit(1)
	}

	procOpts := processor.OptionsFromConfig(c)
	procOpts.Clock = clock
	procOpts.Logger = lgr
	procOpts.Metrics = metricsSingleton
	procOpts.Health = hlth
	proc, err := processor.New(snk, procOpts)
	if err != nil {
		fmt.Printf("unable to create partial span processor: %v\n", err)
		os.Exit(1)
	}

	tp, err := otelutil.SetupTracing(c.GetOTelTracingConfig(), "spanbeat", version, proc)
	if err != nil {
		fmt.Printf("unable to set up tracing: %v\n", err)
		os.Exit(1)
	}

	a := app.App{
		Processor:      proc,
		TracerProvider: tp,
		Sink:           snk,
		Version:        version,
	}

	var g inject.Graph
	if opts.Debug {
		g.Logger = graphLogger{}
	}
	objects := []*inject.Object{
		{Value: c},
		{Value: lgr},
		{Value: clock},
		{Value: metricsSingleton, Name: "metrics"},
		{Value: metrics.NewMetricsPrefixer("generator"), Name: "generatorMetrics"},
		// trace.Tracer's fields are all private, so it has to be named
		{Value: tp.Tracer("spanbeat/generator"), Name: "tracer"},
		{Value: version, Name: "version"},
		{Value: hlth},
		{Value: &generator.Generator{}},
		{Value: &a},
	}
	if err := g.Provide(objects...); err != nil {
		fmt.Printf("failed to provide injection graph. error: %+v\n", err)
		os.Exit(1)
	}

	if opts.Debug {
		err = g.Provide(&inject.Object{Value: &debug.DebugService{Config: c, Processor: proc}})
		if err != nil {
			fmt.Printf("failed to provide injection graph. error: %+v\n", err)
			os.Exit(1)
		}
	}

	if err := g.Populate(); err != nil {
		fmt.Printf("failed to populate injection graph. error: %+v\n", err)
		os.Exit(1)
	}

	// the logger provided to startstop must be valid before any service is
	// started, meaning it can't rely on injected configs. make a custom logger
	// just for this step
	ststLogger := logrus.New()
	ststLogger.SetLevel(logrus.DebugLevel)

	defer startstop.Stop(g.Objects(), ststLogger)
	if err := startstop.Start(g.Objects(), ststLogger); err != nil {
		fmt.Printf("failed to start injected dependencies. error: %+v\n", err)
		os.Exit(1)
	}

	// set up signal channel to exit
	sigsToExit := make(chan os.Signal, 1)
	signal.Notify(sigsToExit, syscall.SIGINT, syscall.SIGTERM)

	// block on our signal handler to exit
	sig := <-sigsToExit
	a.Logger.Error().Logf("Caught signal \"%s\"", sig)
}
