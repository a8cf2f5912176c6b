package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/jessevdk/go-flags"
)

// CmdEnv is a struct that contains all the command line options; it's
// separate from the config struct so that we can apply the command line options
// and env vars after loading the config, and so they don't have to be tied to
// the config struct. Command line options override env vars, and both of them
// override values already in the struct when ApplyTags is called.
// Note that this system uses reflection to establish the relationship between
// the config struct and the command line options.
type CmdEnv struct {
	ConfigLocations       []string `short:"c" long:"config" env:"SPANBEAT_CONFIG" env-delim:"," default:"/etc/spanbeat/spanbeat.yaml" description:"config file or URL to load; can be specified more than once"`
	HeartbeatInterval     Duration `long:"heartbeat-interval" env:"SPANBEAT_HEARTBEAT_INTERVAL" description:"time between heartbeats of an open span"`
	InitialHeartbeatDelay Duration `long:"initial-heartbeat-delay" env:"SPANBEAT_INITIAL_HEARTBEAT_DELAY" description:"how long a span must be open before it gets heartbeats"`
	LoggerType            string   `long:"logger-type" env:"SPANBEAT_LOGGER_TYPE" description:"logger type (stdout, otel, none)"`
	LoggerLevel           Level    `long:"log-level" env:"SPANBEAT_LOG_LEVEL" description:"logging level (debug, info, warn, error)"`
	SinkType              string   `long:"sink" env:"SPANBEAT_SINK" description:"snapshot sink (stdout, file, logger, honeycomb, redis; comma-separated for several)"`
	SinkFilePath          string   `long:"sink-file" env:"SPANBEAT_SINK_FILE" description:"path for the file sink"`
	HoneycombAPIKey       string   `long:"honeycomb-api-key" env:"SPANBEAT_HONEYCOMB_API_KEY" description:"API key used by the honeycomb sink and for self-telemetry"`
	OTelMetricsAPIKey     string   `long:"otel-metrics-api-key" env:"SPANBEAT_OTEL_METRICS_API_KEY" description:"API key for OTel metrics; overrides the Honeycomb API key"`
	OTelTracesAPIKey      string   `long:"otel-traces-api-key" env:"SPANBEAT_OTEL_TRACES_API_KEY" description:"API key for OTel traces; overrides the Honeycomb API key"`
	OTelLogsAPIKey        string   `long:"otel-logs-api-key" env:"SPANBEAT_OTEL_LOGS_API_KEY" description:"API key for OTel logs; overrides the Honeycomb API key"`
	RedisHost             string   `long:"redis-host" env:"SPANBEAT_REDIS_HOST" description:"host:port of the redis sink"`
	RedisPassword         string   `long:"redis-password" env:"SPANBEAT_REDIS_PASSWORD" description:"password for the redis sink"`
	PrometheusListenAddr  string   `long:"prometheus-listen-addr" env:"SPANBEAT_PROMETHEUS_LISTEN_ADDR" description:"address for the /metrics endpoint"`
	DebugServiceAddr      string   `long:"debug-service-addr" env:"SPANBEAT_DEBUG_SERVICE_ADDR" description:"address for the debug service"`
	Debug                 bool     `short:"d" long:"debug" description:"Runs debug service (on the first open port between localhost:6060 and :6069 by default)"`
	Version               bool     `short:"v" long:"version" description:"Print version number and exit"`
	Validate              bool     `short:"V" long:"validate" description:"Validate the configuration files, writing results to stdout, and exit with 0 if valid, 1 if invalid."`
}

// NewCmdEnvOptions parses args, which must not include the program name.
// Positional arguments are an error; configs are named with --config.
func NewCmdEnvOptions(args []string) (*CmdEnv, error) {
	opts := &CmdEnv{}

	rest, err := flags.ParseArgs(opts, args)
	if err != nil {
		switch flagsErr := err.(type) {
		case *flags.Error:
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			return nil, err
		default:
			return nil, err
		}
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments %q", rest)
	}

	return opts, nil
}

// GetField returns the reflect.Value for the field with the given name in the CmdEnvOptions struct.
func (c *CmdEnv) GetField(name string) reflect.Value {
	return reflect.ValueOf(c).Elem().FieldByName(name)
}

// ApplyTags uses reflection to apply the values from the CmdEnv struct to the given struct.
// Any field in the struct that wants to be set from the command line must have a `cmdenv` tag on it that names
// the field in the CmdEnv struct that should be used to set the value. The types must match. The tag may
// list several comma-separated names; the first one that is not the zero value wins.
func (c *CmdEnv) ApplyTags(s reflect.Value) error {
	return applyCmdEnvTags(s, c)
}

type getFielder interface {
	GetField(name string) reflect.Value
}

// applyCmdEnvTags is a helper function that applies the values from the given GetFielder to the given struct.
// We do it this way to make it easier to test.
func applyCmdEnvTags(s reflect.Value, fielder getFielder) error {
	switch s.Kind() {
	case reflect.Struct:
		t := s.Type()

		for i := 0; i < s.NumField(); i++ {
			field := s.Field(i)
			fieldType := t.Field(i)

			if tag := fieldType.Tag.Get("cmdenv"); tag != "" {
				for _, name := range strings.Split(tag, ",") {
					value := fielder.GetField(name)
					if !value.IsValid() {
						// if you get this error, you didn't specify cmdenv tags
						// correctly -- its value must be the name of a field in the struct
						return fmt.Errorf("programming error -- invalid field name: %s", name)
					}
					if !field.CanSet() {
						return fmt.Errorf("programming error -- cannot set new value for: %s", fieldType.Name)
					}
					if value.IsZero() {
						continue
					}
					if fieldType.Type != value.Type() {
						return fmt.Errorf("programming error -- types don't match for field: %s (%v and %v)",
							fieldType.Name, fieldType.Type, value.Type())
					}
					field.Set(value)
					break
				}
			}

			// recurse into any nested structs
			if err := applyCmdEnvTags(field, fielder); err != nil {
				return err
			}
		}

	case reflect.Ptr:
		if !s.IsNil() {
			return applyCmdEnvTags(s.Elem(), fielder)
		}
	}
	return nil
}
