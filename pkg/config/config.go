// Package config collects the options of a panel node from defaults,
// environment, an optional TOML file and command line flags.
package config

import (
	"flag"
	"fmt"
	"maps"
	"net/url"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/l0/comm"
	"github.com/robotalks/panel.go/pkg/l0/output"
	"github.com/robotalks/panel.go/pkg/l0/pipeline"
)

// Transport schemes.
const (
	SchemeSerial    = "serial"
	SchemeMQTT      = "mqtt"
	SchemeWebSocket = "ws"
	SchemeStdio     = "stdio"
)

// Config provides the options of a panel node.
type Config struct {
	// Node is the 11-bit node ID.
	Node uint

	// Transport selects the host link, e.g.
	// serial:///dev/ttyACM0, mqtt://host:1883/panel/, ws://:8080/panel, stdio:
	Transport string

	// MQTTBrokerURL is used by telemetry, and by the mqtt transport when
	// Transport has no host.
	MQTTBrokerURL string

	// MetricsAddr serves prometheus metrics when not empty.
	MetricsAddr string

	TelemetryInterval time.Duration
	BusTimeout        time.Duration

	// File is the TOML file loaded by Load.
	File string

	Pipeline pipeline.Options

	// Slots maps 1-based output slots to device types.
	Slots map[int]output.DeviceType
}

var defaultConfig = Config{
	Transport:         "stdio:",
	MQTTBrokerURL:     "mqtt://localhost:1883/panel/",
	TelemetryInterval: 5 * time.Second,
	BusTimeout:        output.DefaultBusTimeout,
	Pipeline:          pipeline.DefaultOptions(),
}

func init() {
	defaultConfig.Node = uint(DefaultNodeID())
	applyEnv(&defaultConfig, os.Getenv)
}

func applyEnv(c *Config, getenv func(string) string) {
	if val := getenv("PANEL_NODE_ID"); val != "" {
		if n, err := strconv.ParseUint(val, 0, 16); err == nil {
			c.Node = uint(n)
		} else {
			glog.Warningf("config: invalid PANEL_NODE_ID %q", val)
		}
	}
	if val := getenv("PANEL_TRANSPORT"); val != "" {
		c.Transport = val
	}
	if val := getenv("PANEL_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := getenv("PANEL_CONFIG"); val != "" {
		c.File = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	defaultConfig.AddFlags(flag.CommandLine)
}

// AddFlags registers flags bound to c.
func (c *Config) AddFlags(fs *flag.FlagSet) {
	fs.UintVar(&c.Node, "node", c.Node, "Node ID (0-2047)")
	fs.StringVar(&c.Transport, "transport", c.Transport, "Host link URL: serial:///dev/tty*, mqtt://, ws://host:port/path, stdio:")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Serve prometheus metrics on this address")
	fs.DurationVar(&c.TelemetryInterval, "telemetry-interval", c.TelemetryInterval, "Telemetry publish interval, 0 to disable")
	fs.StringVar(&c.File, "config", c.File, "TOML config file")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	return defaultConfig.clone()
}

func (c *Config) clone() *Config {
	conf := *c
	conf.Slots = maps.Clone(c.Slots)
	conf.Pipeline.Affinity = maps.Clone(c.Pipeline.Affinity)
	return &conf
}

// Load applies File if set. Flags explicitly set on fs keep their
// values in c, whichever Config the flags are bound to. fs may be nil.
func (c *Config) Load(fs *flag.FlagSet) error {
	if c.File == "" {
		return nil
	}
	set := make(map[string]string)
	if fs != nil {
		fs.Visit(func(f *flag.Flag) {
			set[f.Name] = f.Value.String()
		})
	}
	if err := c.LoadFile(c.File); err != nil {
		return err
	}
	own := flag.NewFlagSet("config", flag.ContinueOnError)
	c.AddFlags(own)
	for name, val := range set {
		if own.Lookup(name) == nil {
			continue
		}
		if err := own.Set(name, val); err != nil {
			return fmt.Errorf("flag -%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Node > comm.MaxNodeID {
		return fmt.Errorf("node %d: %w", c.Node, comm.ErrInvalidNode)
	}
	if err := c.Pipeline.Limits.Validate(); err != nil {
		return err
	}
	for name, size := range map[string]int{
		"byte queue":   c.Pipeline.ByteQueueSize,
		"event queue":  c.Pipeline.EventQueueSize,
		"packet queue": c.Pipeline.PacketQueueSize,
	} {
		if size <= 0 {
			return fmt.Errorf("%s size %d must be positive", name, size)
		}
	}
	for slot := range c.Slots {
		if slot < 1 || slot > output.NumSlots {
			return fmt.Errorf("slot %d out of range 1-%d", slot, output.NumSlots)
		}
	}
	for stage := range c.Pipeline.Affinity {
		if !isStage(stage) {
			return fmt.Errorf("affinity: unknown stage %q", stage)
		}
	}
	if _, _, err := c.TransportURL(); err != nil {
		return err
	}
	return nil
}

// PipelineOptions returns the pipeline options with the node ID.
func (c *Config) PipelineOptions() pipeline.Options {
	opts := c.Pipeline
	opts.Node = uint16(c.Node)
	return opts
}

// TransportURL parses Transport into its scheme and URL.
func (c *Config) TransportURL() (string, *url.URL, error) {
	u, err := url.Parse(c.Transport)
	if err != nil {
		return "", nil, fmt.Errorf("transport %q: %w", c.Transport, err)
	}
	switch u.Scheme {
	case SchemeSerial:
		if u.Path == "" {
			return "", nil, fmt.Errorf("transport %q: missing device path", c.Transport)
		}
	case SchemeMQTT, SchemeWebSocket, SchemeStdio:
	default:
		return "", nil, fmt.Errorf("transport %q: unsupported scheme %q", c.Transport, u.Scheme)
	}
	return u.Scheme, u, nil
}

func isStage(name string) bool {
	return slices.Contains(pipeline.StageNames, name)
}
