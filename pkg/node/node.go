// Package node assembles a panel node from its configuration: output
// panel, host link, pipeline, telemetry and metrics endpoint.
package node

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/panel.go/pkg/config"
	"github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/l0/output"
	"github.com/robotalks/panel.go/pkg/l0/pipeline"
	"github.com/robotalks/panel.go/pkg/l0/stats"
	"github.com/robotalks/panel.go/pkg/l0/transport"
	"github.com/robotalks/panel.go/pkg/l0/transport/mqtt"
	"github.com/robotalks/panel.go/pkg/l0/transport/serial"
	"github.com/robotalks/panel.go/pkg/l0/transport/websocket"
	"github.com/robotalks/panel.go/pkg/telemetry"
)

// LinkBufferSize is the receive buffer of the host link.
const LinkBufferSize = 256

// ReopenInterval is the wait between attempts to reopen a serial device.
const ReopenInterval = time.Second

// Node is an assembled panel node.
type Node struct {
	Config    *config.Config
	Stats     *stats.Registry
	Panel     *output.Panel
	Link      *transport.Link
	Pipeline  *pipeline.Pipeline
	Indicator *output.LogIndicator
	Telemetry *telemetry.Publisher

	source  *telemetry.Source
	runners []framework.Runnable
	closers []io.Closer
}

// New creates a Node. Broker connections are made here.
func New(ctx context.Context, cfg *config.Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Node{
		Config:    cfg,
		Stats:     stats.NewRegistry(),
		Link:      transport.NewLink(LinkBufferSize),
		Indicator: &output.LogIndicator{},
	}
	n.Panel = output.NewPanel(output.NewBus(), n.Stats)
	n.Panel.BusTimeout = cfg.BusTimeout
	n.Panel.SetPWM(output.LogPWM{})
	for slot, t := range cfg.Slots {
		var d output.Driver
		if t != output.DeviceNone {
			d = output.NewRecorder(fmt.Sprintf("slot%d", slot))
		}
		if err := n.Panel.Configure(slot, t, d); err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot, err)
		}
	}

	p, err := pipeline.New(cfg.PipelineOptions(), n.Link, n.Panel, n.Stats)
	if err != nil {
		return nil, err
	}
	p.SetIndicator(n.Indicator)
	n.Pipeline = p
	n.source = &telemetry.Source{Node: p.Node(), Stats: n.Stats, Metrics: p.Metrics()}

	if err := n.setupTransport(ctx); err != nil {
		n.Close()
		return nil, err
	}
	n.setupTelemetry(ctx)
	if cfg.MetricsAddr != "" {
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: n.MetricsHandler()}
		n.runners = append(n.runners, framework.NamedRun("metrics", framework.RunFunc(func(ctx context.Context) error {
			glog.Infof("metrics: listening on %s", cfg.MetricsAddr)
			return framework.RunWithContextCloser(ctx, server, server.ListenAndServe)
		})))
	}
	return n, nil
}

func (n *Node) setupTransport(ctx context.Context) error {
	scheme, u, err := n.Config.TransportURL()
	if err != nil {
		return err
	}
	switch scheme {
	case config.SchemeSerial:
		n.runners = append(n.runners, framework.NamedRun("serial", &serialAttacher{
			path:  u.Path,
			link:  n.Link,
			retry: ReopenInterval,
		}))
	case config.SchemeMQTT:
		brokerURL := n.Config.Transport
		if u.Host == "" {
			brokerURL = n.Config.MQTTBrokerURL
		}
		conn, err := mqtt.Dial(ctx, brokerURL)
		if err != nil {
			return fmt.Errorf("mqtt transport: %w", err)
		}
		n.closers = append(n.closers, conn)
		n.Link.Attach(mqtt.DeviceStream(conn, n.Pipeline.Node()))
	case config.SchemeWebSocket:
		n.runners = append(n.runners, framework.NamedRun("websocket", &websocket.Server{
			Addr: u.Host,
			Path: u.Path,
			Link: n.Link,
		}))
	case config.SchemeStdio:
		n.Link.Attach(stdio{Reader: os.Stdin, Writer: os.Stdout})
	}
	return nil
}

func (n *Node) setupTelemetry(ctx context.Context) {
	if n.Config.TelemetryInterval <= 0 || n.Config.MQTTBrokerURL == "" {
		return
	}
	conn, err := mqtt.Dial(ctx, n.Config.MQTTBrokerURL)
	if err != nil {
		glog.Warningf("telemetry disabled: %v", err)
		return
	}
	n.closers = append(n.closers, conn)
	n.Telemetry = telemetry.NewPublisher(n.source, &telemetry.MQTTSink{Conn: conn, Timeout: time.Second})
	n.Telemetry.Interval = n.Config.TelemetryInterval
	n.runners = append(n.runners, framework.NamedRun("telemetry", n.Telemetry))
}

// MetricsHandler serves the node metrics in prometheus format.
func (n *Node) MetricsHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		telemetry.NewCollector(n.source),
		collectors.NewGoCollector(),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Run runs the node until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	defer n.Close()
	runners := append([]framework.Runnable{framework.NamedRun("pipeline", n.Pipeline)}, n.runners...)
	return framework.NewRunnerWith(ctx).Go(runners...).Wait()
}

// Close releases the link and broker connections.
func (n *Node) Close() error {
	errs := &framework.AggregatedError{}
	errs.Add(n.Link.Close())
	for _, c := range n.closers {
		errs.Add(c.Close())
	}
	n.closers = nil
	return errs.Aggregate()
}

type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }

// serialAttacher reopens the device whenever the link is down.
type serialAttacher struct {
	path  string
	link  *transport.Link
	retry time.Duration
}

func (a *serialAttacher) Run(ctx context.Context) error {
	for {
		if !a.link.Ready() {
			port, err := serial.Open(a.path)
			if err != nil {
				glog.Warningf("serial: open %s: %v", a.path, err)
			} else {
				glog.Infof("serial: %s opened", a.path)
				a.link.Attach(port)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.retry):
		}
	}
}
