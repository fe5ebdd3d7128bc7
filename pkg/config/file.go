package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/panel.go/pkg/l0/output"
)

type fileConfig struct {
	Node              uint                         `toml:"node"`
	Transport         string                       `toml:"transport"`
	MQTTBrokerURL     string                       `toml:"mqtt_url"`
	MetricsAddr       string                       `toml:"metrics_addr"`
	TelemetryInterval string                       `toml:"telemetry_interval"`
	BusTimeout        string                       `toml:"bus_timeout"`
	Limits            limitsConfig                 `toml:"limits"`
	Queues            queuesConfig                 `toml:"queues"`
	Timeouts          timeoutsConfig               `toml:"timeouts"`
	Affinity          map[string]int               `toml:"affinity"`
	Slots             map[string]output.DeviceType `toml:"slots"`
}

type limitsConfig struct {
	MaxPayload int `toml:"max_payload"`
	MaxFrame   int `toml:"max_frame"`
}

type queuesConfig struct {
	Bytes   int `toml:"bytes"`
	Events  int `toml:"events"`
	Packets int `toml:"packets"`
}

type timeoutsConfig struct {
	ByteSend   string `toml:"byte_send"`
	EventSend  string `toml:"event_send"`
	PacketSend string `toml:"packet_send"`
	ReadyPoll  string `toml:"ready_poll"`
	Yield      string `toml:"yield"`
}

// LoadFile applies the keys defined in a TOML file.
func (c *Config) LoadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown key %s", path, undecoded[0])
	}

	if meta.IsDefined("node") {
		c.Node = raw.Node
	}
	if meta.IsDefined("transport") {
		c.Transport = strings.TrimSpace(raw.Transport)
	}
	if meta.IsDefined("mqtt_url") {
		c.MQTTBrokerURL = strings.TrimSpace(raw.MQTTBrokerURL)
	}
	if meta.IsDefined("metrics_addr") {
		c.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	durations := []struct {
		key string
		val string
		out *time.Duration
	}{
		{"telemetry_interval", raw.TelemetryInterval, &c.TelemetryInterval},
		{"bus_timeout", raw.BusTimeout, &c.BusTimeout},
		{"timeouts.byte_send", raw.Timeouts.ByteSend, &c.Pipeline.ByteSendTimeout},
		{"timeouts.event_send", raw.Timeouts.EventSend, &c.Pipeline.EventSendTimeout},
		{"timeouts.packet_send", raw.Timeouts.PacketSend, &c.Pipeline.PacketSendTimeout},
		{"timeouts.ready_poll", raw.Timeouts.ReadyPoll, &c.Pipeline.ReadyPoll},
		{"timeouts.yield", raw.Timeouts.Yield, &c.Pipeline.Yield},
	}
	for _, d := range durations {
		if !meta.IsDefined(strings.Split(d.key, ".")...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.out = v
	}

	ints := []struct {
		key []string
		val int
		out *int
	}{
		{[]string{"limits", "max_payload"}, raw.Limits.MaxPayload, &c.Pipeline.Limits.MaxPayload},
		{[]string{"limits", "max_frame"}, raw.Limits.MaxFrame, &c.Pipeline.Limits.MaxFrame},
		{[]string{"queues", "bytes"}, raw.Queues.Bytes, &c.Pipeline.ByteQueueSize},
		{[]string{"queues", "events"}, raw.Queues.Events, &c.Pipeline.EventQueueSize},
		{[]string{"queues", "packets"}, raw.Queues.Packets, &c.Pipeline.PacketQueueSize},
	}
	for _, i := range ints {
		if meta.IsDefined(i.key...) {
			*i.out = i.val
		}
	}

	if meta.IsDefined("affinity") {
		c.Pipeline.Affinity = raw.Affinity
	}
	if meta.IsDefined("slots") {
		c.Slots = make(map[int]output.DeviceType, len(raw.Slots))
		for key, t := range raw.Slots {
			slot, err := strconv.Atoi(key)
			if err != nil {
				return fmt.Errorf("slots: invalid slot %q", key)
			}
			c.Slots[slot] = t
		}
	}
	return nil
}
