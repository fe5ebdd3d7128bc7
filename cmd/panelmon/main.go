package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/robotalks/panel.go/pkg/l0/stats"
	"github.com/robotalks/panel.go/pkg/l0/transport/mqtt"
	"github.com/robotalks/panel.go/pkg/telemetry"
)

var (
	mqttURL  = "mqtt://localhost:1883/panel/"
	counters bool
)

func init() {
	if val := os.Getenv("PANEL_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&counters, "counters", counters, "Print all counters, not only non-zero ones.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conn, err := mqtt.Dial(context.Background(), mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	conn.Sub("+/"+mqtt.TopicStats, func(topic string, payload []byte) {
		s, err := telemetry.Unmarshal(payload)
		if err != nil {
			log.Printf("%s: bad snapshot: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, format(s))
	})
	<-(chan struct{})(nil)
}

func format(s *telemetry.Snapshot) string {
	var w strings.Builder
	fmt.Fprintf(&w, "node %d up %s", s.Node, time.Duration(s.UptimeMs)*time.Millisecond)
	if s.ErrorState {
		fmt.Fprintf(&w, " ERROR %s", stats.ErrorType(s.ErrorType))
	}
	for _, c := range s.Counters {
		if c.Value != 0 || counters {
			fmt.Fprintf(&w, " %s=%d", c.Name, c.Value)
		}
	}
	for _, st := range s.Stages {
		fmt.Fprintf(&w, " [%s %d%% hw %d]", st.Name, st.Percent, st.HighWater)
	}
	return w.String()
}
