package host

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/robotalks/panel.go/pkg/l0/transport/mqtt"
	"github.com/robotalks/panel.go/pkg/l0/transport/serial"
	"github.com/robotalks/panel.go/pkg/l0/transport/websocket"
)

// DefaultOrigin is sent when dialing websocket links.
const DefaultOrigin = "http://localhost/"

type mqttStream struct {
	*mqtt.Stream
	conn *mqtt.Conn
}

func (s *mqttStream) Close() error {
	err := s.Stream.Close()
	s.conn.Close()
	return err
}

// Dial opens the link to node, e.g.
// serial:///dev/ttyACM0, mqtt://broker:1883/panel/, ws://host:8080/link.
func Dial(ctx context.Context, rawURL string, node uint16) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "serial":
		return serial.Open(u.Path)
	case "mqtt", "tcp":
		conn, err := mqtt.Dial(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return &mqttStream{Stream: mqtt.HostStream(conn, node), conn: conn}, nil
	case "ws", "wss":
		return websocket.Dial(rawURL, DefaultOrigin)
	}
	return nil, fmt.Errorf("dial %q: unsupported scheme", rawURL)
}
